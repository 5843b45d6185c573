package keyringcore

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/KeychainPGP/keyringcore/internal/credstore"
	"github.com/KeychainPGP/keyringcore/internal/kerr"
	"github.com/KeychainPGP/keyringcore/internal/metastore"
	"github.com/KeychainPGP/keyringcore/internal/model"
	"github.com/KeychainPGP/keyringcore/internal/pgpengine"
	"github.com/KeychainPGP/keyringcore/internal/secretprotector"
)

// Service is KeyringService: the orchestration layer implementing the
// public command surface over CryptoEngine, SecretProtector,
// CredentialStore, and MetadataStore.
type Service struct {
	log       zerolog.Logger
	engine    *pgpengine.Engine
	protector *secretprotector.Protector

	mu    sync.Mutex
	creds credstore.Store
	meta  metastore.Store

	// persistentCreds/persistentMeta are the normal-mode backends
	// configured at New, kept aside so DisableOPSEC can restore them.
	// Both are nil for a Service constructed with Config.OPSEC true.
	persistentCreds credstore.Store
	persistentMeta  metastore.Store

	opsec       atomic.Bool
	passphrases *PassphraseCache

	activeMu sync.Mutex
	active   model.Fingerprint
}

// New constructs a Service from cfg, selecting backends per §4.3/§4.4: the
// OS vault (falling back to File on a transport error) and a transactional
// bbolt index in normal mode, or volatile in-memory backends in OPSEC mode.
func New(cfg Config) (*Service, error) {
	s := &Service{
		log:         cfg.Logger,
		engine:      pgpengine.New(cfg.IncludeArmorMetadata),
		passphrases: NewPassphraseCache(cfg.passphraseCacheTTL()),
	}

	protector, err := secretprotector.New()
	if err != nil {
		return nil, err
	}
	s.protector = protector

	if cfg.OPSEC {
		s.creds = credstore.NewMemory()
		s.meta = metastore.NewMemory()
		s.opsec.Store(true)
		return s, nil
	}

	creds, err := newPersistentCredStore(cfg, s.log)
	if err != nil {
		return nil, err
	}
	meta, err := metastore.OpenBolt(cfg.MetadataPath)
	if err != nil {
		return nil, err
	}

	s.creds, s.persistentCreds = creds, creds
	s.meta, s.persistentMeta = meta, meta

	if err := s.Repair(); err != nil {
		return nil, err
	}
	return s, nil
}

func newPersistentCredStore(cfg Config, log zerolog.Logger) (credstore.Store, error) {
	if cfg.PreferFileBackend {
		return credstore.NewFile(cfg.SecretsDir, log)
	}
	vault, err := credstore.NewVault(log)
	if err == nil {
		return vault, nil
	}
	log.Debug().Msg("credential vault unavailable, falling back to file backend")
	return credstore.NewFile(cfg.SecretsDir, log)
}

func (s *Service) store() (credstore.Store, metastore.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds, s.meta
}

// Generate creates a new own-key identity: Ed25519 primary bound to an
// X25519 encryption subkey, wraps its secret material, and records its
// metadata. A failure after the secret has been stored is rolled back by
// deleting the WrappedSecret; the metadata row is the last write, so a
// failure never leaves one behind to remove.
func (s *Service) Generate(name, email string, passphrase []byte) (model.KeyRecord, error) {
	creds, meta := s.store()

	km, err := s.engine.GenerateKeypair(name, email, passphrase)
	if err != nil {
		return model.KeyRecord{}, err
	}

	ws, err := s.protector.Wrap(km.Fingerprint, km.SecretMaterial)
	if err != nil {
		return model.KeyRecord{}, err
	}
	if err := creds.Put(km.Fingerprint, ws); err != nil {
		return model.KeyRecord{}, err
	}

	info, err := s.engine.Inspect(km.CertificateBytes)
	if err != nil {
		_ = creds.Delete(km.Fingerprint)
		return model.KeyRecord{}, err
	}

	rec := recordFromCertInfo(info, km.CertificateBytes, true)
	if err := meta.Upsert(rec); err != nil {
		_ = creds.Delete(km.Fingerprint)
		return model.KeyRecord{}, err
	}

	s.setActiveIfUnset(rec.Fingerprint)
	return rec, nil
}

// Import parses blob via Inspect, detects whether it carries secret
// material, and stores it accordingly. Re-importing a known fingerprint
// merges: union of user-ids, the later expiration wins, and is_own_key is
// upgraded from false to true when the new blob carries a secret — never
// downgraded.
func (s *Service) Import(blob []byte) (model.KeyRecord, error) {
	creds, meta := s.store()

	info, err := s.engine.Inspect(blob)
	if err != nil {
		return model.KeyRecord{}, err
	}

	certBytes := blob
	if info.HasSecret {
		pub, err := s.engine.StripSecret(blob)
		if err != nil {
			return model.KeyRecord{}, err
		}
		certBytes = pub
	}

	incoming := recordFromCertInfo(info, certBytes, info.HasSecret)

	existing, found, err := meta.Get(info.Fingerprint)
	if err != nil {
		return model.KeyRecord{}, err
	}

	rec := incoming
	if found {
		rec = mergeRecords(existing, incoming)
	}

	if info.HasSecret {
		ws, err := s.protector.Wrap(info.Fingerprint, blob)
		if err != nil {
			return model.KeyRecord{}, err
		}
		if err := creds.Put(info.Fingerprint, ws); err != nil {
			return model.KeyRecord{}, err
		}
	}

	if err := meta.Upsert(rec); err != nil {
		return model.KeyRecord{}, err
	}
	if rec.IsOwnKey {
		s.setActiveIfUnset(rec.Fingerprint)
	}
	return rec, nil
}

func mergeRecords(existing, incoming model.KeyRecord) model.KeyRecord {
	merged := existing
	merged.AllUserIDs = unionUserIDs(existing.AllUserIDs, incoming.AllUserIDs)
	merged.CertificateBytes = incoming.CertificateBytes
	if incoming.ExpiresAt != nil && (merged.ExpiresAt == nil || incoming.ExpiresAt.After(*merged.ExpiresAt)) {
		merged.ExpiresAt = incoming.ExpiresAt
	}
	if incoming.IsOwnKey {
		merged.IsOwnKey = true // upgrade-only: never downgrade on reimport
	}
	return merged
}

func unionUserIDs(a, b []model.UserID) []model.UserID {
	seen := map[model.UserID]bool{}
	var out []model.UserID
	for _, uid := range a {
		if !seen[uid] {
			seen[uid] = true
			out = append(out, uid)
		}
	}
	for _, uid := range b {
		if !seen[uid] {
			seen[uid] = true
			out = append(out, uid)
		}
	}
	return out
}

// Export returns the bytes for fingerprint. includeSecret must be an
// explicit call-time boolean; it is never inferred from context.
func (s *Service) Export(fp model.Fingerprint, includeSecret bool) ([]byte, error) {
	creds, meta := s.store()

	rec, found, err := meta.Get(fp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, kerr.New("keyringcore.Export", kerr.NotFound, nil)
	}

	if !includeSecret {
		return rec.CertificateBytes, nil
	}

	ws, found, err := creds.Get(fp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, kerr.New("keyringcore.Export", kerr.NotFound, nil)
	}
	buf, err := s.protector.Unwrap(ws)
	if err != nil {
		return nil, err
	}
	defer buf.Release()

	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out, nil
}

// SetTrust updates the trust label for fingerprint.
func (s *Service) SetTrust(fp model.Fingerprint, level model.TrustLevel) error {
	_, meta := s.store()
	return meta.SetTrust(fp, level)
}

// Delete removes fingerprint's passphrase cache entry, secret material, and
// metadata row, in that order. Repeat calls are idempotent.
func (s *Service) Delete(fp model.Fingerprint) error {
	creds, meta := s.store()

	s.passphrases.Forget(fp)
	if err := creds.Delete(fp); err != nil {
		return err
	}
	if err := meta.Delete(fp); err != nil {
		return err
	}

	s.activeMu.Lock()
	if s.active == fp {
		s.active = ""
	}
	s.activeMu.Unlock()
	return nil
}

// List returns every KeyRecord known to the MetadataStore.
func (s *Service) List() ([]model.KeyRecord, error) {
	_, meta := s.store()
	return meta.List()
}

// Search matches case-insensitively on name, email, or fingerprint suffix.
func (s *Service) Search(query string) ([]model.KeyRecord, error) {
	_, meta := s.store()
	return meta.Search(query)
}

// Inspect parses cert or bundle entry bytes into a CertInfo without
// touching the store.
func (s *Service) Inspect(certOrBundle []byte) (model.CertInfo, error) {
	return s.engine.Inspect(certOrBundle)
}

func recordFromCertInfo(info model.CertInfo, certBytes []byte, isOwnKey bool) model.KeyRecord {
	rec := model.KeyRecord{
		Fingerprint:      info.Fingerprint,
		AllUserIDs:       info.UserIDs,
		AlgorithmLabel:   info.Algorithm,
		CreatedAt:        info.CreatedAt,
		ExpiresAt:        info.ExpiresAt,
		IsOwnKey:         isOwnKey,
		CertificateBytes: certBytes,
		AddedAt:          time.Now(),
	}
	if len(info.UserIDs) > 0 {
		rec.PrimaryUserID = info.UserIDs[0]
	}
	return rec
}
