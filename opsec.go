package keyringcore

import (
	"github.com/KeychainPGP/keyringcore/internal/credstore"
	"github.com/KeychainPGP/keyringcore/internal/kerr"
	"github.com/KeychainPGP/keyringcore/internal/metastore"
)

// EnableOPSEC switches the CredentialStore and MetadataStore to volatile
// in-memory backends, starting from an empty keyring. No other component
// needs to know the mode changed (spec §2); callers that only see the
// Service through its command surface observe no difference beyond "nothing
// persists." The OPSEC flag is an atomic.Bool so a concurrent command
// observes the switch with acquire/release ordering (spec §5) before it
// performs any write of its own.
func (s *Service) EnableOPSEC() {
	s.mu.Lock()
	s.creds = credstore.NewMemory()
	s.meta = metastore.NewMemory()
	s.mu.Unlock()
	s.opsec.Store(true)
}

// DisableOPSEC restores the persistent backends configured at New. It fails
// with BackendUnavailable if the Service was itself constructed with
// Config.OPSEC true, since there is no persistent backend to fall back to.
func (s *Service) DisableOPSEC() error {
	if s.persistentCreds == nil || s.persistentMeta == nil {
		return kerr.New("keyringcore.DisableOPSEC", kerr.BackendUnavailable, nil)
	}
	s.mu.Lock()
	s.creds = s.persistentCreds
	s.meta = s.persistentMeta
	s.mu.Unlock()
	s.opsec.Store(false)
	return nil
}

// IsOPSEC reports whether the session is currently in OPSEC mode.
func (s *Service) IsOPSEC() bool {
	return s.opsec.Load()
}

// PanicWipe destroys the session wrapping key, clears the passphrase cache,
// and drops the active signing selection. Every WrappedSecret that existed
// before this call becomes permanently un-unwrappable (spec §4.2); a
// subsequent Decrypt observes SessionLost for those candidates, and Sign
// observes NotFound because the active signing selection is dropped. In
// OPSEC mode the in-memory stores
// themselves are also replaced with empty ones, since the hardened
// invariant is "the keyring is gone," not merely "secrets are gone" (spec
// §8 invariant 12, scenario S7).
func (s *Service) PanicWipe() {
	s.protector.Wipe()
	s.passphrases.Clear()

	s.activeMu.Lock()
	s.active = ""
	s.activeMu.Unlock()

	if s.opsec.Load() {
		s.mu.Lock()
		s.creds = credstore.NewMemory()
		s.meta = metastore.NewMemory()
		s.mu.Unlock()
	}
}

// ClearPassphraseCache evicts every cached passphrase.
func (s *Service) ClearPassphraseCache() {
	s.passphrases.Clear()
}

// Repair reconciles the MetadataStore against the CredentialStore at
// startup (spec §4.5): an own-key row whose WrappedSecret has gone missing
// is degraded to is_own_key=false with a warning rather than left to fail
// at decrypt/sign time, and a WrappedSecret with no corresponding metadata
// row is deleted outright.
func (s *Service) Repair() error {
	creds, meta := s.store()

	recs, err := meta.List()
	if err != nil {
		return err
	}
	knownFingerprints := make(map[string]bool, len(recs))
	for _, rec := range recs {
		knownFingerprints[string(rec.Fingerprint)] = true
		if !rec.IsOwnKey {
			continue
		}
		_, found, err := creds.Get(rec.Fingerprint)
		if err != nil {
			return err
		}
		if found {
			continue
		}
		s.log.Warn().Msg("own-key record has no matching secret; downgrading is_own_key")
		s.log.Debug().Str("fingerprint", string(rec.Fingerprint)).Msg("downgraded own-key record")
		rec.IsOwnKey = false
		if err := meta.Upsert(rec); err != nil {
			return err
		}
	}

	fps, err := creds.ListFingerprints()
	if err != nil {
		return err
	}
	for _, fp := range fps {
		if knownFingerprints[string(fp)] {
			continue
		}
		s.log.Warn().Msg("wrapped secret has no matching metadata row; deleting")
		s.log.Debug().Str("fingerprint", string(fp)).Msg("deleting orphaned wrapped secret")
		if err := creds.Delete(fp); err != nil {
			return err
		}
	}
	return nil
}
