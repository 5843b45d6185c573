package metastore

import (
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/KeychainPGP/keyringcore/internal/kerr"
	"github.com/KeychainPGP/keyringcore/internal/model"
)

var recordsBucket = []byte("key_records")

// row is the on-disk JSON shape of a KeyRecord. It is versioned
// independently of the in-memory model.KeyRecord so the store can migrate
// old rows forward without coupling the wire shape to the Go type.
type row struct {
	SchemaVersion    int             `json:"schema_version"`
	Fingerprint      string          `json:"fingerprint"`
	PrimaryUserID    model.UserID    `json:"primary_user_id"`
	AllUserIDs       []model.UserID  `json:"all_user_ids"`
	AlgorithmLabel   string          `json:"algorithm_label"`
	CreatedAt        time.Time       `json:"created_at"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
	TrustLevel       model.TrustLevel `json:"trust_level"`
	IsOwnKey         bool            `json:"is_own_key"`
	CertificateBytes []byte          `json:"certificate_bytes"`
	AddedAt          time.Time       `json:"added_at"`
}

const currentSchemaVersion = 1

func toRow(rec model.KeyRecord) row {
	return row{
		SchemaVersion:    currentSchemaVersion,
		Fingerprint:      string(rec.Fingerprint),
		PrimaryUserID:    rec.PrimaryUserID,
		AllUserIDs:       rec.AllUserIDs,
		AlgorithmLabel:   rec.AlgorithmLabel,
		CreatedAt:        rec.CreatedAt,
		ExpiresAt:        rec.ExpiresAt,
		TrustLevel:       rec.TrustLevel,
		IsOwnKey:         rec.IsOwnKey,
		CertificateBytes: rec.CertificateBytes,
		AddedAt:          rec.AddedAt,
	}
}

func fromRow(r row) model.KeyRecord {
	return model.KeyRecord{
		Fingerprint:      model.Fingerprint(r.Fingerprint),
		PrimaryUserID:    r.PrimaryUserID,
		AllUserIDs:       r.AllUserIDs,
		AlgorithmLabel:   r.AlgorithmLabel,
		CreatedAt:        r.CreatedAt,
		ExpiresAt:        r.ExpiresAt,
		TrustLevel:       r.TrustLevel,
		IsOwnKey:         r.IsOwnKey,
		CertificateBytes: r.CertificateBytes,
		AddedAt:          r.AddedAt,
	}
}

// Bolt is the transactional on-disk MetadataStore backend used in normal
// (non-OPSEC) operation.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) a bbolt-backed store at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, kerr.New("metastore.OpenBolt", kerr.BackendUnavailable, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, kerr.New("metastore.OpenBolt", kerr.BackendUnavailable, err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Close() error { return b.db.Close() }

// Upsert replaces any existing row for the same fingerprint — exactly one
// row per fingerprint is maintained by using the fingerprint as the bucket
// key, so a reinsert can never create a duplicate or orphan row.
func (b *Bolt) Upsert(rec model.KeyRecord) error {
	if _, err := model.ParseFingerprint(string(rec.Fingerprint)); err != nil {
		return err
	}
	data, err := json.Marshal(toRow(rec))
	if err != nil {
		return kerr.New("metastore.Bolt.Upsert", kerr.MalformedCertificate, err)
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recordsBucket).Put([]byte(rec.Fingerprint), data)
	})
	if err != nil {
		return kerr.New("metastore.Bolt.Upsert", kerr.BackendUnavailable, err)
	}
	return nil
}

func (b *Bolt) Get(fp model.Fingerprint) (model.KeyRecord, bool, error) {
	fp, err := model.ParseFingerprint(string(fp))
	if err != nil {
		return model.KeyRecord{}, false, err
	}

	var rec model.KeyRecord
	found := false
	err = b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(recordsBucket).Get([]byte(fp))
		if data == nil {
			return nil
		}
		var r row
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		rec = fromRow(r)
		found = true
		return nil
	})
	if err != nil {
		return model.KeyRecord{}, false, kerr.New("metastore.Bolt.Get", kerr.BackendUnavailable, err)
	}
	return rec, found, nil
}

func (b *Bolt) List() ([]model.KeyRecord, error) {
	var out []model.KeyRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(recordsBucket).ForEach(func(_, data []byte) error {
			var r row
			if err := json.Unmarshal(data, &r); err != nil {
				return err
			}
			out = append(out, fromRow(r))
			return nil
		})
	})
	if err != nil {
		return nil, kerr.New("metastore.Bolt.List", kerr.BackendUnavailable, err)
	}
	sortRecords(out)
	return out, nil
}

// Delete is idempotent: deleting an absent fingerprint returns nil, not an
// error, per spec §4.4.
func (b *Bolt) Delete(fp model.Fingerprint) error {
	fp, err := model.ParseFingerprint(string(fp))
	if err != nil {
		return err
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recordsBucket).Delete([]byte(fp))
	})
	if err != nil {
		return kerr.New("metastore.Bolt.Delete", kerr.BackendUnavailable, err)
	}
	return nil
}

func (b *Bolt) Search(query string) ([]model.KeyRecord, error) {
	all, err := b.List()
	if err != nil {
		return nil, err
	}
	var out []model.KeyRecord
	for _, rec := range all {
		if matches(rec, query) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (b *Bolt) SetTrust(fp model.Fingerprint, level model.TrustLevel) error {
	rec, ok, err := b.Get(fp)
	if err != nil {
		return err
	}
	if !ok {
		return kerr.New("metastore.Bolt.SetTrust", kerr.NotFound, nil)
	}
	rec.TrustLevel = level
	return b.Upsert(rec)
}
