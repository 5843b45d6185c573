package metastore

import (
	"sync"

	"github.com/KeychainPGP/keyringcore/internal/kerr"
	"github.com/KeychainPGP/keyringcore/internal/model"
)

// Memory is the volatile MetadataStore backend used in OPSEC mode. It is
// cleared on session end simply by being garbage collected with the
// process — nothing it holds is ever written to disk.
type Memory struct {
	mu   sync.Mutex
	data map[model.Fingerprint]model.KeyRecord
}

func NewMemory() *Memory {
	return &Memory{data: map[model.Fingerprint]model.KeyRecord{}}
}

func (m *Memory) Upsert(rec model.KeyRecord) error {
	if _, err := model.ParseFingerprint(string(rec.Fingerprint)); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[rec.Fingerprint] = rec
	return nil
}

func (m *Memory) Get(fp model.Fingerprint) (model.KeyRecord, bool, error) {
	fp, err := model.ParseFingerprint(string(fp))
	if err != nil {
		return model.KeyRecord{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.data[fp]
	return rec, ok, nil
}

func (m *Memory) List() ([]model.KeyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.KeyRecord, 0, len(m.data))
	for _, rec := range m.data {
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func (m *Memory) Delete(fp model.Fingerprint) error {
	fp, err := model.ParseFingerprint(string(fp))
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, fp)
	return nil
}

func (m *Memory) Search(query string) ([]model.KeyRecord, error) {
	all, err := m.List()
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

func (m *Memory) SetTrust(fp model.Fingerprint, level model.TrustLevel) error {
	fp, err := model.ParseFingerprint(string(fp))
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.data[fp]
	if !ok {
		return kerr.New("metastore.Memory.SetTrust", kerr.NotFound, nil)
	}
	rec.TrustLevel = level
	m.data[fp] = rec
	return nil
}

func (m *Memory) Close() error { return nil }
