package credstore

import (
	"sync"

	"github.com/KeychainPGP/keyringcore/internal/model"
)

// Memory is the CredentialStore backend used unconditionally in OPSEC mode.
// Nothing it holds ever reaches a persistent medium; it disappears with the
// process.
type Memory struct {
	mu   sync.Mutex
	data map[model.Fingerprint]model.WrappedSecret
}

func NewMemory() *Memory {
	return &Memory{data: map[model.Fingerprint]model.WrappedSecret{}}
}

func (m *Memory) Put(fp model.Fingerprint, ws model.WrappedSecret) error {
	fp, err := validate(fp)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[fp] = ws
	return nil
}

func (m *Memory) Get(fp model.Fingerprint) (model.WrappedSecret, bool, error) {
	fp, err := validate(fp)
	if err != nil {
		return model.WrappedSecret{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.data[fp]
	return ws, ok, nil
}

func (m *Memory) Delete(fp model.Fingerprint) error {
	fp, err := validate(fp)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, fp)
	return nil
}

func (m *Memory) ListFingerprints() ([]model.Fingerprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Fingerprint, 0, len(m.data))
	for fp := range m.data {
		out = append(out, fp)
	}
	return out, nil
}
