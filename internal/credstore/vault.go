package credstore

import (
	"encoding/base64"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	zkeyring "github.com/zalando/go-keyring"

	"github.com/KeychainPGP/keyringcore/internal/kerr"
	"github.com/KeychainPGP/keyringcore/internal/model"
)

// VaultService is the zalando/go-keyring service name under which every
// WrappedSecret is namespaced, keeping the core's entries distinguishable
// from any other application sharing the same OS credential store.
const VaultService = "keychainpgp"

// Vault is the primary CredentialStore backend on platforms that expose a
// per-application secret store (macOS Keychain, Windows Credential
// Manager, the Secret Service / kwallet on Linux via D-Bus).
type Vault struct {
	mu     sync.Mutex
	log    zerolog.Logger
	cached map[model.Fingerprint]struct{}
}

// NewVault probes the OS vault with a throwaway round trip; callers fall
// back to the File backend if this returns an error, per spec §4.3.
func NewVault(log zerolog.Logger) (*Vault, error) {
	v := &Vault{log: log.With().Str("component", "credstore.vault").Logger(), cached: map[model.Fingerprint]struct{}{}}
	if err := v.probe(); err != nil {
		return nil, kerr.New("credstore.NewVault", kerr.BackendUnavailable, err)
	}
	return v, nil
}

func (v *Vault) probe() error {
	const probeUser = "__keychainpgp_probe__"
	if err := zkeyring.Set(VaultService, probeUser, "probe"); err != nil {
		return err
	}
	return zkeyring.Delete(VaultService, probeUser)
}

func (v *Vault) Put(fp model.Fingerprint, ws model.WrappedSecret) error {
	fp, err := validate(fp)
	if err != nil {
		return err
	}

	blob := encodeWrapped(ws)
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := zkeyring.Set(VaultService, string(fp), blob); err != nil {
		v.log.Debug().Str("fingerprint", string(fp)).Msg("vault put failed")
		return kerr.New("credstore.Vault.Put", kerr.BackendUnavailable, err)
	}
	v.cached[fp] = struct{}{}
	return nil
}

func (v *Vault) Get(fp model.Fingerprint) (model.WrappedSecret, bool, error) {
	fp, err := validate(fp)
	if err != nil {
		return model.WrappedSecret{}, false, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	blob, err := zkeyring.Get(VaultService, string(fp))
	if errors.Is(err, zkeyring.ErrNotFound) {
		return model.WrappedSecret{}, false, nil
	}
	if err != nil {
		return model.WrappedSecret{}, false, kerr.New("credstore.Vault.Get", kerr.BackendUnavailable, err)
	}

	ws, err := decodeWrapped(fp, blob)
	if err != nil {
		return model.WrappedSecret{}, false, err
	}
	return ws, true, nil
}

func (v *Vault) Delete(fp model.Fingerprint) error {
	fp, err := validate(fp)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	err = zkeyring.Delete(VaultService, string(fp))
	delete(v.cached, fp)
	if err != nil && !errors.Is(err, zkeyring.ErrNotFound) {
		return kerr.New("credstore.Vault.Delete", kerr.BackendUnavailable, err)
	}
	return nil
}

func (v *Vault) ListFingerprints() ([]model.Fingerprint, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]model.Fingerprint, 0, len(v.cached))
	for fp := range v.cached {
		out = append(out, fp)
	}
	return out, nil
}

// encodeWrapped/decodeWrapped frame a WrappedSecret as base64(nonce) + "." +
// base64(ciphertext) so the opaque vault string value round-trips exactly.
func encodeWrapped(ws model.WrappedSecret) string {
	return base64.RawStdEncoding.EncodeToString(ws.Nonce) + "." + base64.RawStdEncoding.EncodeToString(ws.Ciphertext)
}

func decodeWrapped(fp model.Fingerprint, blob string) (model.WrappedSecret, error) {
	i := indexByte(blob, '.')
	if i < 0 {
		return model.WrappedSecret{}, kerr.New("credstore.decodeWrapped", kerr.CorruptFraming, nil)
	}
	nonce, err := base64.RawStdEncoding.DecodeString(blob[:i])
	if err != nil {
		return model.WrappedSecret{}, kerr.New("credstore.decodeWrapped", kerr.CorruptFraming, err)
	}
	ct, err := base64.RawStdEncoding.DecodeString(blob[i+1:])
	if err != nil {
		return model.WrappedSecret{}, kerr.New("credstore.decodeWrapped", kerr.CorruptFraming, err)
	}
	return model.WrappedSecret{Fingerprint: fp, Nonce: nonce, Ciphertext: ct}, nil
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
