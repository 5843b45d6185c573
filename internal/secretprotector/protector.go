// Package secretprotector implements the session-scoped wrapping of secret
// key material. It owns the SessionWrappingKey and is the only component
// that ever sees an unwrapped SecretMaterial outside of the CryptoEngine
// call that consumes it.
package secretprotector

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/KeychainPGP/keyringcore/internal/kerr"
	"github.com/KeychainPGP/keyringcore/internal/model"
)

const (
	keySize   = 32 // AES-256
	nonceSize = 12 // 96 bits
)

// SecretBuffer is a container for plaintext secret bytes. Its backing array
// is zeroed on every exit path — Release is safe to call more than once,
// and Release is also what a deferred recover() must call before
// re-panicking, so a panic mid-operation never leaves secret bytes parked
// in memory.
type SecretBuffer struct {
	mu   sync.Mutex
	data []byte
}

func newSecretBuffer(b []byte) *SecretBuffer {
	return &SecretBuffer{data: b}
}

// Bytes returns the buffer's current contents. The slice aliases the
// buffer's backing array; callers must not retain it past Release.
func (b *SecretBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

// Release zeroizes the backing array. Safe to call multiple times.
func (b *SecretBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	zero(b.data)
	b.data = nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Protector holds the ephemeral session wrapping key and wraps/unwraps
// secret bytes with it. It is effectively a process-wide singleton guarded
// by its own mutex; construct exactly one per session.
type Protector struct {
	mu  sync.Mutex
	key []byte // nil after Wipe(); always keySize bytes otherwise
}

// New generates a fresh SessionWrappingKey from a cryptographically secure
// source. The key never touches any persistent medium and is not
// extractable through the Protector's exported surface.
func New() (*Protector, error) {
	k := make([]byte, keySize)
	if _, err := rand.Read(k); err != nil {
		return nil, kerr.New("secretprotector.New", kerr.BackendUnavailable, err)
	}
	return &Protector{key: k}, nil
}

func (p *Protector) aead() (cipher.AEAD, error) {
	p.mu.Lock()
	key := p.key
	p.mu.Unlock()

	if key == nil {
		return nil, kerr.New("secretprotector", kerr.SessionLost, nil)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, kerr.New("secretprotector", kerr.BackendUnavailable, err)
	}
	return cipher.NewGCM(block)
}

// Wrap encrypts secret bytes under the session wrapping key with a fresh
// random nonce. Reuse of a nonce under the same key never happens because
// each call draws a new one from crypto/rand; a read failure is a hard
// failure, not a retry.
func (p *Protector) Wrap(fp model.Fingerprint, secret []byte) (model.WrappedSecret, error) {
	aead, err := p.aead()
	if err != nil {
		return model.WrappedSecret{}, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return model.WrappedSecret{}, kerr.New("secretprotector.Wrap", kerr.BackendUnavailable, err)
	}

	ct := aead.Seal(nil, nonce, secret, []byte(fp))
	return model.WrappedSecret{Fingerprint: fp, Ciphertext: ct, Nonce: nonce}, nil
}

// Unwrap decrypts a WrappedSecret into a SecretBuffer the caller must
// Release. Any failure — wrong session key, tampered ciphertext, or a
// nonce/key mismatch — is reported uniformly as SessionLost, never a
// panic.
func (p *Protector) Unwrap(ws model.WrappedSecret) (*SecretBuffer, error) {
	aead, err := p.aead()
	if err != nil {
		return nil, err
	}

	pt, err := aead.Open(nil, ws.Nonce, ws.Ciphertext, []byte(ws.Fingerprint))
	if err != nil {
		return nil, kerr.New("secretprotector.Unwrap", kerr.SessionLost, err)
	}
	return newSecretBuffer(pt), nil
}

// Wipe replaces the session wrapping key with zeros. Every existing
// WrappedSecret becomes permanently un-unwrappable after this call — that
// is the intended property, not a bug. Called on OPSEC panic-wipe and on
// normal session teardown.
func (p *Protector) Wipe() {
	p.mu.Lock()
	defer p.mu.Unlock()
	zero(p.key)
	p.key = nil
}

// Alive reports whether the session wrapping key is still live. Used by
// callers that want to short-circuit to SessionLost without attempting a
// doomed Unwrap.
func (p *Protector) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.key != nil
}

func (p *Protector) String() string {
	return fmt.Sprintf("secretprotector.Protector{alive=%v}", p.Alive())
}
