// Package credstore implements pluggable at-rest storage for WrappedSecrets:
// an OS credential vault, an atomic on-disk file backend, and an in-memory
// backend used unconditionally in OPSEC mode. Exactly one backend is active
// per session; failover is decided once at construction, never per-call.
package credstore

import (
	"github.com/KeychainPGP/keyringcore/internal/model"
)

// Store is the contract every CredentialStore backend implements.
type Store interface {
	Put(fp model.Fingerprint, ws model.WrappedSecret) error
	Get(fp model.Fingerprint) (model.WrappedSecret, bool, error)
	Delete(fp model.Fingerprint) error
	ListFingerprints() ([]model.Fingerprint, error)
}

// validate re-parses fp so every backend rejects a malformed fingerprint
// before it's woven into a path, a keychain service name, or an index key.
func validate(fp model.Fingerprint) (model.Fingerprint, error) {
	return model.ParseFingerprint(string(fp))
}
