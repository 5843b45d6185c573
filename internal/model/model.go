// Package model holds the data types shared across the keyring components:
// CryptoEngine, SecretProtector, CredentialStore, MetadataStore, and
// BundleCodec all exchange values of these types without depending on the
// orchestration layer, which avoids an import cycle back to the root
// package.
package model

import (
	"regexp"
	"time"

	"github.com/KeychainPGP/keyringcore/internal/kerr"
)

// fingerprintRE matches the canonical hex fingerprint shape: 40 chars (v4)
// or 64 chars (v6), uppercase hex only.
var fingerprintRE = regexp.MustCompile(`^[0-9A-F]{40}$|^[0-9A-F]{64}$`)

// Fingerprint is the canonical hexadecimal identifier of a certificate's
// primary key. It must be validated with ParseFingerprint on every ingress
// boundary before it's used to compose a filesystem path or store key.
type Fingerprint string

// ParseFingerprint validates s as a pure-hex fingerprint and returns it.
// This is the single chokepoint every backend must call before using a
// caller-supplied fingerprint in a path or index lookup.
func ParseFingerprint(s string) (Fingerprint, error) {
	if !fingerprintRE.MatchString(s) {
		return "", kerr.New("ParseFingerprint", kerr.InvalidIdentifier, nil)
	}
	return Fingerprint(s), nil
}

func (f Fingerprint) String() string { return string(f) }

// UserID is a (display name, email) pair extracted from a certificate's
// user-id packets. Either half may be empty.
type UserID struct {
	Name  string
	Email string
}

// TrustLevel records how much a contact certificate is trusted.
type TrustLevel int

const (
	TrustUnknown TrustLevel = iota
	TrustImported
	TrustVerified
)

func (t TrustLevel) String() string {
	switch t {
	case TrustImported:
		return "imported"
	case TrustVerified:
		return "verified"
	default:
		return "unknown"
	}
}

// SubkeyInfo describes one subkey of a certificate.
type SubkeyInfo struct {
	Fingerprint  Fingerprint
	Capabilities []string
	CreatedAt    time.Time
	ExpiresAt    *time.Time
	Revoked      bool
}

// CertInfo is the decoded, side-effect-free view of a certificate produced
// by CryptoEngine.Inspect.
type CertInfo struct {
	Fingerprint Fingerprint
	UserIDs     []UserID
	Algorithm   string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	HasSecret   bool
	Subkeys     []SubkeyInfo
}

// KeyRecord is the persistent metadata row owned by the MetadataStore.
type KeyRecord struct {
	Fingerprint      Fingerprint
	PrimaryUserID    UserID
	AllUserIDs       []UserID
	AlgorithmLabel   string
	CreatedAt        time.Time
	ExpiresAt        *time.Time
	TrustLevel       TrustLevel
	IsOwnKey         bool
	CertificateBytes []byte
	AddedAt          time.Time
}

// WrappedSecret is secret key material encrypted under the session wrapping
// key, as stored at rest by a CredentialStore backend.
type WrappedSecret struct {
	Fingerprint Fingerprint
	Ciphertext  []byte
	Nonce       []byte
}

// SignerInfo reports the outcome of checking one candidate signature.
type SignerInfo struct {
	SignerFingerprint Fingerprint
	Valid             bool
	VerifiedAt        time.Time
}

// VerifyResult is the outcome of KeyringService.Verify.
type VerifyResult struct {
	Valid             bool
	SignerFingerprint Fingerprint
	VerifiedAt        time.Time
	Trust             TrustLevel
}
