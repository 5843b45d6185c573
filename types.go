// Package keyringcore implements the Keyring Core: the in-process OpenPGP
// library that performs cryptographic operations, protects secret key
// material behind an ephemeral session wrapping key, indexes public
// metadata, and packages keyrings into multi-part transfer bundles.
//
// Everything here is orchestration. The cryptography lives in
// internal/pgpengine, secret wrapping in internal/secretprotector, at-rest
// storage in internal/credstore and internal/metastore, and the transfer
// format in internal/bundle. Service ties them together behind
// the command surface a UI shell calls into.
package keyringcore

import (
	"github.com/KeychainPGP/keyringcore/internal/model"
)

// These aliases re-export the shared data model so callers never need to
// import internal/model directly.
type (
	Fingerprint  = model.Fingerprint
	UserID       = model.UserID
	TrustLevel   = model.TrustLevel
	SubkeyInfo   = model.SubkeyInfo
	CertInfo     = model.CertInfo
	KeyRecord    = model.KeyRecord
	SignerInfo   = model.SignerInfo
	VerifyResult = model.VerifyResult
)

const (
	TrustUnknown  = model.TrustUnknown
	TrustImported = model.TrustImported
	TrustVerified = model.TrustVerified
)

// ParseFingerprint validates s as a canonical hex fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) { return model.ParseFingerprint(s) }
