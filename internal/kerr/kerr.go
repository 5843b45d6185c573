// Package kerr defines the error kinds returned across the keyring component
// boundary. Every public operation fails with a Kind rather than an opaque
// string, so callers can switch on what went wrong instead of grepping
// error text.
package kerr

import "fmt"

// Kind classifies a failure. The zero value is never returned by the core.
type Kind int

const (
	_ Kind = iota
	InvalidIdentifier
	NotFound
	Duplicate
	MalformedCertificate
	MalformedCiphertext
	Tampered
	PassphraseRequired
	BadPassphrase
	WrongKey
	RecipientUnusable
	NoRecipients
	SessionLost
	BackendUnavailable
	InconsistentBundle
	TruncatedBundle
	CorruptFraming
	UnsupportedVersion
	CapacityExceeded
	Cancelled
)

var names = map[Kind]string{
	InvalidIdentifier:     "invalid_identifier",
	NotFound:              "not_found",
	Duplicate:             "duplicate",
	MalformedCertificate:  "malformed_certificate",
	MalformedCiphertext:   "malformed_ciphertext",
	Tampered:              "tampered",
	PassphraseRequired:    "passphrase_required",
	BadPassphrase:         "bad_passphrase",
	WrongKey:              "wrong_key",
	RecipientUnusable:     "recipient_unusable",
	NoRecipients:          "no_recipients",
	SessionLost:           "session_lost",
	BackendUnavailable:    "backend_unavailable",
	InconsistentBundle:    "inconsistent_bundle",
	TruncatedBundle:       "truncated_bundle",
	CorruptFraming:        "corrupt_framing",
	UnsupportedVersion:    "unsupported_version",
	CapacityExceeded:      "capacity_exceeded",
	Cancelled:             "cancelled",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "unknown"
}

// Error wraps an underlying cause with a Kind. The message never includes
// secret bytes, passphrases, or plaintext — callers format their own
// human-readable prose from Kind.
type Error struct {
	Kind Kind
	Op   string
	err  error
}

func (e *Error) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// Is lets errors.Is(err, &Error{Kind: k}) work by comparing Kind, not
// identity — see the package-level Is helper below for the ergonomic form.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates a *Error of the given Kind, wrapping cause (which may be nil).
func New(op string, kind Kind, cause error) *Error {
	return &Error{Kind: kind, Op: op, err: cause}
}

// Of returns the Kind of err if it (or something it wraps) is a *Error,
// and false otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
