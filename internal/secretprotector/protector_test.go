package secretprotector

import (
	"testing"

	"github.com/KeychainPGP/keyringcore/internal/kerr"
	"github.com/KeychainPGP/keyringcore/internal/ktest"
	"github.com/KeychainPGP/keyringcore/internal/model"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatal(err)
	}

	secret := []byte("very secret key material")
	ws, err := p.Wrap(model.Fingerprint("AAAA"), secret)
	if err != nil {
		t.Fatal(err)
	}

	buf, err := p.Unwrap(ws)
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Release()

	if string(buf.Bytes()) != string(secret) {
		t.Errorf("got %q, want %q", buf.Bytes(), secret)
	}
}

func TestWrapProducesDistinctNonces(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatal(err)
	}

	a, err := p.Wrap(model.Fingerprint("AAAA"), []byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Wrap(model.Fingerprint("AAAA"), []byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	if string(a.Nonce) == string(b.Nonce) {
		t.Error("two wraps produced the same nonce")
	}
}

func TestUnwrapAfterWipeIsSessionLost(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatal(err)
	}

	ws, err := p.Wrap(model.Fingerprint("AAAA"), []byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	p.Wipe()

	_, err = p.Unwrap(ws)
	if !kerr.Is(err, kerr.SessionLost) {
		t.Errorf("got %v, want SessionLost", err)
	}
	if p.Alive() {
		t.Error("protector reports alive after Wipe")
	}
}

func TestUnwrapTamperedCiphertext(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatal(err)
	}

	ws, err := p.Wrap(model.Fingerprint("AAAA"), []byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	ws.Ciphertext[0] ^= 0xFF

	_, err = p.Unwrap(ws)
	if !kerr.Is(err, kerr.SessionLost) {
		t.Errorf("got %v, want SessionLost", err)
	}
}

func TestReleaseZeroizesAndIsIdempotent(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatal(err)
	}
	ws, err := p.Wrap(model.Fingerprint("AAAA"), []byte("topsecret"))
	if err != nil {
		t.Fatal(err)
	}
	buf, err := p.Unwrap(ws)
	if err != nil {
		t.Fatal(err)
	}

	buf.Release()
	buf.Release() // must not panic

	if got := buf.Bytes(); got != nil {
		t.Errorf("Bytes() after Release = %v, want nil", got)
	}
}

func TestNewSessionsDoNotShareKeys(t *testing.T) {
	p1, err := New()
	if err != nil {
		t.Fatal(err)
	}
	p2, err := New()
	if err != nil {
		t.Fatal(err)
	}

	ws, err := p1.Wrap(model.Fingerprint("AAAA"), []byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	// Across sessions, no WrappedSecret should be unwrapable.
	_, err = p2.Unwrap(ws)
	if !ktest.ErrorContains(err, "session_lost") {
		t.Errorf("got %v, want session_lost", err)
	}
}
