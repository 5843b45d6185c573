// Package ktest contains helper functions that are useful for writing tests
// against the keyring core.
package ktest

import (
	"strings"
	"testing"
)

// ErrorContains reports whether have's message contains the want substring.
// A nil have only matches an empty want, so a single helper covers both the
// "must fail with this kind of message" and "must not fail at all" cases.
func ErrorContains(have error, want string) bool {
	if have == nil {
		return want == ""
	}
	return want != "" && strings.Contains(have.Error(), want)
}

// R recovers a panic and calls t.Fatal().
//
// Subtests run in their own goroutine, so a top-level defer in the parent
// doesn't see their panics. Call this inside the subtest closure instead.
func R(t *testing.T) {
	t.Helper()
	if r := recover(); r != nil {
		t.Fatalf("panic recover: %v", r)
	}
}

// FixedBytes returns an io.Reader that yields the given bytes and then an
// infinite stream of zeroes; useful for making digit-rejection-sampling code
// deterministic in tests without disabling the rejection logic itself.
type FixedBytes struct {
	data []byte
	pos  int
}

func NewFixedBytes(data []byte) *FixedBytes { return &FixedBytes{data: data} }

func (f *FixedBytes) Read(p []byte) (int, error) {
	for i := range p {
		if f.pos < len(f.data) {
			p[i] = f.data[f.pos]
			f.pos++
		} else {
			p[i] = 0
		}
	}
	return len(p), nil
}
