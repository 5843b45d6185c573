package credstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/KeychainPGP/keyringcore/internal/kerr"
	"github.com/KeychainPGP/keyringcore/internal/model"
)

const fp40 = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// runContract exercises the common Store contract against any backend;
// vault.go is not exercised by these tests since it needs a real OS
// credential service, which isn't available in CI sandboxes.
func runContract(t *testing.T, s Store) {
	t.Helper()

	fp := model.Fingerprint(fp40)
	ws := model.WrappedSecret{Fingerprint: fp, Nonce: []byte("nonce123456"), Ciphertext: []byte("ciphertext-bytes")}

	_, ok, err := s.Get(fp)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Put(fp, ws))

	got, ok, err := s.Get(fp)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ws.Ciphertext, got.Ciphertext)
	require.Equal(t, ws.Nonce, got.Nonce)

	list, err := s.ListFingerprints()
	require.NoError(t, err)
	require.Contains(t, list, fp)

	require.NoError(t, s.Delete(fp))
	_, ok, err = s.Get(fp)
	require.NoError(t, err)
	require.False(t, ok)

	// delete is idempotent
	require.NoError(t, s.Delete(fp))
}

func TestMemoryContract(t *testing.T) {
	runContract(t, NewMemory())
}

func TestFileContract(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir, zerolog.Nop())
	require.NoError(t, err)
	runContract(t, f)
}

func TestFileRejectsInvalidFingerprint(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir, zerolog.Nop())
	require.NoError(t, err)

	err = f.Put(model.Fingerprint("../../etc/passwd"), model.WrappedSecret{})
	if !kerr.Is(err, kerr.InvalidIdentifier) {
		t.Errorf("got %v, want InvalidIdentifier", err)
	}
}

func TestMemoryRejectsInvalidFingerprint(t *testing.T) {
	m := NewMemory()
	err := m.Put(model.Fingerprint("not-hex"), model.WrappedSecret{})
	if !kerr.Is(err, kerr.InvalidIdentifier) {
		t.Errorf("got %v, want InvalidIdentifier", err)
	}
}

func TestFileDeleteZeroesBeforeUnlink(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir, zerolog.Nop())
	require.NoError(t, err)

	fp := model.Fingerprint(fp40)
	require.NoError(t, f.Put(fp, model.WrappedSecret{Fingerprint: fp, Nonce: []byte("123456789012"), Ciphertext: []byte("super-secret")}))

	p, err := f.path(fp)
	require.NoError(t, err)
	// A second hard link shares the file's contents, so it still shows them
	// after Delete has unlinked the .key name.
	observer := filepath.Join(dir, "observer")
	require.NoError(t, os.Link(p, observer))
	require.NoError(t, f.Delete(fp))

	_, statErr := os.Stat(p)
	require.True(t, os.IsNotExist(statErr))

	leftover, err := os.ReadFile(observer)
	require.NoError(t, err)
	require.NotEmpty(t, leftover)
	require.Equal(t, make([]byte, len(leftover)), leftover)
}
