package credstore

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/KeychainPGP/keyringcore/internal/kerr"
	"github.com/KeychainPGP/keyringcore/internal/model"
)

// File is the CredentialStore backend used when no OS vault is available,
// or the vault returned a transport error on write. Each WrappedSecret is
// stored as its own file at {secretsDir}/{fingerprint}.key.
type File struct {
	mu  sync.Mutex
	dir string
	log zerolog.Logger
}

// NewFile creates (if needed) secretsDir with owner-only permissions and
// returns a File backend rooted there.
func NewFile(secretsDir string, log zerolog.Logger) (*File, error) {
	if err := os.MkdirAll(secretsDir, 0o700); err != nil {
		return nil, kerr.New("credstore.NewFile", kerr.BackendUnavailable, err)
	}
	abs, err := filepath.Abs(secretsDir)
	if err != nil {
		return nil, kerr.New("credstore.NewFile", kerr.BackendUnavailable, err)
	}
	return &File{dir: abs, log: log.With().Str("component", "credstore.file").Logger()}, nil
}

// path composes {secretsDir}/{fingerprint}.key and rejects any fingerprint
// that would resolve outside secretsDir — fingerprints are hex-validated
// before this is ever reached, so the only way out is a "." or "/" in an
// already-invalid string, which validate() already refused.
func (f *File) path(fp model.Fingerprint) (string, error) {
	p := filepath.Join(f.dir, string(fp)+".key")
	rel, err := filepath.Rel(f.dir, p)
	if err != nil || rel == ".." || len(rel) >= 2 && rel[:2] == ".." {
		return "", kerr.New("credstore.File.path", kerr.InvalidIdentifier, nil)
	}
	return p, nil
}

const fileRecordVersion = 1

// encodeRecord frames a WrappedSecret as version:u8 | nonceLen:u16 | nonce |
// ciphertext, an internally self-describing record.
func encodeRecord(ws model.WrappedSecret) []byte {
	buf := make([]byte, 0, 1+2+len(ws.Nonce)+len(ws.Ciphertext))
	buf = append(buf, fileRecordVersion)
	var nl [2]byte
	binary.BigEndian.PutUint16(nl[:], uint16(len(ws.Nonce)))
	buf = append(buf, nl[:]...)
	buf = append(buf, ws.Nonce...)
	buf = append(buf, ws.Ciphertext...)
	return buf
}

func decodeRecord(fp model.Fingerprint, raw []byte) (model.WrappedSecret, error) {
	if len(raw) < 3 {
		return model.WrappedSecret{}, kerr.New("credstore.decodeRecord", kerr.CorruptFraming, nil)
	}
	if raw[0] != fileRecordVersion {
		return model.WrappedSecret{}, kerr.New("credstore.decodeRecord", kerr.UnsupportedVersion, nil)
	}
	nl := int(binary.BigEndian.Uint16(raw[1:3]))
	if len(raw) < 3+nl {
		return model.WrappedSecret{}, kerr.New("credstore.decodeRecord", kerr.CorruptFraming, nil)
	}
	nonce := raw[3 : 3+nl]
	ct := raw[3+nl:]
	return model.WrappedSecret{Fingerprint: fp, Nonce: append([]byte(nil), nonce...), Ciphertext: append([]byte(nil), ct...)}, nil
}

func (f *File) Put(fp model.Fingerprint, ws model.WrappedSecret) error {
	fp, err := validate(fp)
	if err != nil {
		return err
	}
	dest, err := f.path(fp)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return kerr.New("credstore.File.Put", kerr.BackendUnavailable, err)
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(0o600); err != nil {
		return kerr.New("credstore.File.Put", kerr.BackendUnavailable, err)
	}
	if _, err := tmp.Write(encodeRecord(ws)); err != nil {
		return kerr.New("credstore.File.Put", kerr.BackendUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		return kerr.New("credstore.File.Put", kerr.BackendUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return kerr.New("credstore.File.Put", kerr.BackendUnavailable, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return kerr.New("credstore.File.Put", kerr.BackendUnavailable, err)
	}
	ok = true
	return nil
}

func (f *File) Get(fp model.Fingerprint) (model.WrappedSecret, bool, error) {
	fp, err := validate(fp)
	if err != nil {
		return model.WrappedSecret{}, false, err
	}
	p, err := f.path(fp)
	if err != nil {
		return model.WrappedSecret{}, false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return model.WrappedSecret{}, false, nil
	}
	if err != nil {
		return model.WrappedSecret{}, false, kerr.New("credstore.File.Get", kerr.BackendUnavailable, err)
	}
	ws, err := decodeRecord(fp, raw)
	if err != nil {
		return model.WrappedSecret{}, false, err
	}
	return ws, true, nil
}

// Delete overwrites the file contents with zeros before unlinking — a
// best-effort measure against casual recovery; it cannot guarantee erasure
// on copy-on-write or flash-translation-layer filesystems (spec §4.3).
func (f *File) Delete(fp model.Fingerprint) error {
	fp, err := validate(fp)
	if err != nil {
		return err
	}
	p, err := f.path(fp)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.OpenFile(p, os.O_WRONLY, 0o600)
	if os.IsNotExist(err) {
		return nil // idempotent
	}
	if err != nil {
		return kerr.New("credstore.File.Delete", kerr.BackendUnavailable, err)
	}
	if fi, serr := fh.Stat(); serr == nil {
		zeros := make([]byte, fi.Size())
		_, _ = fh.WriteAt(zeros, 0)
		_ = fh.Sync()
	}
	fh.Close()

	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return kerr.New("credstore.File.Delete", kerr.BackendUnavailable, err)
	}
	return nil
}

func (f *File) ListFingerprints() ([]model.Fingerprint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, kerr.New("credstore.File.ListFingerprints", kerr.BackendUnavailable, err)
	}

	out := make([]model.Fingerprint, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		const suffix = ".key"
		if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
			continue
		}
		fp, err := model.ParseFingerprint(name[:len(name)-len(suffix)])
		if err != nil {
			continue // skip files that aren't ours
		}
		out = append(out, fp)
	}
	return out, nil
}

var _ fmt.Stringer = (*File)(nil)

func (f *File) String() string { return fmt.Sprintf("credstore.File{dir=%s}", f.dir) }
