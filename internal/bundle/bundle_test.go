package bundle

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KeychainPGP/keyringcore/internal/kerr"
	"github.com/KeychainPGP/keyringcore/internal/ktest"
)

func TestFramingRoundTrip(t *testing.T) {
	entries := []Entry{
		{Certificate: []byte("cert-one")},
		{Certificate: []byte("cert-two"), SecretMaterial: []byte("secret-two")},
	}
	decoded, err := DecodePlaintext(EncodePlaintext(entries))
	require.NoError(t, err)
	require.Equal(t, entries, decoded)
}

func TestDecodePlaintextRejectsBadVersion(t *testing.T) {
	_, err := DecodePlaintext([]byte{0xff})
	require.True(t, kerr.Is(err, kerr.UnsupportedVersion))
}

func TestDecodePlaintextRejectsTruncation(t *testing.T) {
	_, err := DecodePlaintext([]byte{bundleVersion, entryKindPublicOnly, 0, 0, 0, 99})
	require.True(t, kerr.Is(err, kerr.TruncatedBundle))
}

func TestSealOpenRoundTrip(t *testing.T) {
	entries := []Entry{{Certificate: []byte("cert-bytes"), SecretMaterial: []byte("secret-bytes")}}
	envelope, err := Seal(entries, []byte("correct horse battery staple"))
	require.NoError(t, err)

	got, err := Open(envelope, []byte("correct horse battery staple"))
	require.NoError(t, err)
	require.Equal(t, entries, got)
}

func TestOpenRejectsWrongPassphrase(t *testing.T) {
	envelope, err := Seal([]Entry{{Certificate: []byte("x")}}, []byte("right"))
	require.NoError(t, err)

	_, err = Open(envelope, []byte("wrong"))
	require.True(t, kerr.Is(err, kerr.BadPassphrase))
}

func TestGeneratePassphraseShape(t *testing.T) {
	pass, err := GeneratePassphrase(rand.Reader)
	require.NoError(t, err)

	groups := strings.Split(pass, "-")
	require.Len(t, groups, passphraseGroups)
	for _, g := range groups {
		require.Len(t, g, passphraseGroupWidth)
		for _, r := range g {
			require.True(t, r >= '0' && r <= '9')
		}
	}
}

func TestGeneratePassphraseIsDeterministicOverFixedSource(t *testing.T) {
	src := ktest.NewFixedBytes([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	first, err := GeneratePassphrase(src)
	require.NoError(t, err)

	src2 := ktest.NewFixedBytes([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	second, err := GeneratePassphrase(src2)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestChunkAndReassemble(t *testing.T) {
	envelope, err := Seal([]Entry{{Certificate: []byte("a-fairly-long-certificate-blob-to-force-multiple-parts-when-chunked")}}, []byte("pw"))
	require.NoError(t, err)

	parts := Chunk(envelope, 16)
	require.Greater(t, len(parts), 1)

	r := NewReassembler()
	var done bool
	// feed parts out of order
	for i := len(parts) - 1; i >= 0; i-- {
		done, err = r.AddPart(parts[i])
		require.NoError(t, err)
	}
	require.True(t, done)

	got, err := r.Armored()
	require.NoError(t, err)
	require.Equal(t, envelope, got)
}

func TestReassemblerDuplicatePartIsIdempotent(t *testing.T) {
	parts := Chunk("short-envelope", 1000)
	require.Len(t, parts, 1)

	r := NewReassembler()
	done, err := r.AddPart(parts[0])
	require.NoError(t, err)
	require.True(t, done)

	done, err = r.AddPart(parts[0])
	require.NoError(t, err)
	require.True(t, done)
}

func TestReassemblerRejectsInconsistentTotal(t *testing.T) {
	r := NewReassembler()
	_, err := r.AddPart("KCPGP:1/3:aaa")
	require.NoError(t, err)

	_, err = r.AddPart("KCPGP:2/4:bbb")
	require.True(t, kerr.Is(err, kerr.InconsistentBundle))
}

type fakeImporter struct {
	known map[string]bool
}

func (f *fakeImporter) Import(entry Entry) (string, bool, error) {
	fp := string(entry.Certificate)
	already := f.known[fp]
	f.known[fp] = true
	return fp, already, nil
}

func TestImportTalliesSkippedAndImported(t *testing.T) {
	entries := []Entry{
		{Certificate: []byte("fp-a")},
		{Certificate: []byte("fp-b")},
	}
	envelope, err := Seal(entries, []byte("pw"))
	require.NoError(t, err)

	importer := &fakeImporter{known: map[string]bool{"fp-a": true}}
	result, err := Import(envelope, []byte("pw"), importer)
	require.NoError(t, err)

	require.Equal(t, 1, result.ImportedCount)
	require.Equal(t, 1, result.SkippedCount)
	require.Equal(t, []string{"fp-b"}, result.Imported)
}
