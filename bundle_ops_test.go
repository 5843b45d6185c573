package keyringcore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	keyringcore "github.com/KeychainPGP/keyringcore"
	"github.com/KeychainPGP/keyringcore/internal/kerr"
)

func TestExportImportBundleRoundTrip(t *testing.T) {
	source := newOPSECService(t)
	rec, err := source.Generate("Niaj Example", "niaj@example.com", nil)
	require.NoError(t, err)

	export, err := source.ExportBundle([]keyringcore.Fingerprint{rec.Fingerprint})
	require.NoError(t, err)
	require.NotEmpty(t, export.Passphrase)
	require.NotEmpty(t, export.FileBlob)

	dest := newOPSECService(t)
	result, err := dest.ImportBundle(string(export.FileBlob), export.Passphrase)
	require.NoError(t, err)
	require.Equal(t, 1, result.ImportedCount)
	require.Equal(t, 0, result.SkippedCount)

	// The exported entry carried Niaj's secret material, so the
	// destination session can sign with it immediately.
	require.NoError(t, dest.SetActiveSigningKey(rec.Fingerprint))
	sig, err := dest.Sign([]byte("hello from the other device"), nil)
	require.NoError(t, err)

	verified, err := dest.Verify(sig)
	require.NoError(t, err)
	require.True(t, verified.Valid)
}

func TestImportBundleWrongPassphraseFails(t *testing.T) {
	source := newOPSECService(t)
	_, err := source.Generate("Olivia Example", "olivia@example.com", nil)
	require.NoError(t, err)

	export, err := source.ExportBundle(nil)
	require.NoError(t, err)

	dest := newOPSECService(t)
	_, err = dest.ImportBundle(string(export.FileBlob), "wrong-passphrase")
	require.True(t, kerr.Is(err, kerr.BadPassphrase))
}

func TestImportBundleFromPartsIsOrderIndependent(t *testing.T) {
	source := newOPSECService(t)
	_, err := source.Generate("Peggy Example", "peggy@example.com", nil)
	require.NoError(t, err)

	export, err := source.ExportBundle(nil)
	require.NoError(t, err)
	require.NotEmpty(t, export.QRParts)

	reversed := make([]string, len(export.QRParts))
	for i, part := range export.QRParts {
		reversed[len(export.QRParts)-1-i] = part
	}

	dest := newOPSECService(t)
	result, err := keyringcore.ImportBundleFromParts(dest, reversed, export.Passphrase)
	require.NoError(t, err)
	require.Equal(t, 1, result.ImportedCount)
}

func TestImportBundleFromPartsFailsWhenTruncated(t *testing.T) {
	source := newOPSECService(t)
	_, err := source.Generate("Quentin Example", "quentin@example.com", nil)
	require.NoError(t, err)

	export, err := source.ExportBundle(nil)
	require.NoError(t, err)
	require.NotEmpty(t, export.QRParts)

	dest := newOPSECService(t)
	_, err = keyringcore.ImportBundleFromParts(dest, export.QRParts[:len(export.QRParts)-1], export.Passphrase)
	require.True(t, kerr.Is(err, kerr.TruncatedBundle))
}

func TestReimportingAKnownKeyCountsAsSkipped(t *testing.T) {
	source := newOPSECService(t)
	_, err := source.Generate("Romeo Example", "romeo@example.com", nil)
	require.NoError(t, err)

	export, err := source.ExportBundle(nil)
	require.NoError(t, err)

	dest := newOPSECService(t)
	first, err := dest.ImportBundle(string(export.FileBlob), export.Passphrase)
	require.NoError(t, err)
	require.Equal(t, 1, first.ImportedCount)

	second, err := dest.ImportBundle(string(export.FileBlob), export.Passphrase)
	require.NoError(t, err)
	require.Equal(t, 0, second.ImportedCount)
	require.Equal(t, 1, second.SkippedCount)
}
