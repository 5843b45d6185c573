package keyringcore_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	keyringcore "github.com/KeychainPGP/keyringcore"
	"github.com/KeychainPGP/keyringcore/internal/kerr"
)

func newOPSECService(t *testing.T) *keyringcore.Service {
	t.Helper()
	svc, err := keyringcore.New(keyringcore.Config{OPSEC: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return svc
}

func TestGenerateProducesOwnKeyAndActivatesSigning(t *testing.T) {
	svc := newOPSECService(t)

	rec, err := svc.Generate("Alice Example", "alice@example.com", nil)
	require.NoError(t, err)
	require.True(t, rec.IsOwnKey)
	require.Equal(t, "Alice Example", rec.PrimaryUserID.Name)
	require.Equal(t, rec.Fingerprint, svc.ActiveSigningKey())

	recs, err := svc.List()
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestGenerateSecondOwnKeyDoesNotDisplaceActiveSigner(t *testing.T) {
	svc := newOPSECService(t)

	first, err := svc.Generate("Alice Example", "alice@example.com", nil)
	require.NoError(t, err)

	_, err = svc.Generate("Alice Work", "alice@work.example.com", nil)
	require.NoError(t, err)

	require.Equal(t, first.Fingerprint, svc.ActiveSigningKey())
}

func TestExportRequiresExplicitSecretOptIn(t *testing.T) {
	svc := newOPSECService(t)
	rec, err := svc.Generate("Alice Example", "alice@example.com", nil)
	require.NoError(t, err)

	pub, err := svc.Export(rec.Fingerprint, false)
	require.NoError(t, err)
	require.Equal(t, rec.CertificateBytes, pub)

	secret, err := svc.Export(rec.Fingerprint, true)
	require.NoError(t, err)
	require.NotEmpty(t, secret)
	require.NotEqual(t, pub, secret)
}

func TestImportUpgradesContactToOwnKeyAndNeverDowngrades(t *testing.T) {
	alice := newOPSECService(t)
	rec, err := alice.Generate("Alice Example", "alice@example.com", nil)
	require.NoError(t, err)

	secret, err := alice.Export(rec.Fingerprint, true)
	require.NoError(t, err)
	pub, err := alice.Export(rec.Fingerprint, false)
	require.NoError(t, err)

	bob := newOPSECService(t)
	asContact, err := bob.Import(pub)
	require.NoError(t, err)
	require.False(t, asContact.IsOwnKey)

	asOwn, err := bob.Import(secret)
	require.NoError(t, err)
	require.True(t, asOwn.IsOwnKey)
	require.Equal(t, asContact.Fingerprint, asOwn.Fingerprint)

	again, err := bob.Import(pub)
	require.NoError(t, err)
	require.True(t, again.IsOwnKey)
}

func TestDeleteIsIdempotentAndClearsActiveSigner(t *testing.T) {
	svc := newOPSECService(t)
	rec, err := svc.Generate("Alice Example", "alice@example.com", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(rec.Fingerprint))
	require.NoError(t, svc.Delete(rec.Fingerprint))
	require.Empty(t, svc.ActiveSigningKey())

	_, err = svc.Export(rec.Fingerprint, false)
	require.True(t, kerr.Is(err, kerr.NotFound))
}

func TestSearchMatchesNameEmailAndFingerprintSuffix(t *testing.T) {
	svc := newOPSECService(t)
	rec, err := svc.Generate("Carol Example", "carol@example.com", nil)
	require.NoError(t, err)

	byName, err := svc.Search("carol")
	require.NoError(t, err)
	require.Len(t, byName, 1)

	bySuffix, err := svc.Search(string(rec.Fingerprint[len(rec.Fingerprint)-6:]))
	require.NoError(t, err)
	require.Len(t, bySuffix, 1)

	byMiss, err := svc.Search("nobody-here")
	require.NoError(t, err)
	require.Empty(t, byMiss)
}
