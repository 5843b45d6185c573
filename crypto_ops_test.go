package keyringcore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	keyringcore "github.com/KeychainPGP/keyringcore"
	"github.com/KeychainPGP/keyringcore/internal/kerr"
)

func TestEncryptDecryptRoundTripWithoutPassphrase(t *testing.T) {
	svc := newOPSECService(t)
	rec, err := svc.Generate("Dave Example", "dave@example.com", nil)
	require.NoError(t, err)

	ct, err := svc.Encrypt([]byte("attack at dawn"), []keyringcore.Fingerprint{rec.Fingerprint})
	require.NoError(t, err)

	pt, _, err := svc.Decrypt(ct, nil)
	require.NoError(t, err)
	require.Equal(t, []byte("attack at dawn"), pt)
}

func TestDecryptUsesPassphraseCacheOnSecondCall(t *testing.T) {
	svc := newOPSECService(t)
	rec, err := svc.Generate("Erin Example", "erin@example.com", []byte("hunter2"))
	require.NoError(t, err)

	ct, err := svc.Encrypt([]byte("first message"), []keyringcore.Fingerprint{rec.Fingerprint})
	require.NoError(t, err)

	_, _, err = svc.Decrypt(ct, nil)
	require.True(t, kerr.Is(err, kerr.PassphraseRequired))

	_, _, err = svc.Decrypt(ct, []byte("hunter2"))
	require.NoError(t, err)

	ct2, err := svc.Encrypt([]byte("second message"), []keyringcore.Fingerprint{rec.Fingerprint})
	require.NoError(t, err)

	pt2, _, err := svc.Decrypt(ct2, nil)
	require.NoError(t, err)
	require.Equal(t, []byte("second message"), pt2)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	svc := newOPSECService(t)
	rec, err := svc.Generate("Frank Example", "frank@example.com", nil)
	require.NoError(t, err)

	sig, err := svc.Sign([]byte("a signed statement"), nil)
	require.NoError(t, err)

	result, err := svc.Verify(sig)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, rec.Fingerprint, result.SignerFingerprint)
}

func TestSignWithoutActiveKeySelectedFails(t *testing.T) {
	svc := newOPSECService(t)
	_, err := svc.Sign([]byte("x"), nil)
	require.True(t, kerr.Is(err, kerr.NotFound))
}

func TestEncryptUnknownRecipientFails(t *testing.T) {
	svc := newOPSECService(t)
	_, err := svc.Encrypt([]byte("x"), []keyringcore.Fingerprint{"0000000000000000000000000000000000000000"})
	require.True(t, kerr.Is(err, kerr.NotFound))
}

func TestRevocationCertificateRegeneratesOnDemand(t *testing.T) {
	svc := newOPSECService(t)
	rec, err := svc.Generate("Grace Example", "grace@example.com", nil)
	require.NoError(t, err)

	cert, err := svc.RevocationCertificate(rec.Fingerprint, nil)
	require.NoError(t, err)
	require.NotEmpty(t, cert)
}

func TestRevocationCertificateUnknownFingerprintFails(t *testing.T) {
	svc := newOPSECService(t)
	_, err := svc.RevocationCertificate("0000000000000000000000000000000000000000", nil)
	require.True(t, kerr.Is(err, kerr.NotFound))
}
