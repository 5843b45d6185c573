package pgpengine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KeychainPGP/keyringcore/internal/kerr"
)

func TestGenerateKeypairProducesUsableMaterial(t *testing.T) {
	e := New(false)
	km, err := e.GenerateKeypair("Alice Example", "alice@example.com", nil)
	require.NoError(t, err)
	require.NotEmpty(t, km.CertificateBytes)
	require.NotEmpty(t, km.SecretMaterial)
	require.NotEmpty(t, km.RevocationCert)
	require.Len(t, string(km.Fingerprint), 40)

	info, err := e.Inspect(km.CertificateBytes)
	require.NoError(t, err)
	require.Equal(t, km.Fingerprint, info.Fingerprint)
	require.False(t, info.HasSecret) // CertificateBytes carries no private key material
	require.NotEmpty(t, info.Subkeys)
}

func TestGenerateKeypairWithPassphraseRequiresItToDecrypt(t *testing.T) {
	e := New(false)
	km, err := e.GenerateKeypair("Bob Example", "bob@example.com", []byte("hunter2"))
	require.NoError(t, err)

	ct, err := e.Encrypt([]byte("hello bob"), [][]byte{km.CertificateBytes})
	require.NoError(t, err)

	_, _, err = e.Decrypt(ct, km.SecretMaterial, nil)
	require.True(t, kerr.Is(err, kerr.PassphraseRequired))

	_, _, err = e.Decrypt(ct, km.SecretMaterial, []byte("wrong"))
	require.True(t, kerr.Is(err, kerr.BadPassphrase))

	pt, _, err := e.Decrypt(ct, km.SecretMaterial, []byte("hunter2"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello bob"), pt)
}

func TestEncryptRejectsEmptyRecipients(t *testing.T) {
	e := New(false)
	_, err := e.Encrypt([]byte("x"), nil)
	require.True(t, kerr.Is(err, kerr.NoRecipients))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	e := New(false)
	km, err := e.GenerateKeypair("Carol Example", "carol@example.com", nil)
	require.NoError(t, err)

	ct, err := e.Encrypt([]byte("a secret message"), [][]byte{km.CertificateBytes})
	require.NoError(t, err)
	require.NotEmpty(t, ct)

	pt, signers, err := e.Decrypt(ct, km.SecretMaterial, nil)
	require.NoError(t, err)
	require.Equal(t, []byte("a secret message"), pt)
	require.Empty(t, signers)
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	e := New(false)
	km, err := e.GenerateKeypair("Dave Example", "dave@example.com", nil)
	require.NoError(t, err)

	data := []byte("payload to sign")
	sig, err := e.Sign(data, km.SecretMaterial, nil)
	require.NoError(t, err)
	require.NotEmpty(t, sig)

	result, err := e.Verify(sig, [][]byte{km.CertificateBytes})
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, km.Fingerprint, result.SignerFingerprint)
}

func TestVerifyWithWrongCandidateIsNotValid(t *testing.T) {
	e := New(false)
	signer, err := e.GenerateKeypair("Erin Example", "erin@example.com", nil)
	require.NoError(t, err)
	other, err := e.GenerateKeypair("Frank Example", "frank@example.com", nil)
	require.NoError(t, err)

	data := []byte("payload")
	sig, err := e.Sign(data, signer.SecretMaterial, nil)
	require.NoError(t, err)

	result, err := e.Verify(sig, [][]byte{other.CertificateBytes})
	require.NoError(t, err)
	require.False(t, result.Valid)
}
