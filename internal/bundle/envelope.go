package bundle

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/argon2"

	"github.com/KeychainPGP/keyringcore/internal/kerr"
)

// argon2Params are fixed per bundleVersion so a recipient can derive the KDF
// configuration purely from the envelope's version byte.
type argon2Params struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32
}

var paramsByVersion = map[byte]argon2Params{
	bundleVersion: {time: 3, memory: 64 * 1024, threads: 4, keyLen: 32},
}

const saltSize = 16

func deriveKey(passphrase []byte, salt []byte, version byte) ([]byte, error) {
	p, ok := paramsByVersion[version]
	if !ok {
		return nil, kerr.New("bundle.deriveKey", kerr.UnsupportedVersion, nil)
	}
	return argon2.IDKey(passphrase, salt, p.time, p.memory, p.threads, p.keyLen), nil
}

// Seal frames entries, encrypts them under a key derived from passphrase,
// and returns the base64-armored envelope: {version | salt | nonce | ciphertext}.
func Seal(entries []Entry, passphrase []byte) (string, error) {
	plaintext := EncodePlaintext(entries)

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", kerr.New("bundle.Seal", kerr.BackendUnavailable, err)
	}

	key, err := deriveKey(passphrase, salt, bundleVersion)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", kerr.New("bundle.Seal", kerr.BackendUnavailable, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", kerr.New("bundle.Seal", kerr.BackendUnavailable, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", kerr.New("bundle.Seal", kerr.BackendUnavailable, err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	envelope := make([]byte, 0, 1+saltSize+len(nonce)+len(ciphertext))
	envelope = append(envelope, bundleVersion)
	envelope = append(envelope, salt...)
	envelope = append(envelope, nonce...)
	envelope = append(envelope, ciphertext...)

	return base64.StdEncoding.EncodeToString(envelope), nil
}

// Open reverses Seal: decode, derive the key from the supplied passphrase,
// and decrypt back to the framed plaintext entries.
func Open(armoredEnvelope string, passphrase []byte) ([]Entry, error) {
	envelope, err := base64.StdEncoding.DecodeString(armoredEnvelope)
	if err != nil {
		return nil, kerr.New("bundle.Open", kerr.CorruptFraming, err)
	}
	if len(envelope) < 1+saltSize {
		return nil, kerr.New("bundle.Open", kerr.TruncatedBundle, nil)
	}

	version := envelope[0]
	if _, ok := paramsByVersion[version]; !ok {
		return nil, kerr.New("bundle.Open", kerr.UnsupportedVersion, nil)
	}
	salt := envelope[1 : 1+saltSize]
	rest := envelope[1+saltSize:]

	key, err := deriveKey(passphrase, salt, version)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, kerr.New("bundle.Open", kerr.BackendUnavailable, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, kerr.New("bundle.Open", kerr.BackendUnavailable, err)
	}

	if len(rest) < aead.NonceSize() {
		return nil, kerr.New("bundle.Open", kerr.TruncatedBundle, nil)
	}
	nonce := rest[:aead.NonceSize()]
	ciphertext := rest[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, kerr.New("bundle.Open", kerr.BadPassphrase, err)
	}

	return DecodePlaintext(plaintext)
}
