// Package pgpengine implements the CryptoEngine component: stateless
// OpenPGP primitives layered over github.com/ProtonMail/go-crypto/openpgp.
// Nothing in this package touches disk or any global state; the only
// ambient input is the system clock, read for verification timestamps and
// expiry checks.
package pgpengine

import (
	"bytes"
	"crypto"
	"io"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	pgperrors "github.com/ProtonMail/go-crypto/openpgp/errors"
	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/KeychainPGP/keyringcore/internal/kerr"
	"github.com/KeychainPGP/keyringcore/internal/model"
)

// defaultKeyLifetime is the two-year validity period certified onto every
// key generated by this engine.
const defaultKeyLifetime = 2 * 365 * 24 * time.Hour

// Engine implements CryptoEngine. IncludeArmorMetadata selects whether
// armorHeaders passes armor.Encode a nil or an empty header map. The armor
// package writes only the headers it is given, so armored output carries no
// Version/Comment headers with either setting.
type Engine struct {
	IncludeArmorMetadata bool
}

// New constructs an Engine. includeArmorMetadata corresponds to spec's
// include_armor_metadata configuration flag.
func New(includeArmorMetadata bool) *Engine {
	return &Engine{IncludeArmorMetadata: includeArmorMetadata}
}

func (e *Engine) armorHeaders() map[string]string {
	if e.IncludeArmorMetadata {
		return nil
	}
	return map[string]string{}
}

// KeyMaterial is the byproduct of GenerateKeypair.
type KeyMaterial struct {
	CertificateBytes []byte
	SecretMaterial   []byte
	RevocationCert   []byte
	Fingerprint      model.Fingerprint
}

// GenerateKeypair produces an Ed25519 primary signing key bound to an
// X25519 encryption subkey, certified with a two-year default expiration,
// plus a standalone revocation certificate the caller must persist or
// expose.
func (e *Engine) GenerateKeypair(name, email string, passphrase []byte) (KeyMaterial, error) {
	conf := &packet.Config{
		Algorithm:       packet.PubKeyAlgoEdDSA,
		Curve:           packet.Curve25519,
		V6Keys:          false,
		KeyLifetimeSecs: uint32(defaultKeyLifetime / time.Second),
		DefaultHash:     crypto.SHA256,
	}

	entity, err := openpgp.NewEntity(name, "", email, conf)
	if err != nil {
		return KeyMaterial{}, kerr.New("pgpengine.GenerateKeypair", kerr.MalformedCertificate, err)
	}

	fp := model.Fingerprint(fingerprintHex(entity.PrimaryKey.Fingerprint[:]))

	revCert, err := e.makeRevocationCert(entity, conf, "generated at key creation")
	if err != nil {
		return KeyMaterial{}, err
	}
	// The revocation is carried only in the standalone certificate above;
	// drop it from the live entity before serializing the certificate and
	// secret material so a freshly generated key is not born revoked.
	entity.Revocations = nil

	var certBuf bytes.Buffer
	if err := entity.Serialize(&certBuf); err != nil {
		return KeyMaterial{}, kerr.New("pgpengine.GenerateKeypair", kerr.MalformedCertificate, err)
	}

	if len(passphrase) > 0 {
		if err := lockEntity(entity, passphrase); err != nil {
			return KeyMaterial{}, kerr.New("pgpengine.GenerateKeypair", kerr.MalformedCertificate, err)
		}
	}

	var secretBuf bytes.Buffer
	if err := entity.SerializePrivateWithoutSigning(&secretBuf, nil); err != nil {
		return KeyMaterial{}, kerr.New("pgpengine.GenerateKeypair", kerr.MalformedCertificate, err)
	}

	return KeyMaterial{
		CertificateBytes: certBuf.Bytes(),
		SecretMaterial:   secretBuf.Bytes(),
		RevocationCert:   revCert,
		Fingerprint:      fp,
	}, nil
}

// makeRevocationCert produces a standalone armored revocation signature for
// entity's primary key without mutating entity's serialized form — the
// caller is responsible for discarding entity.Revocations afterward if the
// live entity must not itself appear revoked.
func (e *Engine) makeRevocationCert(entity *openpgp.Entity, conf *packet.Config, reason string) ([]byte, error) {
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.SignatureType, e.armorHeaders())
	if err != nil {
		return nil, kerr.New("pgpengine.makeRevocationCert", kerr.MalformedCertificate, err)
	}
	if err := entity.RevokeKey(packet.NoReason, reason, conf); err != nil {
		return nil, kerr.New("pgpengine.makeRevocationCert", kerr.MalformedCertificate, err)
	}
	if n := len(entity.Revocations); n > 0 {
		if err := entity.Revocations[n-1].Serialize(w); err != nil {
			return nil, kerr.New("pgpengine.makeRevocationCert", kerr.MalformedCertificate, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, kerr.New("pgpengine.makeRevocationCert", kerr.MalformedCertificate, err)
	}
	return buf.Bytes(), nil
}

// RevokeCertificate regenerates a standalone armored revocation certificate
// from an existing secret key, for the case where the byproduct Generate
// produced at key-creation time was not persisted and must be reconstructed
// on demand (spec §4.1).
func (e *Engine) RevokeCertificate(secretMaterial []byte, passphrase []byte) ([]byte, error) {
	entity, err := parseSecretMaterial(secretMaterial)
	if err != nil {
		return nil, kerr.New("pgpengine.RevokeCertificate", kerr.MalformedCertificate, err)
	}
	if entity.PrivateKey == nil {
		return nil, kerr.New("pgpengine.RevokeCertificate", kerr.MalformedCertificate, nil)
	}
	if entity.PrivateKey.Encrypted {
		if len(passphrase) == 0 {
			return nil, kerr.New("pgpengine.RevokeCertificate", kerr.PassphraseRequired, nil)
		}
		if err := unlockEntity(entity, passphrase); err != nil {
			return nil, kerr.New("pgpengine.RevokeCertificate", kerr.BadPassphrase, err)
		}
	}
	return e.makeRevocationCert(entity, &packet.Config{DefaultHash: crypto.SHA256}, "revoked on demand")
}

func lockEntity(entity *openpgp.Entity, passphrase []byte) error {
	if err := entity.PrivateKey.Encrypt(passphrase); err != nil {
		return err
	}
	for _, sk := range entity.Subkeys {
		if sk.PrivateKey == nil {
			continue
		}
		if err := sk.PrivateKey.Encrypt(passphrase); err != nil {
			return err
		}
	}
	return nil
}

// Encrypt produces an armored ciphertext for every recipient certificate
// supplied. Compression is left disabled (the zero value of
// DefaultCompressionAlgo) per default policy.
func (e *Engine) Encrypt(plaintext []byte, recipientCerts [][]byte) ([]byte, error) {
	if len(recipientCerts) == 0 {
		return nil, kerr.New("pgpengine.Encrypt", kerr.NoRecipients, nil)
	}

	var recipients []*openpgp.Entity
	for _, cert := range recipientCerts {
		ent, err := parseCertificate(cert)
		if err != nil {
			return nil, kerr.New("pgpengine.Encrypt", kerr.RecipientUnusable, err)
		}
		if !hasUsableEncryptionSubkey(ent) {
			return nil, kerr.New("pgpengine.Encrypt", kerr.RecipientUnusable, nil)
		}
		recipients = append(recipients, ent)
	}

	conf := &packet.Config{
		DefaultCipher:           packet.CipherAES256,
		DefaultCompressionAlgo:  packet.CompressionNone,
		AEADConfig:              &packet.AEADConfig{DefaultMode: packet.AEADModeOCB},
	}

	var out bytes.Buffer
	armorWriter, err := armor.Encode(&out, "PGP MESSAGE", e.armorHeaders())
	if err != nil {
		return nil, kerr.New("pgpengine.Encrypt", kerr.MalformedCiphertext, err)
	}

	plaintextWriter, err := openpgp.Encrypt(armorWriter, recipients, nil, &openpgp.FileHints{IsBinary: true}, conf)
	if err != nil {
		return nil, kerr.New("pgpengine.Encrypt", kerr.MalformedCiphertext, err)
	}
	if _, err := plaintextWriter.Write(plaintext); err != nil {
		return nil, kerr.New("pgpengine.Encrypt", kerr.MalformedCiphertext, err)
	}
	if err := plaintextWriter.Close(); err != nil {
		return nil, kerr.New("pgpengine.Encrypt", kerr.MalformedCiphertext, err)
	}
	if err := armorWriter.Close(); err != nil {
		return nil, kerr.New("pgpengine.Encrypt", kerr.MalformedCiphertext, err)
	}

	return out.Bytes(), nil
}

// Decrypt opens an armored ciphertext with the single decrypting secret
// supplied. Any signatures embedded in the message are reported back, even
// when the engine has no certificate on hand to verify them against —
// silently dropping an unverifiable signer is treated as a defect, not a
// simplification.
func (e *Engine) Decrypt(armoredCiphertext []byte, secretMaterial []byte, passphrase []byte) ([]byte, []model.SignerInfo, error) {
	entity, err := parseSecretMaterial(secretMaterial)
	if err != nil {
		return nil, nil, kerr.New("pgpengine.Decrypt", kerr.MalformedCertificate, err)
	}

	if entity.PrivateKey != nil && entity.PrivateKey.Encrypted {
		if len(passphrase) == 0 {
			return nil, nil, kerr.New("pgpengine.Decrypt", kerr.PassphraseRequired, nil)
		}
		if err := unlockEntity(entity, passphrase); err != nil {
			return nil, nil, kerr.New("pgpengine.Decrypt", kerr.BadPassphrase, err)
		}
	}

	body, err := dearmor(armoredCiphertext, "PGP MESSAGE")
	if err != nil {
		return nil, nil, kerr.New("pgpengine.Decrypt", kerr.MalformedCiphertext, err)
	}

	keyring := openpgp.EntityList{entity}
	md, err := openpgp.ReadMessage(body, keyring, nil, nil)
	if err != nil {
		if err == pgperrors.ErrKeyIncorrect {
			return nil, nil, kerr.New("pgpengine.Decrypt", kerr.WrongKey, err)
		}
		return nil, nil, kerr.New("pgpengine.Decrypt", kerr.MalformedCiphertext, err)
	}

	plaintext, err := io.ReadAll(md.UnverifiedBody)
	if err != nil {
		return nil, nil, kerr.New("pgpengine.Decrypt", kerr.Tampered, err)
	}

	var signers []model.SignerInfo
	if md.IsSigned {
		info := model.SignerInfo{VerifiedAt: time.Now()}
		if md.SignedBy != nil {
			info.SignerFingerprint = model.Fingerprint(fingerprintHex(md.SignedBy.PublicKey.Fingerprint[:]))
			info.Valid = md.SignatureError == nil
		} else if len(md.SignedByFingerprint) > 0 {
			info.SignerFingerprint = model.Fingerprint(fingerprintHex(md.SignedByFingerprint))
			info.Valid = false
		}
		if info.SignerFingerprint != "" {
			signers = append(signers, info)
		}
	}

	return plaintext, signers, nil
}

func unlockEntity(entity *openpgp.Entity, passphrase []byte) error {
	if entity.PrivateKey != nil && entity.PrivateKey.Encrypted {
		if err := entity.PrivateKey.Decrypt(passphrase); err != nil {
			return err
		}
	}
	for _, sk := range entity.Subkeys {
		if sk.PrivateKey != nil && sk.PrivateKey.Encrypted {
			if err := sk.PrivateKey.Decrypt(passphrase); err != nil {
				return err
			}
		}
	}
	return nil
}

// Sign produces an armored, inline-signed OpenPGP message: the signature
// travels with the data rather than as a detached block, so a single blob
// can later be both verified and (if also encrypted downstream) recovered.
func (e *Engine) Sign(data []byte, secretMaterial []byte, passphrase []byte) ([]byte, error) {
	entity, err := parseSecretMaterial(secretMaterial)
	if err != nil {
		return nil, kerr.New("pgpengine.Sign", kerr.MalformedCertificate, err)
	}
	if entity.PrivateKey != nil && entity.PrivateKey.Encrypted {
		if len(passphrase) == 0 {
			return nil, kerr.New("pgpengine.Sign", kerr.PassphraseRequired, nil)
		}
		if err := unlockEntity(entity, passphrase); err != nil {
			return nil, kerr.New("pgpengine.Sign", kerr.BadPassphrase, err)
		}
	}

	var out bytes.Buffer
	armorWriter, err := armor.Encode(&out, "PGP MESSAGE", e.armorHeaders())
	if err != nil {
		return nil, kerr.New("pgpengine.Sign", kerr.MalformedCertificate, err)
	}
	signWriter, err := openpgp.Sign(armorWriter, entity, &openpgp.FileHints{IsBinary: true}, nil)
	if err != nil {
		return nil, kerr.New("pgpengine.Sign", kerr.MalformedCertificate, err)
	}
	if _, err := signWriter.Write(data); err != nil {
		return nil, kerr.New("pgpengine.Sign", kerr.MalformedCertificate, err)
	}
	if err := signWriter.Close(); err != nil {
		return nil, kerr.New("pgpengine.Sign", kerr.MalformedCertificate, err)
	}
	if err := armorWriter.Close(); err != nil {
		return nil, kerr.New("pgpengine.Sign", kerr.MalformedCertificate, err)
	}

	return out.Bytes(), nil
}

// Verify tries each candidate certificate in turn against an inline-signed
// blob produced by Sign. Only primary-key fingerprints are ever reported as
// signer identity.
func (e *Engine) Verify(signedBlob []byte, candidateCerts [][]byte) (model.VerifyResult, error) {
	var keyring openpgp.EntityList
	for _, cert := range candidateCerts {
		ent, err := parseCertificate(cert)
		if err != nil {
			continue
		}
		keyring = append(keyring, ent)
	}

	body, err := dearmor(signedBlob, "PGP MESSAGE")
	if err != nil {
		return model.VerifyResult{}, nil
	}

	md, err := openpgp.ReadMessage(body, keyring, nil, nil)
	if err != nil {
		return model.VerifyResult{}, nil
	}
	if _, err := io.ReadAll(md.UnverifiedBody); err != nil {
		return model.VerifyResult{}, nil
	}
	if !md.IsSigned || md.SignedBy == nil || md.SignatureError != nil {
		return model.VerifyResult{}, nil
	}

	return model.VerifyResult{
		Valid:             true,
		SignerFingerprint: model.Fingerprint(fingerprintHex(md.SignedBy.PublicKey.Fingerprint[:])),
		VerifiedAt:        time.Now(),
	}, nil
}

// Inspect parses a certificate (or the public portion of a transfer bundle
// entry) into a CertInfo. It performs no side effects.
func (e *Engine) Inspect(certOrBundle []byte) (model.CertInfo, error) {
	entity, err := parseCertificate(certOrBundle)
	if err != nil {
		return model.CertInfo{}, kerr.New("pgpengine.Inspect", kerr.MalformedCertificate, err)
	}

	info := model.CertInfo{
		Fingerprint: model.Fingerprint(fingerprintHex(entity.PrimaryKey.Fingerprint[:])),
		Algorithm:   algorithmLabel(entity.PrimaryKey.PubKeyAlgo),
		CreatedAt:   entity.PrimaryKey.CreationTime,
		HasSecret:   entity.PrivateKey != nil,
	}

	for _, ident := range entity.Identities {
		info.UserIDs = append(info.UserIDs, model.UserID{Name: ident.UserId.Name, Email: ident.UserId.Email})
		if ident.SelfSignature != nil && ident.SelfSignature.KeyLifetimeSecs != nil && *ident.SelfSignature.KeyLifetimeSecs > 0 {
			exp := entity.PrimaryKey.CreationTime.Add(time.Duration(*ident.SelfSignature.KeyLifetimeSecs) * time.Second)
			info.ExpiresAt = &exp
		}
	}

	for _, sk := range entity.Subkeys {
		sub := model.SubkeyInfo{
			Fingerprint: model.Fingerprint(fingerprintHex(sk.PublicKey.Fingerprint[:])),
			CreatedAt:   sk.PublicKey.CreationTime,
			Revoked:     len(sk.Revocations) > 0,
		}
		if sk.Sig != nil {
			sub.Capabilities = subkeyCapabilities(sk.Sig)
			if sk.Sig.KeyLifetimeSecs != nil && *sk.Sig.KeyLifetimeSecs > 0 {
				exp := sk.PublicKey.CreationTime.Add(time.Duration(*sk.Sig.KeyLifetimeSecs) * time.Second)
				sub.ExpiresAt = &exp
			}
		}
		info.Subkeys = append(info.Subkeys, sub)
	}

	return info, nil
}

// StripSecret re-serializes blob's public portion only, discarding any
// private key packets it may carry.
func (e *Engine) StripSecret(blob []byte) ([]byte, error) {
	entity, err := parseCertificate(blob)
	if err != nil {
		return nil, kerr.New("pgpengine.StripSecret", kerr.MalformedCertificate, err)
	}
	var out bytes.Buffer
	if err := entity.Serialize(&out); err != nil {
		return nil, kerr.New("pgpengine.StripSecret", kerr.MalformedCertificate, err)
	}
	return out.Bytes(), nil
}

func subkeyCapabilities(sig *packet.Signature) []string {
	if !sig.FlagsValid {
		return nil
	}
	var caps []string
	if sig.FlagCertify {
		caps = append(caps, "certify")
	}
	if sig.FlagSign {
		caps = append(caps, "sign")
	}
	if sig.FlagEncryptCommunications || sig.FlagEncryptStorage {
		caps = append(caps, "encrypt")
	}
	if sig.FlagAuthenticate {
		caps = append(caps, "authenticate")
	}
	return caps
}

func hasUsableEncryptionSubkey(entity *openpgp.Entity) bool {
	if len(entity.Revocations) > 0 {
		return false
	}
	if primaryExpired(entity) {
		return false
	}
	for _, sk := range entity.Subkeys {
		if len(sk.Revocations) > 0 {
			continue
		}
		if sk.Sig == nil || !sk.Sig.FlagsValid {
			continue
		}
		if subkeyExpired(sk) {
			continue
		}
		if sk.Sig.FlagEncryptCommunications || sk.Sig.FlagEncryptStorage {
			return true
		}
	}
	return false
}

// primaryExpired reports whether any identity's self-signature has expired
// the primary key, mirroring the lifetime computation Inspect performs.
func primaryExpired(entity *openpgp.Entity) bool {
	for _, ident := range entity.Identities {
		if ident.SelfSignature == nil || ident.SelfSignature.KeyLifetimeSecs == nil || *ident.SelfSignature.KeyLifetimeSecs == 0 {
			continue
		}
		exp := entity.PrimaryKey.CreationTime.Add(time.Duration(*ident.SelfSignature.KeyLifetimeSecs) * time.Second)
		if time.Now().After(exp) {
			return true
		}
	}
	return false
}

// subkeyExpired reports whether sk's binding signature has expired it,
// mirroring the lifetime computation Inspect performs.
func subkeyExpired(sk openpgp.Subkey) bool {
	if sk.Sig.KeyLifetimeSecs == nil || *sk.Sig.KeyLifetimeSecs == 0 {
		return false
	}
	exp := sk.PublicKey.CreationTime.Add(time.Duration(*sk.Sig.KeyLifetimeSecs) * time.Second)
	return time.Now().After(exp)
}

func algorithmLabel(algo packet.PublicKeyAlgorithm) string {
	switch algo {
	case packet.PubKeyAlgoEdDSA:
		return "Ed25519"
	case packet.PubKeyAlgoECDH:
		return "X25519"
	case packet.PubKeyAlgoRSA:
		return "RSA"
	default:
		return "unknown"
	}
}

func parseCertificate(blob []byte) (*openpgp.Entity, error) {
	if list, err := openpgp.ReadKeyRing(bytes.NewReader(blob)); err == nil && len(list) > 0 {
		return list[0], nil
	}
	list, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, pgperrors.StructuralError("no key found in certificate")
	}
	return list[0], nil
}

func parseSecretMaterial(blob []byte) (*openpgp.Entity, error) {
	return parseCertificate(blob)
}

func dearmor(data []byte, expectedType string) (io.Reader, error) {
	block, err := armor.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if block.Type != expectedType {
		return nil, pgperrors.InvalidArgumentError("unexpected armor type: " + block.Type)
	}
	return block.Body, nil
}

func fingerprintHex(fp []byte) string {
	const hexdigits = "0123456789ABCDEF"
	out := make([]byte, len(fp)*2)
	for i, b := range fp {
		out[i*2] = hexdigits[b>>4]
		out[i*2+1] = hexdigits[b&0x0f]
	}
	return string(out)
}
