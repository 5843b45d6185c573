package keyringcore

import (
	"github.com/KeychainPGP/keyringcore/internal/kerr"
	"github.com/KeychainPGP/keyringcore/internal/model"
)

// SetActiveSigningKey selects which own-key Sign uses. An explicit caller
// choice is required whenever more than one own-key exists; new own-keys
// never become active implicitly except the very first one.
func (s *Service) SetActiveSigningKey(fp model.Fingerprint) error {
	_, meta := s.store()
	rec, found, err := meta.Get(fp)
	if err != nil {
		return err
	}
	if !found || !rec.IsOwnKey {
		return kerr.New("keyringcore.SetActiveSigningKey", kerr.NotFound, nil)
	}

	s.activeMu.Lock()
	s.active = fp
	s.activeMu.Unlock()
	return nil
}

// ActiveSigningKey returns the fingerprint Sign currently uses, or "" if
// none has been selected.
func (s *Service) ActiveSigningKey() model.Fingerprint {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	return s.active
}

// setActiveIfUnset is called after Generate commits a new own-key: the first
// own-key a session acquires becomes active automatically so Sign works
// without an extra round trip; subsequent keys never displace it silently.
func (s *Service) setActiveIfUnset(fp model.Fingerprint) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if s.active == "" {
		s.active = fp
	}
}

// RevocationCertificate regenerates a standalone armored revocation
// certificate for an own-key whose byproduct from Generate was not
// persisted (spec §4.1). It unwraps the secret material for the duration of
// the call only; the SecretBuffer is released before the method returns.
func (s *Service) RevocationCertificate(fp model.Fingerprint, passphrase []byte) ([]byte, error) {
	creds, _ := s.store()

	ws, found, err := creds.Get(fp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, kerr.New("keyringcore.RevocationCertificate", kerr.NotFound, nil)
	}

	buf, err := s.protector.Unwrap(ws)
	if err != nil {
		return nil, err
	}
	defer buf.Release()

	if len(passphrase) == 0 {
		if cached, ok := s.passphrases.Get(fp); ok {
			passphrase = cached
		}
	}

	return s.engine.RevokeCertificate(buf.Bytes(), passphrase)
}

// Encrypt looks up each recipient fingerprint's certificate in the
// MetadataStore and produces an armored, multi-recipient ciphertext. A
// fingerprint with no matching certificate or no usable encryption subkey
// fails the whole call rather than silently dropping that recipient.
func (s *Service) Encrypt(plaintext []byte, recipients []model.Fingerprint) ([]byte, error) {
	_, meta := s.store()

	certs := make([][]byte, 0, len(recipients))
	for _, fp := range recipients {
		rec, found, err := meta.Get(fp)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, kerr.New("keyringcore.Encrypt", kerr.NotFound, nil)
		}
		certs = append(certs, rec.CertificateBytes)
	}

	return s.engine.Encrypt(plaintext, certs)
}

// Decrypt enumerates own-keys in the order the MetadataStore returns them
// (own keys first, most-recently-added first), unwrapping each
// candidate's secret material in turn and handing it to the CryptoEngine.
// The first successful candidate wins; its SecretBuffer is released before
// Decrypt returns. If explicitPassphrase is empty, a cached passphrase for
// that candidate is tried before falling through to no-passphrase. Every
// candidate's SecretBuffer is released as soon as that attempt concludes,
// whether it succeeds or fails.
func (s *Service) Decrypt(armored []byte, explicitPassphrase []byte) ([]byte, []model.SignerInfo, error) {
	creds, meta := s.store()

	recs, err := meta.List()
	if err != nil {
		return nil, nil, err
	}

	var lastErr error
	tried := false
	for _, rec := range recs {
		if !rec.IsOwnKey {
			continue
		}
		ws, found, err := creds.Get(rec.Fingerprint)
		if err != nil {
			lastErr = err
			continue
		}
		if !found {
			continue
		}

		buf, err := s.protector.Unwrap(ws)
		if err != nil {
			lastErr = err
			continue
		}
		tried = true

		passphrase := explicitPassphrase
		if len(passphrase) == 0 {
			if cached, ok := s.passphrases.Get(rec.Fingerprint); ok {
				passphrase = cached
			}
		}

		plaintext, signers, decErr := s.engine.Decrypt(armored, buf.Bytes(), passphrase)
		buf.Release()

		if decErr == nil {
			if len(explicitPassphrase) > 0 {
				s.passphrases.Put(rec.Fingerprint, explicitPassphrase)
			}
			return plaintext, signers, nil
		}
		lastErr = decErr
	}

	if !tried {
		if lastErr != nil {
			return nil, nil, lastErr
		}
		return nil, nil, kerr.New("keyringcore.Decrypt", kerr.WrongKey, nil)
	}
	return nil, nil, lastErr
}

// Sign produces an armored signed message using the active signing
// identity. SetActiveSigningKey must have selected one first — generate/
// import of the only own-key does this automatically.
func (s *Service) Sign(data []byte, passphrase []byte) ([]byte, error) {
	fp := s.ActiveSigningKey()
	if fp == "" {
		return nil, kerr.New("keyringcore.Sign", kerr.NotFound, nil)
	}

	creds, _ := s.store()
	ws, found, err := creds.Get(fp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, kerr.New("keyringcore.Sign", kerr.NotFound, nil)
	}

	buf, err := s.protector.Unwrap(ws)
	if err != nil {
		return nil, err
	}
	defer buf.Release()

	if len(passphrase) == 0 {
		if cached, ok := s.passphrases.Get(fp); ok {
			passphrase = cached
		}
	}

	sig, err := s.engine.Sign(data, buf.Bytes(), passphrase)
	if err != nil {
		return nil, err
	}
	if len(passphrase) > 0 {
		s.passphrases.Put(fp, passphrase)
	}
	return sig, nil
}

// Verify tries every certificate known to the MetadataStore as a candidate
// signer and cross-references a successful match against its trust label.
func (s *Service) Verify(armored []byte) (model.VerifyResult, error) {
	_, meta := s.store()
	recs, err := meta.List()
	if err != nil {
		return model.VerifyResult{}, err
	}

	certs := make([][]byte, 0, len(recs))
	for _, rec := range recs {
		certs = append(certs, rec.CertificateBytes)
	}

	result, err := s.engine.Verify(armored, certs)
	if err != nil {
		return model.VerifyResult{}, err
	}
	if !result.Valid {
		return result, nil
	}

	for _, rec := range recs {
		if rec.Fingerprint == result.SignerFingerprint {
			result.Trust = rec.TrustLevel
			break
		}
	}
	return result, nil
}
