package keyringcore

import (
	"crypto/rand"

	"github.com/KeychainPGP/keyringcore/internal/bundle"
	"github.com/KeychainPGP/keyringcore/internal/kerr"
	"github.com/KeychainPGP/keyringcore/internal/model"
)

// BundleExport is the result of ExportBundle: a fresh transfer passphrase
// plus the same envelope in two shapes — a sequence of animated-QR parts
// and the raw file blob a shell can write to disk or offer for AirDrop-style
// transfer.
type BundleExport struct {
	Passphrase string
	QRParts    []string
	FileBlob   []byte
}

// ExportBundle packages the certificates (and, for own-keys, their secret
// material) named by fingerprints into a transfer bundle. An empty
// fingerprints selects every key the MetadataStore knows about. The
// passphrase is generated fresh for this export and is never stored
// alongside the bundle; the caller is responsible for conveying it to the
// importing device, typically out-of-band.
func (s *Service) ExportBundle(fingerprints []model.Fingerprint) (BundleExport, error) {
	creds, meta := s.store()

	recs, err := meta.List()
	if err != nil {
		return BundleExport{}, err
	}

	var selected []model.KeyRecord
	if len(fingerprints) == 0 {
		selected = recs
	} else {
		want := make(map[model.Fingerprint]bool, len(fingerprints))
		for _, fp := range fingerprints {
			want[fp] = true
		}
		for _, rec := range recs {
			if want[rec.Fingerprint] {
				selected = append(selected, rec)
			}
		}
	}

	entries := make([]bundle.Entry, 0, len(selected))
	for _, rec := range selected {
		entry := bundle.Entry{Certificate: rec.CertificateBytes}
		if rec.IsOwnKey {
			ws, found, err := creds.Get(rec.Fingerprint)
			if err != nil {
				return BundleExport{}, err
			}
			if found {
				buf, err := s.protector.Unwrap(ws)
				if err != nil {
					return BundleExport{}, err
				}
				entry.SecretMaterial = append([]byte(nil), buf.Bytes()...)
				buf.Release()
			}
		}
		entries = append(entries, entry)
	}

	passphrase, err := bundle.GeneratePassphrase(rand.Reader)
	if err != nil {
		return BundleExport{}, err
	}

	envelope, err := bundle.Seal(entries, []byte(passphrase))
	if err != nil {
		return BundleExport{}, err
	}

	return BundleExport{
		Passphrase: passphrase,
		QRParts:    bundle.Chunk(envelope, 0),
		FileBlob:   []byte(envelope),
	}, nil
}

// serviceImporter adapts Service to bundle.Importer without the bundle
// package needing to know about the orchestration layer.
type serviceImporter struct{ s *Service }

func (si serviceImporter) Import(entry bundle.Entry) (string, bool, error) {
	blob := entry.Certificate
	if len(entry.SecretMaterial) > 0 {
		blob = entry.SecretMaterial
	}

	info, err := si.s.engine.Inspect(entry.Certificate)
	if err != nil {
		return "", false, err
	}
	_, alreadyKnown, err := func() (model.KeyRecord, bool, error) {
		_, meta := si.s.store()
		return meta.Get(info.Fingerprint)
	}()
	if err != nil {
		return "", false, err
	}

	if _, err := si.s.Import(blob); err != nil {
		return "", false, err
	}
	return string(info.Fingerprint), alreadyKnown, nil
}

// ImportBundle decrypts armoredEnvelope with passphrase, parses its framed
// entries, and offers each to the ordinary Import command, tallying how
// many fingerprints were new versus already known.
func (s *Service) ImportBundle(armoredEnvelope string, passphrase string) (bundle.ImportResult, error) {
	return bundle.Import(armoredEnvelope, []byte(passphrase), serviceImporter{s: s})
}

// ImportBundleFromParts reassembles QR parts (which may arrive in any
// order) into the armored envelope before importing. It fails with
// InconsistentBundle if the parts disagree on the declared total, and with
// TruncatedBundle if parts are still missing once the caller stops feeding
// them in.
func ImportBundleFromParts(s *Service, parts []string, passphrase string) (bundle.ImportResult, error) {
	r := bundle.NewReassembler()
	var done bool
	for _, part := range parts {
		var err error
		done, err = r.AddPart(part)
		if err != nil {
			return bundle.ImportResult{}, err
		}
	}
	if !done {
		return bundle.ImportResult{}, kerr.New("keyringcore.ImportBundleFromParts", kerr.TruncatedBundle, nil)
	}

	envelope, err := r.Armored()
	if err != nil {
		return bundle.ImportResult{}, err
	}
	return s.ImportBundle(envelope, passphrase)
}
