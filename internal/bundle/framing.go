// Package bundle implements BundleCodec: the transfer format used to move
// keys across a phone-desktop boundary, typically carried by a sequence of
// animated QR codes.
package bundle

import (
	"encoding/binary"

	"github.com/KeychainPGP/keyringcore/internal/kerr"
)

const (
	bundleVersion byte = 1

	entryKindPublicOnly byte = 0
	entryKindWithSecret  byte = 1
)

// Entry is one certificate (and, for an own-key, its accompanying secret
// material) carried inside a bundle.
type Entry struct {
	Certificate    []byte
	SecretMaterial []byte // nil for a public-only entry
}

// EncodePlaintext frames entries into the bundle's self-describing wire
// shape: a version byte followed by length-prefixed records, each tagged
// with whether it carries a secret.
func EncodePlaintext(entries []Entry) []byte {
	buf := []byte{bundleVersion}
	for _, e := range entries {
		if len(e.SecretMaterial) > 0 {
			buf = append(buf, entryKindWithSecret)
		} else {
			buf = append(buf, entryKindPublicOnly)
		}
		buf = appendLengthPrefixed(buf, e.Certificate)
		if len(e.SecretMaterial) > 0 {
			buf = appendLengthPrefixed(buf, e.SecretMaterial)
		}
	}
	return buf
}

func appendLengthPrefixed(buf, data []byte) []byte {
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(data)))
	buf = append(buf, lenBytes[:]...)
	buf = append(buf, data...)
	return buf
}

// DecodePlaintext parses the framing produced by EncodePlaintext. Empty
// input, a short read, or a length prefix that runs past the end of data is
// reported as TruncatedBundle; an unknown entry kind is reported as
// CorruptFraming; an unrecognized version byte is reported as
// UnsupportedVersion.
func DecodePlaintext(data []byte) ([]Entry, error) {
	if len(data) < 1 {
		return nil, kerr.New("bundle.DecodePlaintext", kerr.TruncatedBundle, nil)
	}
	if data[0] != bundleVersion {
		return nil, kerr.New("bundle.DecodePlaintext", kerr.UnsupportedVersion, nil)
	}

	var entries []Entry
	pos := 1
	for pos < len(data) {
		if pos+1 > len(data) {
			return nil, kerr.New("bundle.DecodePlaintext", kerr.CorruptFraming, nil)
		}
		kind := data[pos]
		pos++
		if kind != entryKindPublicOnly && kind != entryKindWithSecret {
			return nil, kerr.New("bundle.DecodePlaintext", kerr.CorruptFraming, nil)
		}

		cert, next, err := readLengthPrefixed(data, pos)
		if err != nil {
			return nil, err
		}
		pos = next

		entry := Entry{Certificate: cert}
		if kind == entryKindWithSecret {
			secret, next, err := readLengthPrefixed(data, pos)
			if err != nil {
				return nil, err
			}
			pos = next
			entry.SecretMaterial = secret
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func readLengthPrefixed(data []byte, pos int) ([]byte, int, error) {
	if pos+4 > len(data) {
		return nil, 0, kerr.New("bundle.readLengthPrefixed", kerr.TruncatedBundle, nil)
	}
	n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4
	if n < 0 || pos+n > len(data) {
		return nil, 0, kerr.New("bundle.readLengthPrefixed", kerr.TruncatedBundle, nil)
	}
	return data[pos : pos+n], pos + n, nil
}
