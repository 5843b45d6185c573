package bundle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KeychainPGP/keyringcore/internal/kerr"
)

const (
	partPrefix     = "KCPGP:"
	passPartPrefix = "KCPGP-PASS:"

	// defaultPartSize keeps the generated QR modules scannable at typical
	// display/camera distances.
	defaultPartSize = 120
)

// Chunk splits an armored envelope into ordered QR parts of partSize bytes
// each (the last part may be shorter). A partSize of zero selects
// defaultPartSize.
func Chunk(armoredEnvelope string, partSize int) []string {
	if partSize <= 0 {
		partSize = defaultPartSize
	}

	total := (len(armoredEnvelope) + partSize - 1) / partSize
	if total == 0 {
		total = 1
	}

	parts := make([]string, 0, total)
	n := 1
	for i := 0; i < len(armoredEnvelope); i += partSize {
		end := i + partSize
		if end > len(armoredEnvelope) {
			end = len(armoredEnvelope)
		}
		parts = append(parts, fmt.Sprintf("%s%d/%d:%s", partPrefix, n, total, armoredEnvelope[i:end]))
		n++
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%s1/1:%s", partPrefix, ""))
	}
	return parts
}

// PassphrasePart wraps a transfer passphrase in its own QR-part prefix, for
// demonstrations that transfer it in-band rather than out-of-band.
func PassphrasePart(passphrase string) string {
	return passPartPrefix + passphrase
}

// Reassembler accumulates QR parts, keyed by their declared index, until
// every part in the declared total has been seen.
type Reassembler struct {
	total int
	parts map[int]string
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{parts: map[int]string{}}
}

// AddPart ingests one QR part payload. Duplicate parts are idempotent; a
// part whose declared total disagrees with an earlier part aborts the scan
// with InconsistentBundle. It reports whether all parts have now been seen.
func (r *Reassembler) AddPart(raw string) (bool, error) {
	if !strings.HasPrefix(raw, partPrefix) {
		return false, kerr.New("bundle.Reassembler.AddPart", kerr.CorruptFraming, nil)
	}
	body := raw[len(partPrefix):]

	colon := strings.IndexByte(body, ':')
	if colon < 0 {
		return false, kerr.New("bundle.Reassembler.AddPart", kerr.CorruptFraming, nil)
	}
	header, data := body[:colon], body[colon+1:]

	slash := strings.IndexByte(header, '/')
	if slash < 0 {
		return false, kerr.New("bundle.Reassembler.AddPart", kerr.CorruptFraming, nil)
	}
	nStr, totalStr := header[:slash], header[slash+1:]
	if !isPlainDecimal(nStr) || !isPlainDecimal(totalStr) {
		return false, kerr.New("bundle.Reassembler.AddPart", kerr.CorruptFraming, nil)
	}
	n, err := strconv.Atoi(nStr)
	if err != nil {
		return false, kerr.New("bundle.Reassembler.AddPart", kerr.CorruptFraming, err)
	}
	total, err := strconv.Atoi(totalStr)
	if err != nil {
		return false, kerr.New("bundle.Reassembler.AddPart", kerr.CorruptFraming, err)
	}
	if n < 1 || n > total {
		return false, kerr.New("bundle.Reassembler.AddPart", kerr.CorruptFraming, nil)
	}

	if r.total == 0 {
		r.total = total
	} else if r.total != total {
		return false, kerr.New("bundle.Reassembler.AddPart", kerr.InconsistentBundle, nil)
	}

	r.parts[n] = data
	return len(r.parts) == r.total, nil
}

// isPlainDecimal reports whether s is a decimal integer with no leading
// zero and no sign, per the wire format's "no leading zeros" rule — "007"
// and "-1" are not a bundle part's n/total shape even though they parse.
func isPlainDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s == "0" || s[0] != '0'
}

// Armored reassembles the accumulated parts in order. It fails with
// TruncatedBundle if parts are still missing.
func (r *Reassembler) Armored() (string, error) {
	if r.total == 0 || len(r.parts) != r.total {
		return "", kerr.New("bundle.Reassembler.Armored", kerr.TruncatedBundle, nil)
	}
	var sb strings.Builder
	for n := 1; n <= r.total; n++ {
		part, ok := r.parts[n]
		if !ok {
			return "", kerr.New("bundle.Reassembler.Armored", kerr.TruncatedBundle, nil)
		}
		sb.WriteString(part)
	}
	return sb.String(), nil
}
