package bundle

import (
	"fmt"
	"io"
	"strings"

	"github.com/KeychainPGP/keyringcore/internal/kerr"
)

const (
	passphraseGroups     = 9
	passphraseGroupWidth = 4

	// rejectionCeiling is the largest multiple of 10 that fits in a byte;
	// bytes at or above it are discarded so every surviving byte maps to a
	// decimal digit with exactly equal probability, avoiding the modulo
	// bias of `b % 10`.
	rejectionCeiling = 250
)

// GeneratePassphrase produces nine four-digit groups, hyphen-separated, with
// every digit drawn uniformly via rejection sampling from r.
func GeneratePassphrase(r io.Reader) (string, error) {
	var groups []string
	buf := make([]byte, 1)
	for g := 0; g < passphraseGroups; g++ {
		var digits strings.Builder
		for d := 0; d < passphraseGroupWidth; d++ {
			digit, err := rejectionSampleDigit(r, buf)
			if err != nil {
				return "", kerr.New("bundle.GeneratePassphrase", kerr.BackendUnavailable, err)
			}
			fmt.Fprintf(&digits, "%d", digit)
		}
		groups = append(groups, digits.String())
	}
	return strings.Join(groups, "-"), nil
}

func rejectionSampleDigit(r io.Reader, buf []byte) (int, error) {
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, err
		}
		if buf[0] >= rejectionCeiling {
			continue
		}
		return int(buf[0]) % 10, nil
	}
}
