package challenge

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"io"
	"strings"
)

const (
	// MinIDEntropyBits is the smallest identifier size Vox accepts.
	MinIDEntropyBits = 64

	// DefaultIDEntropyBits is the identifier size used when none is configured.
	DefaultIDEntropyBits = 128
)

var idEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a fresh identifier carrying at least bits bits of entropy read
// from rnd, encoded as lowercase unpadded base32.
func NewID(rnd io.Reader, bits int) (string, error) {
	if bits < MinIDEntropyBits {
		return "", fmt.Errorf("%w: id entropy must be at least %d bits, got %d", ErrBadConfig, MinIDEntropyBits, bits)
	}

	if rnd == nil {
		rnd = rand.Reader
	}

	buf := make([]byte, (bits+7)/8)
	if _, err := io.ReadFull(rnd, buf); err != nil {
		return "", fmt.Errorf("challenge: can't read randomness: %w", err)
	}

	return strings.ToLower(idEncoding.EncodeToString(buf)), nil
}

// ValidID reports whether id could have been produced by NewID. It keeps
// arbitrary client input out of store keys.
func ValidID(id string) bool {
	if len(id) < (MinIDEntropyBits+4)/5 || len(id) > 256 {
		return false
	}

	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '2' && r <= '7':
		default:
			return false
		}
	}

	return true
}
