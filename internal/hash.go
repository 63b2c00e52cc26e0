package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// SHA256sum computes a cryptographic hash of text.
func SHA256sum(text string) string {
	return SHA256sumBytes([]byte(text))
}

// SHA256sumBytes fingerprints binary data such as uploaded audio. Feature
// cache keys are built from it so collisions cannot be provoked by clients.
func SHA256sumBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// FastHash is a high-performance non-cryptographic hash function suitable for
// configuration fingerprints, metric labels, and other cases where
// cryptographic security is not required.
func FastHash(text string) string {
	h := xxhash.Sum64String(text)
	return strconv.FormatUint(h, 16)
}
