package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentIDLength is the number of hex characters kept from the digest for
// content ids.
const ContentIDLength = 16

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ContentID returns the content-addressed id for s: the first
// ContentIDLength hex characters of its SHA-256 digest.
func ContentID(s string) string {
	return Sum([]byte(s))[:ContentIDLength]
}
