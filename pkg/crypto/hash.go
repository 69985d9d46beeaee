// Package crypto derives opaque storage keys from user-supplied values.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashKey returns the hex SHA-256 of s, truncated to the first n bytes of
// the digest. n outside 1..32 keeps the full digest. Rate limit keys use it
// so source URLs never appear verbatim in Redis.
func HashKey(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	if n <= 0 || n > len(sum) {
		n = len(sum)
	}
	return hex.EncodeToString(sum[:n])
}
