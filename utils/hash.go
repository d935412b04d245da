package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
)

// HashText returns the hex SHA256 of text, used as the content hash of a
// moderation result.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// QuickHash returns a fast FNV-1a hash for internal use.
func QuickHash(data string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(data))
	return h.Sum64()
}

// Shard maps key onto one of n buckets. n must be positive.
func Shard(key string, n int) int {
	return int(QuickHash(key) % uint64(n))
}

// TruncateHash shortens a hash for log output.
func TruncateHash(hash string, length int) string {
	if len(hash) <= length {
		return hash
	}
	return hash[:length]
}
