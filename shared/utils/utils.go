package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// HashContent returns the lowercase hex SHA-256 of content. Every blob store
// in this module addresses content by this hash.
func HashContent(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// IsValidHash reports whether hash looks like a HashContent result.
func IsValidHash(hash string) bool {
	if len(hash) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
