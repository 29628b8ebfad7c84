package custody

import (
	"crypto/sha256"
	"encoding/hex"
)

// MerkleRoot folds the ordered evidence hashes into a single root by
// iterative pairwise SHA-256 over the concatenated hex strings. An odd
// element at any level is paired with itself, not dropped. The root of a
// single hash is that hash; the root of an empty list is the empty string.
func MerkleRoot(hashes []string) string {
	if len(hashes) == 0 {
		return ""
	}
	level := append([]string(nil), hashes...)
	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			sum := sha256.Sum256([]byte(left + right))
			next = append(next, hex.EncodeToString(sum[:]))
		}
		level = next
	}
	return level[0]
}
