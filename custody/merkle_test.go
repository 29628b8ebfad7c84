package custody_test

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"

	"reloop/custody"
)

func hexSum(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestMerkleRootEdgeCases(t *testing.T) {
	assert.Equal(t, "", custody.MerkleRoot(nil))
	assert.Equal(t, "", custody.MerkleRoot([]string{}))
	assert.Equal(t, "abc123", custody.MerkleRoot([]string{"abc123"}))
}

func TestMerkleRootPairing(t *testing.T) {
	a, b, c := hexSum("a"), hexSum("b"), hexSum("c")

	assert.Equal(t, hexSum(a+b), custody.MerkleRoot([]string{a, b}))

	// An odd leaf is paired with itself at its level.
	want := hexSum(hexSum(a+b) + hexSum(c+c))
	assert.Equal(t, want, custody.MerkleRoot([]string{a, b, c}))
}

func TestMerkleRootDeterministicAndOrderSensitive(t *testing.T) {
	hashes := []string{hexSum("a"), hexSum("b"), hexSum("c"), hexSum("d")}

	assert.Equal(t, custody.MerkleRoot(hashes), custody.MerkleRoot(hashes))

	swapped := []string{hashes[1], hashes[0], hashes[2], hashes[3]}
	assert.NotEqual(t, custody.MerkleRoot(hashes), custody.MerkleRoot(swapped))
}

func TestMerkleRootChangesOnAppend(t *testing.T) {
	hashes := []string{hexSum("a"), hexSum("b")}
	before := custody.MerkleRoot(hashes)
	after := custody.MerkleRoot(append(hashes, hexSum("c")))
	assert.NotEqual(t, before, after)
}

func TestMerkleRootDoesNotMutateInput(t *testing.T) {
	hashes := []string{hexSum("a"), hexSum("b"), hexSum("c")}
	custody.MerkleRoot(hashes)
	assert.Equal(t, []string{hexSum("a"), hexSum("b"), hexSum("c")}, hashes)
}
