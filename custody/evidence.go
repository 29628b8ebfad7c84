package custody

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// HashEvidence returns the hex SHA-256 of the RFC 8785 canonical JSON form
// of the evidence payload. Canonicalization makes the hash independent of
// map iteration order and whitespace, so identical evidence always hashes
// identically.
func HashEvidence(evidence interface{}) (string, error) {
	raw, err := json.Marshal(evidence)
	if err != nil {
		return "", fmt.Errorf("failed to serialize evidence: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize evidence: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
