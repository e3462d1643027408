package truth

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// ComputeFingerprint returns the BLAKE2b-256 digest of the output's canonical
// JSON encoding, Fingerprint field excluded. Identical input and options give
// identical fingerprints, which is what the idempotence check relies on.
func (o *Output) ComputeFingerprint() (string, error) {
	c := *o
	c.Fingerprint = ""
	data, err := json.Marshal(&c)
	if err != nil {
		return "", fmt.Errorf("failed to encode output: %w", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
