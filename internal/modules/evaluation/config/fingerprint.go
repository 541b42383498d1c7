package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Fingerprint identifies the exact threshold table, not just its version label.
// Two configs sharing a Version but differing in any band or weight get different fingerprints.
func (c EvaluationConfig) Fingerprint() (string, error) {
	data, err := msgpack.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode evaluation config: %w", err)
	}
	sum := sha256.Sum256(data)
	return c.Version + "-" + hex.EncodeToString(sum[:8]), nil
}
