package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// ConfigHash returns the hex SHA-256 content hash of a configuration blob.
// Line endings are normalized first so the same config hashes identically
// regardless of how it was captured.
func ConfigHash(content string) string {
	sum := sha256.Sum256([]byte(NormalizeLineEndings(content)))
	return hex.EncodeToString(sum[:])
}
