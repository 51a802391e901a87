// Package sha256 provides SHA-256 content hashing for response validators.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher digests rendered documents with SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ETag returns a strong entity tag for data: the quoted hex digest.
func (h *Hasher) ETag(data []byte) string {
	digest, _ := h.Hash(data)
	return `"` + digest + `"`
}
