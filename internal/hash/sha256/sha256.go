// Package sha256 provides SHA-256 digests for response ETags.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements site.Hasher using SHA-256.
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

// ETag returns a strong entity tag built from the first 16 bytes of the digest.
func (h *Hasher) ETag(data []byte) string {
	digest, _ := h.Hash(data)
	return `"` + digest[:32] + `"`
}
