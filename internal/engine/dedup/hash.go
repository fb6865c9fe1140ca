package dedup

import (
	"crypto/sha256"
	"encoding/hex"
)

// ReasonIdenticalContent is the fixed reason attached to exact-hash
// duplicates; their confidence is always 1.
const ReasonIdenticalContent = "identical file content"

// Hasher computes the content digest used for exact-duplicate detection.
// Two files with equal digests are always treated as duplicates.
type Hasher struct{}

func NewHasher() *Hasher {
	return &Hasher{}
}

func (h *Hasher) Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
