package cache

import (
	"crypto/sha256"
	"fmt"
)

// Key computes a deterministic SHA-256 cache key from the model name,
// the prompt source, and the (already clamped) prompt content. The key
// is hex-encoded.
func Key(model, source, content string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0}) // separator
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return fmt.Sprintf("%x", h.Sum(nil))
}
