// internal/books/etag.go
package books

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// entityTag derives a strong ETag from the record's JSON encoding, so any
// field change (including updatedAt) produces a new tag.
func entityTag(b *Book) (string, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encode book for etag: %w", err)
	}
	sum := blake2b.Sum256(raw)
	return `"` + hex.EncodeToString(sum[:16]) + `"`, nil
}

// etagMatches reports whether an If-None-Match header value matches tag.
func etagMatches(header, tag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == tag {
			return true
		}
	}
	return false
}
