// Package keys builds store keys for records that have no natural key.
package keys

import (
	"encoding/hex"
	"strings"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// Separator joins key segments.
const Separator = ":"

// FromContent derives a deterministic key from data using 64-bit BLAKE2b.
// Identical content always produces the same key.
func FromContent(data []byte) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits; only fails for invalid sizes
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Random returns a new random (version 4) UUID string.
func Random() string {
	return uuid.NewString()
}

// Join builds a composite key from segments.
func Join(segments ...string) string {
	return strings.Join(segments, Separator)
}

// PrefixRange returns closed range bounds covering every UTF-8 key that
// starts with prefix followed by Separator. 0xff never occurs in UTF-8, so
// the upper bound sorts after all of them.
func PrefixRange(prefix string) (start, end string) {
	p := prefix + Separator
	return p, p + "\xff"
}
