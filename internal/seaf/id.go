package seaf

import (
	"encoding/hex"
	"fmt"

	"github.com/minio/sha256-simd"
)

// maxIDLen bounds the length of a server-issued version token.
const maxIDLen = 128

// ID is an opaque version token issued by the server: a directory listing's
// content id or a file id. Equal content always yields equal ids. IDs are used
// verbatim as cache file names, so ParseID only accepts safe characters.
type ID string

// ParseID validates s as a version token.
func ParseID(s string) (ID, error) {
	if len(s) < 2 || len(s) > maxIDLen {
		return "", fmt.Errorf("invalid length for ID: %d", len(s))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '-', c == '_':
		default:
			return "", fmt.Errorf("invalid ID: %q", s)
		}
	}
	return ID(s), nil
}

const shortStr = 8

// Str returns the shortened string version of id.
func (id ID) Str() string {
	if id.IsNull() {
		return "[null]"
	}
	if len(id) <= shortStr {
		return string(id)
	}
	return string(id[:shortStr])
}

func (id ID) String() string {
	return string(id)
}

// IsNull returns true iff id is empty.
func (id ID) IsNull() bool {
	return id == ""
}

// Hash returns the hex encoded sha256 of data. It names snapshots that the
// server does not version itself, like the repo list.
func Hash(data []byte) ID {
	sum := sha256.Sum256(data)
	return ID(hex.EncodeToString(sum[:]))
}
