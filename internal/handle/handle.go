// Package handle normalizes and validates usernames.
package handle

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var reHandle = regexp.MustCompile(`^[\p{L}\p{N}_.\-]{1,64}$`)

// Normalize trims surrounding space and applies Unicode NFC so visually
// identical names map to the same key. Case is preserved.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// IsValid returns true if s is 1–64 letters, digits, '_', '.' or '-'.
func IsValid(s string) bool {
	return reHandle.MatchString(s)
}
