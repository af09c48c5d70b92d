// Package shared provides small helpers used by both the config and
// integrity packages.
package shared

import (
	"encoding/hex"
	"strings"
)

// HexDigestLen is the length of a 256-bit digest in hex characters.
const HexDigestLen = 64

// NormalizeDigest lowercases a hex digest and strips surrounding whitespace.
// Digest comparison throughout the module is case-insensitive.
func NormalizeDigest(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsDigest reports whether s (after normalization) is a valid 256-bit hex
// digest: exactly 64 hex characters.
func IsDigest(s string) bool {
	s = NormalizeDigest(s)
	if len(s) != HexDigestLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
