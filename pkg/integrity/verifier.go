// Package integrity verifies flash/firmware images against a trusted
// digest using chunked streaming reads, so arbitrarily large images never
// need to fit in memory.
package integrity

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"github.com/Real-Fruit-Snacks/Breakwater/internal/shared"
)

// chunkSize is the read granularity for streaming digests.
const chunkSize = 64 * 1024

// Algorithm selects the digest function. Both supported algorithms
// produce 256-bit digests, so the expected hex string is always 64
// characters.
type Algorithm int

const (
	SHA256 Algorithm = iota
	BLAKE3
)

// ParseAlgorithm maps a config string to an Algorithm. The empty string
// selects SHA-256.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "", "sha256":
		return SHA256, nil
	case "blake3":
		return BLAKE3, nil
	}
	return SHA256, fmt.Errorf("integrity: unknown algorithm %q", s)
}

func (a Algorithm) String() string {
	if a == BLAKE3 {
		return "blake3"
	}
	return "sha256"
}

// Verifier compares file contents against one expected digest. It is
// stateless across Verify calls and safe for concurrent use.
type Verifier struct {
	expected []byte
	algo     Algorithm
}

// New builds a verifier for the given expected hex digest. The digest is
// normalized to lowercase, so comparison is case-insensitive.
func New(expectedHex string, algo Algorithm) (*Verifier, error) {
	norm := shared.NormalizeDigest(expectedHex)
	raw, err := hex.DecodeString(norm)
	if err != nil || len(raw) != shared.HexDigestLen/2 {
		return nil, fmt.Errorf("integrity: expected digest must be %d hex characters", shared.HexDigestLen)
	}
	return &Verifier{expected: raw, algo: algo}, nil
}

// Algorithm returns the verifier's digest algorithm.
func (v *Verifier) Algorithm() Algorithm {
	return v.algo
}

// Verify streams path through the digest and reports whether it matches
// the expected value. A file that cannot be opened or read returns a
// non-nil error; the caller decides how to respond to either outcome.
func (v *Verifier) Verify(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("integrity: open %s: %w", path, err)
	}
	defer f.Close()

	h := v.newHash()
	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return false, fmt.Errorf("integrity: read %s: %w", path, err)
		}
	}

	return subtle.ConstantTimeCompare(h.Sum(nil), v.expected) == 1, nil
}

func (v *Verifier) newHash() hash.Hash {
	if v.algo == BLAKE3 {
		return blake3.New()
	}
	return sha256.New()
}
