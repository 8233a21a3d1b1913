// Package hasher computes the content fingerprint used as identity for
// every cached estimation: the lowercase hex SHA-256 of the raw bytes.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
)

// BlockSize is the read buffer used while hashing.
const BlockSize = 64 * 1024

// Size is the length of a fingerprint in hex characters.
const Size = sha256.Size * 2

var fingerprintPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// HashBytes reads r to EOF and returns its fingerprint.
func HashBytes(r io.Reader) (string, error) {
	return Copy(io.Discard, r)
}

// HashFile returns the fingerprint of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return HashBytes(f)
}

// Copy streams r into dst while hashing it, so an upload can be staged
// and fingerprinted in one pass.
func Copy(dst io.Writer, r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, BlockSize)

	if _, err := io.CopyBuffer(io.MultiWriter(dst, h), r, buf); err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Valid reports whether s is a well-formed fingerprint.
func Valid(s string) bool {
	return fingerprintPattern.MatchString(s)
}
