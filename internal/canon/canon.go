// Package canon produces RFC 8785 canonical JSON and digests over it, so two
// encodings of the same document always hash the same.
package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/gowebpki/jcs"
)

// Canonicalize returns the RFC 8785 canonical form of JSON input.
func Canonicalize(input []byte) ([]byte, error) {
	return jcs.Transform(input)
}

// Digest canonicalizes JSON input and returns its sha256 as hex.
func Digest(input []byte) (string, error) {
	c, err := Canonicalize(input)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(c)
	return hex.EncodeToString(sum[:]), nil
}

// DigestValue marshals v and digests the result.
func DigestValue(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return Digest(b)
}
