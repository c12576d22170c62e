package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const saltSize = 16

// DeriveKey stretches password with argon2id.
func DeriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// MakeVerifier hashes a derived key so the key itself never has to be stored.
func MakeVerifier(key []byte) []byte {
	sum := sha256.Sum256(key)
	return sum[:]
}

// NewVerifier generates a random salt for password and returns the salt and
// verifier as hex strings, ready to be placed in a config file.
func NewVerifier(password []byte) (saltHex, verifierHex string, err error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", "", err
	}
	key := DeriveKey(password, salt)
	defer Wipe(key)
	return hex.EncodeToString(salt), hex.EncodeToString(MakeVerifier(key)), nil
}

// CheckPassword reports whether password matches the hex-encoded salt and
// verifier pair produced by NewVerifier.
func CheckPassword(password []byte, saltHex, verifierHex string) (bool, error) {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}
	want, err := hex.DecodeString(verifierHex)
	if err != nil {
		return false, fmt.Errorf("decode verifier: %w", err)
	}

	key := DeriveKey(password, salt)
	defer Wipe(key)
	return subtle.ConstantTimeCompare(MakeVerifier(key), want) == 1, nil
}

// Wipe zeroes b in place. Use it on passwords and derived keys once done.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
