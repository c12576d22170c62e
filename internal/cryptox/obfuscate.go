// Package cryptox holds the byte-level transforms used by the client: the
// reversible obfuscation applied to locally stored values and the argon2id
// password verifiers for privileged accounts.
package cryptox

import (
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"
)

// obfuscationKey is the repeating keystream. Changing it orphans every value
// already written by earlier clients.
const obfuscationKey = "LumenSanctumSovereigntyKey"

// ErrMalformed reports a stored value that is not something Obfuscate produced.
var ErrMalformed = errors.New("malformed obfuscated value")

// Obfuscate XORs plain with the repeating keystream and encodes the result as
// standard base64.
//
// This deters casual edits of local state. It is not encryption: anyone with
// the client can reverse it.
func Obfuscate(plain []byte) string {
	return base64.StdEncoding.EncodeToString(xorKeystream(plain))
}

// Deobfuscate reverses Obfuscate. Values that are not valid base64, or whose
// decoded text is not valid UTF-8, yield ErrMalformed.
func Deobfuscate(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	plain := xorKeystream(raw)
	if !utf8.Valid(plain) {
		return nil, fmt.Errorf("%w: not utf-8 after transform", ErrMalformed)
	}
	return plain, nil
}

func xorKeystream(in []byte) []byte {
	out := make([]byte, len(in))
	for i, b := range in {
		out[i] = b ^ obfuscationKey[i%len(obfuscationKey)]
	}
	return out
}
