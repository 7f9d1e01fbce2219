package internal

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
)

const maxSecretBytes = 128

var errInvalidSecretSize = errors.New("invalid secret size")

// NewSecretHex returns n random bytes encoded as lowercase hex (2n characters).
func NewSecretHex(n int) (string, error) {
	if n <= 0 || n > maxSecretBytes {
		return "", errInvalidSecretSize
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
