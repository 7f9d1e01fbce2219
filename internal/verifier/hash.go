package verifier

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeHash returns hex(sha256(plainBase64 || remoteToken || salt)).
func ComputeHash(plainBase64, remoteToken, salt string) string {
	h := sha256.New()
	h.Write([]byte(plainBase64))
	h.Write([]byte(remoteToken))
	h.Write([]byte(salt))
	return hex.EncodeToString(h.Sum(nil))
}

// HashMatches compares the supplied digest byte for byte. Case is not
// normalised: clients send lowercase hex.
func HashMatches(plainBase64, remoteToken, salt, supplied string) bool {
	return ComputeHash(plainBase64, remoteToken, salt) == supplied
}
