package verifier

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
)

// Sealed is a client-side envelope together with the plaintext that feeds
// the hash challenge.
type Sealed struct {
	Envelope    string
	PlainBase64 string
}

// Seal builds an envelope the way game-server clients do: the claim JSON is
// base64 encoded, the base64 text is encrypted with a fresh AES-256-GCM key,
// and the key is wrapped with RSA-OAEP-SHA256.
func Seal(pub *rsa.PublicKey, claim Claim, version json.Number) (*Sealed, error) {
	if pub == nil {
		return nil, errors.New("nil public key")
	}

	claimJSON, err := json.Marshal(claim)
	if err != nil {
		return nil, err
	}
	plainBase64 := base64.StdEncoding.EncodeToString(claimJSON)

	alg := DefaultRegistry().Lookup(version)
	key := make([]byte, alg.KeySize())
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	iv := make([]byte, gcmStandardNonceSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	ciphertext, tag, err := alg.Seal(key, iv, []byte(plainBase64))
	if err != nil {
		return nil, err
	}

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return nil, err
	}

	env := Envelope{
		EncryptedKey:     base64.StdEncoding.EncodeToString(wrapped),
		IV:               base64.StdEncoding.EncodeToString(iv),
		AuthTag:          base64.StdEncoding.EncodeToString(tag),
		AlgorithmVersion: version,
		EncryptedData:    base64.StdEncoding.EncodeToString(ciphertext),
	}
	encoded, err := env.Encode()
	if err != nil {
		return nil, err
	}

	return &Sealed{Envelope: encoded, PlainBase64: plainBase64}, nil
}
