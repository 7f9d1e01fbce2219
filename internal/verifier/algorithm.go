package verifier

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"errors"
	"strconv"
)

const (
	gcmStandardNonceSize = 12
	gcmTagSize           = 16
	aes256KeySize        = 32
)

// Algorithm opens an authenticated symmetric ciphertext.
type Algorithm interface {
	Name() string
	KeySize() int
	Open(key, iv, tag, ciphertext []byte) ([]byte, error)
	Seal(key, iv, plaintext []byte) (ciphertext, tag []byte, err error)
}

type aesGCM struct{}

func (aesGCM) Name() string { return "aes-256-gcm" }

func (aesGCM) KeySize() int { return aes256KeySize }

func (a aesGCM) aead(key []byte, nonceSize, tagSize int) (cipher.AEAD, error) {
	if len(key) != a.KeySize() {
		return nil, errors.New("aes-256-gcm requires a 32 byte key")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	switch {
	case nonceSize == gcmStandardNonceSize && tagSize == gcmTagSize:
		return cipher.NewGCM(block)
	case tagSize == gcmTagSize:
		return cipher.NewGCMWithNonceSize(block, nonceSize)
	case nonceSize == gcmStandardNonceSize:
		return cipher.NewGCMWithTagSize(block, tagSize)
	default:
		return nil, errors.New("unsupported iv and tag size combination")
	}
}

func (a aesGCM) Open(key, iv, tag, ciphertext []byte) ([]byte, error) {
	if len(iv) == 0 {
		return nil, errors.New("empty iv")
	}
	gcm, err := a.aead(key, len(iv), len(tag))
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	return gcm.Open(nil, iv, sealed, nil)
}

func (a aesGCM) Seal(key, iv, plaintext []byte) ([]byte, []byte, error) {
	gcm, err := a.aead(key, len(iv), gcmTagSize)
	if err != nil {
		return nil, nil, err
	}
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	split := len(sealed) - gcm.Overhead()
	return sealed[:split], sealed[split:], nil
}

// Registry maps algorithmVersion values to symmetric algorithms. Versions
// without an entry use the fallback, matching deployed clients that send
// arbitrary version numbers for AES-256-GCM.
type Registry struct {
	byVersion map[float64]Algorithm
	fallback  Algorithm
}

// DefaultRegistry maps version 1.0 to AES-256-GCM and falls back to it.
func DefaultRegistry() *Registry {
	gcm := aesGCM{}
	return &Registry{
		byVersion: map[float64]Algorithm{1.0: gcm},
		fallback:  gcm,
	}
}

func (r *Registry) Lookup(version json.Number) Algorithm {
	if r == nil {
		return aesGCM{}
	}
	if version != "" {
		if v, err := strconv.ParseFloat(version.String(), 64); err == nil {
			if alg, ok := r.byVersion[v]; ok {
				return alg
			}
		}
	}
	return r.fallback
}
