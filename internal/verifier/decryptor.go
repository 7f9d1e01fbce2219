package verifier

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
)

// Decrypted is the outcome of the decryption stages.
type Decrypted struct {
	// PlainBase64 is the decrypted plaintext verbatim; it is the input of the
	// hash challenge.
	PlainBase64 string
	Claim       Claim
	Algorithm   string
}

// Decryptor holds the service private key. It is safe for concurrent use.
type Decryptor struct {
	key      *rsa.PrivateKey
	registry *Registry
}

func NewDecryptor(key *rsa.PrivateKey, registry *Registry) (*Decryptor, error) {
	if key == nil {
		return nil, ErrPrivateKeyFormat
	}
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Decryptor{key: key, registry: registry}, nil
}

// PublicKey returns the key clients must wrap symmetric keys for.
func (d *Decryptor) PublicKey() *rsa.PublicKey {
	return &d.key.PublicKey
}

// Decrypt runs stages 1-4: decode, unwrap, decrypt, claim parse. Each stage
// short-circuits with its own sentinel.
func (d *Decryptor) Decrypt(raw string) (*Decrypted, error) {
	if d == nil || d.key == nil {
		return nil, ErrPrivateKeyFormat
	}

	env, err := DecodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	parts, err := env.parts()
	if err != nil {
		return nil, err
	}

	symKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, d.key, parts.wrappedKey, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnwrap, err)
	}

	alg := d.registry.Lookup(parts.version)
	if len(symKey) != alg.KeySize() {
		return nil, fmt.Errorf("%w: unwrapped key is %d bytes, %s needs %d", ErrKeyUnwrap, len(symKey), alg.Name(), alg.KeySize())
	}

	plain, err := alg.Open(symKey, parts.iv, parts.tag, parts.ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadDecrypt, err)
	}
	if len(plain) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrPayloadDecrypt)
	}

	plainBase64 := string(plain)
	claim, err := parseClaim(plainBase64)
	if err != nil {
		return nil, err
	}

	return &Decrypted{
		PlainBase64: plainBase64,
		Claim:       *claim,
		Algorithm:   alg.Name(),
	}, nil
}

// IsPipelineError reports whether err came from one of the decryption stages.
func IsPipelineError(err error) bool {
	return errors.Is(err, ErrDecode) ||
		errors.Is(err, ErrKeyUnwrap) ||
		errors.Is(err, ErrPayloadDecrypt) ||
		errors.Is(err, ErrIncompleteClaim)
}
