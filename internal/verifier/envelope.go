package verifier

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope is the JSON object carried (base64 encoded) in the verify request.
type Envelope struct {
	EncryptedKey     string      `json:"encryptedKey"`
	IV               string      `json:"iv"`
	AuthTag          string      `json:"authTag"`
	AlgorithmVersion json.Number `json:"algorithmVersion"`
	EncryptedData    string      `json:"encryptedData"`
}

type envelopeParts struct {
	wrappedKey []byte
	iv         []byte
	tag        []byte
	ciphertext []byte
	version    json.Number
}

// DecodeEnvelope parses the outer base64 JSON. Only framing errors are
// reported here; field content is checked by the stage that consumes it.
func DecodeEnvelope(raw string) (*Envelope, error) {
	data, err := decodeBase64(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: outer base64: %v", ErrDecode, err)
	}

	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrDecode, err)
	}
	return &env, nil
}

func (e *Envelope) parts() (envelopeParts, error) {
	var p envelopeParts
	if e.EncryptedKey == "" {
		return p, fmt.Errorf("%w: missing encryptedKey", ErrDecode)
	}
	if e.IV == "" || e.AuthTag == "" || e.EncryptedData == "" {
		return p, fmt.Errorf("%w: missing iv, authTag or encryptedData", ErrDecode)
	}

	var err error
	if p.wrappedKey, err = decodeBase64(e.EncryptedKey); err != nil {
		return p, fmt.Errorf("%w: encryptedKey: %v", ErrDecode, err)
	}
	if p.iv, err = decodeBase64(e.IV); err != nil {
		return p, fmt.Errorf("%w: iv: %v", ErrDecode, err)
	}
	if p.tag, err = decodeBase64(e.AuthTag); err != nil {
		return p, fmt.Errorf("%w: authTag: %v", ErrDecode, err)
	}
	if p.ciphertext, err = decodeBase64(e.EncryptedData); err != nil {
		return p, fmt.Errorf("%w: encryptedData: %v", ErrDecode, err)
	}
	p.version = e.AlgorithmVersion
	return p, nil
}

// Encode renders the envelope in its wire form.
func (e *Envelope) Encode() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// decodeBase64 accepts padded and unpadded standard base64. Query strings
// frequently lose the trailing '='.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if out, err := base64.StdEncoding.DecodeString(s); err == nil {
		return out, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
