package verifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Claim is the decrypted, not yet authenticated assertion.
type Claim struct {
	TokenID    string `json:"token_uuid"`
	PlayerUUID string `json:"player_uuid"`
	PlayerName string `json:"player_name"`
	Action     string `json:"action"`
	ExpireAt   Millis `json:"expire_at"`
}

// Millis is a unix millisecond timestamp that accepts JSON numbers and
// numeric strings.
type Millis int64

func (m *Millis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}

	s := string(data)
	if strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = strings.TrimSpace(unq)
		if s == "" {
			*m = 0
			return nil
		}
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*m = Millis(v)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid millisecond timestamp %q", s)
	}
	*m = Millis(int64(f))
	return nil
}

func (m Millis) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(m), 10)), nil
}

// Validate reports ErrIncompleteClaim naming the first absent field.
func (c *Claim) Validate() error {
	switch {
	case c.TokenID == "":
		return fmt.Errorf("%w: token_uuid", ErrIncompleteClaim)
	case c.PlayerUUID == "":
		return fmt.Errorf("%w: player_uuid", ErrIncompleteClaim)
	case c.PlayerName == "":
		return fmt.Errorf("%w: player_name", ErrIncompleteClaim)
	case c.Action == "":
		return fmt.Errorf("%w: action", ErrIncompleteClaim)
	case c.ExpireAt == 0:
		return fmt.Errorf("%w: expire_at", ErrIncompleteClaim)
	}
	return nil
}

// parseClaim decodes plainBase64 into a claim. Plaintext that is not base64
// JSON is malformed input rather than an incomplete claim.
func parseClaim(plainBase64 string) (*Claim, error) {
	raw, err := decodeBase64(plainBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: plaintext is not base64: %v", ErrDecode, err)
	}

	var c Claim
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: plaintext is not a json object: %v", ErrDecode, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
