package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// maxPassBytes is the bcrypt input limit; longer input is rejected rather than truncated.
const maxPassBytes = 72

var (
	ErrEmptyPassword   = errors.New("password must not be empty")
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
)

// Bcrypt hashes with a fixed cost. It is safe for concurrent use.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a hasher using cost, or bcrypt.DefaultCost when cost is 0.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

func (b *Bcrypt) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > maxPassBytes {
		return "", ErrPasswordTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports whether password matches encodedHash. A mismatch is
// (false, nil); a malformed hash is an error.
func (b *Bcrypt) Verify(password, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// NeedsRehash reports whether encodedHash was produced with a lower cost.
func (b *Bcrypt) NeedsRehash(encodedHash string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, err
	}
	return cost < b.cost, nil
}
