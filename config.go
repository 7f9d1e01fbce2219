package passport

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config defines engine behaviour. It is copied at Build time; later changes
// to the caller's value have no effect.
type Config struct {
	// Debug exposes underlying error text in results and resolver messages.
	Debug bool

	Token     TokenConfig
	Verifier  VerifierConfig
	Account   AccountConfig
	Password  PasswordConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	RateLimit RateLimitConfig
}

// TokenConfig sizes and bounds credential issuance. Bind and mail-code TTLs
// and the renewal threshold are fixed.
type TokenConfig struct {
	SessionTTL       time.Duration
	MaxIssueAttempts int
	SecretBytes      int
	BindSecretBytes  int
	MailCodeBytes    int
}

// VerifierConfig holds the service key material for the verifier protocol.
type VerifierConfig struct {
	// PrivateKeyPEM is the RSA private key, PKCS#1 or PKCS#8.
	PrivateKeyPEM []byte
	// Salt is appended to the hash challenge input.
	Salt string
}

type AccountConfig struct {
	AllowRegister bool
	DefaultRole   string
}

type PasswordConfig struct {
	// BcryptCost applies when the builder creates the default hasher.
	BcryptCost int
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// RateLimitConfig bounds abuse of the account flows with Redis fixed
// windows. A zero Max disables that limit.
type RateLimitConfig struct {
	Enabled bool
	// IPThrottle also counts per client IP taken from [WithClientIP].
	IPThrottle bool

	MaxLoginFailures int
	LoginWindow      time.Duration

	MaxMailSends int
	MailWindow   time.Duration

	MaxAccountCreations int
	AccountWindow       time.Duration
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults. Verifier key and salt have
// no default.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SessionTTL:       2 * time.Hour,
			MaxIssueAttempts: 5,
			SecretBytes:      32,
			BindSecretBytes:  32,
			MailCodeBytes:    4,
		},
		Account: AccountConfig{
			AllowRegister: false,
			DefaultRole:   "default",
		},
		Password: PasswordConfig{
			BcryptCost: bcrypt.DefaultCost,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		RateLimit: RateLimitConfig{
			Enabled:             false,
			IPThrottle:          true,
			MaxLoginFailures:    5,
			LoginWindow:         15 * time.Minute,
			MaxMailSends:        3,
			MailWindow:          10 * time.Minute,
			MaxAccountCreations: 5,
			AccountWindow:       time.Hour,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Verifier.PrivateKeyPEM = cloneBytes(cfg.Verifier.PrivateKeyPEM)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks bounds. A missing private key is reported by Build as
// [ErrPrivateKeyMissing] rather than here.
func (c *Config) Validate() error {
	// Token
	if c.Token.SessionTTL <= RenewalThreshold {
		return errors.New("Token SessionTTL must be greater than the renewal threshold")
	}
	if c.Token.MaxIssueAttempts < 1 {
		return errors.New("Token MaxIssueAttempts must be >= 1")
	}
	if c.Token.SecretBytes < 16 || c.Token.SecretBytes > 64 {
		return errors.New("Token SecretBytes must be between 16 and 64")
	}
	if c.Token.BindSecretBytes < 16 || c.Token.BindSecretBytes > 64 {
		return errors.New("Token BindSecretBytes must be between 16 and 64")
	}
	if c.Token.MailCodeBytes < 2 || c.Token.MailCodeBytes > 16 {
		return errors.New("Token MailCodeBytes must be between 2 and 16")
	}

	// Verifier
	if strings.TrimSpace(c.Verifier.Salt) == "" {
		return errors.New("Verifier Salt must be set")
	}

	// Account
	if c.Account.DefaultRole == "" {
		return errors.New("Account DefaultRole must be set")
	}

	// Password
	if c.Password.BcryptCost < bcrypt.MinCost || c.Password.BcryptCost > bcrypt.MaxCost {
		return errors.New("Password BcryptCost out of range")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// RateLimit
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxLoginFailures > 0 && c.RateLimit.LoginWindow <= 0 {
			return errors.New("RateLimit LoginWindow must be > 0")
		}
		if c.RateLimit.MaxMailSends > 0 && c.RateLimit.MailWindow <= 0 {
			return errors.New("RateLimit MailWindow must be > 0")
		}
		if c.RateLimit.MaxAccountCreations > 0 && c.RateLimit.AccountWindow <= 0 {
			return errors.New("RateLimit AccountWindow must be > 0")
		}
	}

	return nil
}
