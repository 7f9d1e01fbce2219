// Package config loads process configuration for cmd/passport.
//
// Sources are layered, later ones winning: built-in defaults, an optional
// YAML file, environment variables prefixed APP_ (after an optional .env
// file), then command line flags the user actually set.
//
// Environment keys use a double underscore between sections:
// APP_DATABASE__TABLE_PREFIX sets database.table_prefix, APP_DEBUG sets debug.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/miaomc/passport"
)

type Config struct {
	Debug     bool            `koanf:"debug"`
	Server    ServerConfig    `koanf:"server"`
	Redis     RedisConfig     `koanf:"redis"`
	Database  DatabaseConfig  `koanf:"database"`
	Remote    RemoteConfig    `koanf:"remote"`
	Verifier  VerifierConfig  `koanf:"verifier"`
	Token     TokenConfig     `koanf:"token"`
	Account   AccountConfig   `koanf:"account"`
	Audit     AuditConfig     `koanf:"audit"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Mail      MailConfig      `koanf:"mail"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

type ServerConfig struct {
	Listen          string        `koanf:"listen"`
	AllowOrigins    []string      `koanf:"allow_origins"`
	TrustedProxies  []string      `koanf:"trusted_proxies"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type DatabaseConfig struct {
	Driver      string `koanf:"driver"`
	DSN         string `koanf:"dsn"`
	TablePrefix string `koanf:"table_prefix"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

type RemoteConfig struct {
	BaseURL    string        `koanf:"base_url"`
	APIKey     string        `koanf:"api_key"`
	APISecret  string        `koanf:"api_secret"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries uint64        `koanf:"max_retries"`
}

type VerifierConfig struct {
	// PrivateKey is inline PEM; it wins over PrivateKeyPath.
	PrivateKey     string `koanf:"private_key"`
	PrivateKeyPath string `koanf:"private_key_path"`
	Salt           string `koanf:"salt"`
}

type TokenConfig struct {
	SessionTTL       time.Duration `koanf:"session_ttl"`
	MaxIssueAttempts int           `koanf:"max_issue_attempts"`
	SecretBytes      int           `koanf:"secret_bytes"`
	BindSecretBytes  int           `koanf:"bind_secret_bytes"`
}

type AccountConfig struct {
	AllowRegister bool   `koanf:"allow_register"`
	DefaultRole   string `koanf:"default_role"`
	BcryptCost    int    `koanf:"bcrypt_cost"`
}

type AuditConfig struct {
	Enabled    bool `koanf:"enabled"`
	BufferSize int  `koanf:"buffer_size"`
	DropIfFull bool `koanf:"drop_if_full"`
}

type RateLimitConfig struct {
	Enabled             bool          `koanf:"enabled"`
	IPThrottle          bool          `koanf:"ip_throttle"`
	MaxLoginFailures    int           `koanf:"max_login_failures"`
	LoginWindow         time.Duration `koanf:"login_window"`
	MaxMailSends        int           `koanf:"max_mail_sends"`
	MailWindow          time.Duration `koanf:"mail_window"`
	MaxAccountCreations int           `koanf:"max_account_creations"`
	AccountWindow       time.Duration `koanf:"account_window"`
}

// MailConfig selects SMTP delivery. An empty Host logs codes instead.
type MailConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
	Subject  string `koanf:"subject"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig enables the engine counters. A non-empty Listen also serves
// them for Prometheus on a side listener.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Listen  string `koanf:"listen"`
}

// Defaults mirrors passport.DefaultConfig for the engine sections.
func Defaults() Config {
	engine := passport.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Listen:          ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{Addr: "127.0.0.1:6379"},
		Database: DatabaseConfig{
			Driver:      "sqlite",
			DSN:         "passport.db",
			AutoMigrate: true,
		},
		Remote: RemoteConfig{
			Timeout:    5 * time.Second,
			MaxRetries: 2,
		},
		Token: TokenConfig{
			SessionTTL:       engine.Token.SessionTTL,
			MaxIssueAttempts: engine.Token.MaxIssueAttempts,
			SecretBytes:      engine.Token.SecretBytes,
			BindSecretBytes:  engine.Token.BindSecretBytes,
		},
		Account: AccountConfig{
			AllowRegister: engine.Account.AllowRegister,
			DefaultRole:   engine.Account.DefaultRole,
			BcryptCost:    engine.Password.BcryptCost,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: engine.Audit.BufferSize,
			DropIfFull: true,
		},
		RateLimit: RateLimitConfig{
			Enabled:             true,
			IPThrottle:          engine.RateLimit.IPThrottle,
			MaxLoginFailures:    engine.RateLimit.MaxLoginFailures,
			LoginWindow:         engine.RateLimit.LoginWindow,
			MaxMailSends:        engine.RateLimit.MaxMailSends,
			MailWindow:          engine.RateLimit.MailWindow,
			MaxAccountCreations: engine.RateLimit.MaxAccountCreations,
			AccountWindow:       engine.RateLimit.AccountWindow,
		},
		Mail: MailConfig{Port: 587},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Validate checks the values the loader cannot type check.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("database.driver must be sqlite or mysql, got %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Server.Listen) == "" {
		return fmt.Errorf("server.listen is required")
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("remote.timeout must be > 0")
	}
	return nil
}

// PrivateKeyPEM returns the service key from the inline value or the file.
// It returns nil, nil when neither is set.
func (c *Config) PrivateKeyPEM() ([]byte, error) {
	if strings.TrimSpace(c.Verifier.PrivateKey) != "" {
		return []byte(c.Verifier.PrivateKey), nil
	}
	if c.Verifier.PrivateKeyPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.Verifier.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	return data, nil
}

// Engine converts the process configuration into an engine Config.
func (c *Config) Engine(privateKeyPEM []byte) passport.Config {
	cfg := passport.DefaultConfig()
	cfg.Debug = c.Debug
	cfg.Token.SessionTTL = c.Token.SessionTTL
	cfg.Token.MaxIssueAttempts = c.Token.MaxIssueAttempts
	cfg.Token.SecretBytes = c.Token.SecretBytes
	cfg.Token.BindSecretBytes = c.Token.BindSecretBytes
	cfg.Verifier.PrivateKeyPEM = privateKeyPEM
	cfg.Verifier.Salt = c.Verifier.Salt
	cfg.Account.AllowRegister = c.Account.AllowRegister
	cfg.Account.DefaultRole = c.Account.DefaultRole
	cfg.Password.BcryptCost = c.Account.BcryptCost
	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize
	cfg.Audit.DropIfFull = c.Audit.DropIfFull
	cfg.RateLimit = passport.RateLimitConfig{
		Enabled:             c.RateLimit.Enabled,
		IPThrottle:          c.RateLimit.IPThrottle,
		MaxLoginFailures:    c.RateLimit.MaxLoginFailures,
		LoginWindow:         c.RateLimit.LoginWindow,
		MaxMailSends:        c.RateLimit.MaxMailSends,
		MailWindow:          c.RateLimit.MailWindow,
		MaxAccountCreations: c.RateLimit.MaxAccountCreations,
		AccountWindow:       c.RateLimit.AccountWindow,
	}
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Enabled
	return cfg
}
