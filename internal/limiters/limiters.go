package limiters

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/miaomc/passport/internal/rate"
	"github.com/redis/go-redis/v9"
)

// Config sets each limit and window. A zero limit disables that limiter.
type Config struct {
	// IPThrottle adds a per-IP window next to each per-subject one.
	IPThrottle bool

	MaxLoginFailures int
	LoginWindow      time.Duration

	MaxMailSends int
	MailWindow   time.Duration

	MaxAccountCreations int
	AccountWindow       time.Duration
}

// LoginLimiter blocks an identifier or IP after too many failed logins.
// Successful logins clear the identifier's window.
type LoginLimiter struct {
	byIdentifier *rate.Window
	byIP         *rate.Window
}

func NewLoginLimiter(redisClient redis.UniversalClient, cfg Config) *LoginLimiter {
	l := &LoginLimiter{
		byIdentifier: rate.NewWindow(redisClient, "pl:", cfg.MaxLoginFailures, cfg.LoginWindow),
	}
	if cfg.IPThrottle {
		l.byIP = rate.NewWindow(redisClient, "plip:", cfg.MaxLoginFailures, cfg.LoginWindow)
	}
	return l
}

// Check reports rate.ErrRateLimited when either window is exhausted.
func (l *LoginLimiter) Check(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}
	if err := l.byIdentifier.Check(ctx, normalize(identifier)); err != nil {
		return err
	}
	return l.byIP.Check(ctx, ip)
}

// Fail records a failed attempt.
func (l *LoginLimiter) Fail(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}
	idErr := l.byIdentifier.Hit(ctx, normalize(identifier))
	ipErr := l.byIP.Hit(ctx, ip)
	if idErr != nil && !errors.Is(idErr, rate.ErrRateLimited) {
		return idErr
	}
	if ipErr != nil && !errors.Is(ipErr, rate.ErrRateLimited) {
		return ipErr
	}
	return nil
}

// Succeed clears the identifier window. The IP window is kept so one valid
// account cannot launder attempts against others.
func (l *LoginLimiter) Succeed(ctx context.Context, identifier string) error {
	if l == nil {
		return nil
	}
	return l.byIdentifier.Reset(ctx, normalize(identifier))
}

// MailCodeLimiter bounds verification mails sent to one address or from one IP.
type MailCodeLimiter struct {
	byEmail *rate.Window
	byIP    *rate.Window
}

func NewMailCodeLimiter(redisClient redis.UniversalClient, cfg Config) *MailCodeLimiter {
	l := &MailCodeLimiter{
		byEmail: rate.NewWindow(redisClient, "pm:", cfg.MaxMailSends, cfg.MailWindow),
	}
	if cfg.IPThrottle {
		l.byIP = rate.NewWindow(redisClient, "pmip:", cfg.MaxMailSends, cfg.MailWindow)
	}
	return l
}

// Enforce counts one send and reports rate.ErrRateLimited past the limit.
func (l *MailCodeLimiter) Enforce(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if err := l.byEmail.Hit(ctx, normalize(email)); err != nil {
		return err
	}
	return l.byIP.Hit(ctx, ip)
}

// AccountLimiter bounds account creations from one IP.
type AccountLimiter struct {
	byIP *rate.Window
}

func NewAccountLimiter(redisClient redis.UniversalClient, cfg Config) *AccountLimiter {
	return &AccountLimiter{
		byIP: rate.NewWindow(redisClient, "pa:", cfg.MaxAccountCreations, cfg.AccountWindow),
	}
}

// Enforce counts one creation. Callers without an IP are not limited.
func (l *AccountLimiter) Enforce(ctx context.Context, ip string) error {
	if l == nil {
		return nil
	}
	return l.byIP.Hit(ctx, ip)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
