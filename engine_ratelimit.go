package passport

import (
	"context"
	"errors"
	"fmt"

	"github.com/miaomc/passport/internal/limiters"
	"github.com/miaomc/passport/internal/rate"
	"github.com/redis/go-redis/v9"
)

// engineLimits is nil-safe throughout; a disabled config leaves every
// limiter nil.
type engineLimits struct {
	login   *limiters.LoginLimiter
	mail    *limiters.MailCodeLimiter
	account *limiters.AccountLimiter
}

func newEngineLimits(client redis.UniversalClient, cfg RateLimitConfig) engineLimits {
	if !cfg.Enabled {
		return engineLimits{}
	}
	lc := limiters.Config{
		IPThrottle:          cfg.IPThrottle,
		MaxLoginFailures:    cfg.MaxLoginFailures,
		LoginWindow:         cfg.LoginWindow,
		MaxMailSends:        cfg.MaxMailSends,
		MailWindow:          cfg.MailWindow,
		MaxAccountCreations: cfg.MaxAccountCreations,
		AccountWindow:       cfg.AccountWindow,
	}
	return engineLimits{
		login:   limiters.NewLoginLimiter(client, lc),
		mail:    limiters.NewMailCodeLimiter(client, lc),
		account: limiters.NewAccountLimiter(client, lc),
	}
}

// limitErr maps limiter errors onto the engine taxonomy and records a
// rejection. Backend failures are store errors.
func (e *Engine) limitErr(ctx context.Context, scope string, err error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, rate.ErrRateLimited) {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	out := fmt.Errorf("%w: %s", ErrRateLimited, scope)
	e.metricInc(MetricRateLimited)
	e.emitAudit(ctx, auditEventRateLimited, false, "", "", out, func() map[string]string {
		return map[string]string{"scope": scope}
	})
	return out
}

func (e *Engine) checkLoginLimit(ctx context.Context, identifier string) error {
	return e.limitErr(ctx, "login", e.limits.login.Check(ctx, identifier, clientIPFromContext(ctx)))
}

// recordLoginOutcome feeds the login window. Only bad credentials count as
// failures; limiter errors are logged, never returned.
func (e *Engine) recordLoginOutcome(ctx context.Context, identifier string, authErr error) {
	var err error
	switch {
	case authErr == nil:
		err = e.limits.login.Succeed(ctx, identifier)
	case errors.Is(authErr, ErrInvalidCredentials):
		err = e.limits.login.Fail(ctx, identifier, clientIPFromContext(ctx))
	default:
		return
	}
	if err != nil {
		e.log("ratelimit").Warn("login window update failed", "error", err)
	}
}

func (e *Engine) enforceMailLimit(ctx context.Context, email string) error {
	return e.limitErr(ctx, "mail_code", e.limits.mail.Enforce(ctx, email, clientIPFromContext(ctx)))
}

func (e *Engine) enforceAccountLimit(ctx context.Context) error {
	return e.limitErr(ctx, "account", e.limits.account.Enforce(ctx, clientIPFromContext(ctx)))
}
