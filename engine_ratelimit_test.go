package passport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func rateLimitedConfig(t *testing.T) Config {
	t.Helper()
	cfg := testConfig(t)
	cfg.RateLimit = RateLimitConfig{
		Enabled:             true,
		IPThrottle:          true,
		MaxLoginFailures:    3,
		LoginWindow:         time.Minute,
		MaxMailSends:        2,
		MailWindow:          time.Minute,
		MaxAccountCreations: 1,
		AccountWindow:       time.Hour,
	}
	return cfg
}

func TestLoginLockedAfterFailures(t *testing.T) {
	env := newTestEnv(t, rateLimitedConfig(t), nil)
	registerAlice(t, env)
	ctx := WithClientIP(context.Background(), "203.0.113.7")

	for i := 0; i < 3; i++ {
		if _, err := env.engine.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	_, err := env.engine.Login(ctx, "alice", "correct horse")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if KindOf(err) != KindRateLimited {
		t.Fatalf("expected rate_limited kind, got %s", KindOf(err))
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricRateLimited]; got != 1 {
		t.Fatalf("expected 1 rate limited, got %d", got)
	}
}

func TestLoginSuccessClearsFailures(t *testing.T) {
	cfg := rateLimitedConfig(t)
	cfg.RateLimit.IPThrottle = false
	env := newTestEnv(t, cfg, nil)
	registerAlice(t, env)
	ctx := context.Background()

	for round := 0; round < 3; round++ {
		for i := 0; i < 2; i++ {
			if _, err := env.engine.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("round %d: expected ErrInvalidCredentials, got %v", round, err)
			}
		}
		if _, err := env.engine.Login(ctx, "alice", "correct horse"); err != nil {
			t.Fatalf("round %d: login failed: %v", round, err)
		}
	}
}

func TestBindCodeMailLimit(t *testing.T) {
	env := newTestEnv(t, rateLimitedConfig(t), nil)
	ctx := context.Background()
	bindSecret := issueTestBind(t, env, testPlayerUUID, "Notch")

	for i := 0; i < 2; i++ {
		if err := env.engine.RequestBindCode(ctx, bindSecret, "notch@example.com"); err != nil {
			t.Fatalf("send %d failed: %v", i+1, err)
		}
	}
	if err := env.engine.RequestBindCode(ctx, bindSecret, "notch@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := env.engine.RequestBindCode(ctx, bindSecret, "other@example.com"); err != nil {
		t.Fatalf("other address should not be limited: %v", err)
	}
}

func TestRegisterLimitedPerIP(t *testing.T) {
	env := newTestEnv(t, rateLimitedConfig(t), nil)
	ctx := WithClientIP(context.Background(), "203.0.113.7")

	if _, err := env.engine.Register(ctx, RegisterRequest{Email: "a@example.com", Username: "a", Password: "pw"}); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	_, err := env.engine.Register(ctx, RegisterRequest{Email: "b@example.com", Username: "b", Password: "pw"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	other := WithClientIP(context.Background(), "198.51.100.1")
	if _, err := env.engine.Register(other, RegisterRequest{Email: "b@example.com", Username: "b", Password: "pw"}); err != nil {
		t.Fatalf("Register from another IP failed: %v", err)
	}
}

func TestRateLimitDisabledByDefault(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	registerAlice(t, env)
	ctx := WithClientIP(context.Background(), "203.0.113.7")

	for i := 0; i < 10; i++ {
		if _, err := env.engine.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}
	if _, err := env.engine.Login(ctx, "alice", "correct horse"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
}

func TestRateLimitConfigValidation(t *testing.T) {
	cfg := rateLimitedConfig(t)
	cfg.RateLimit.LoginWindow = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero login window")
	}

	cfg = rateLimitedConfig(t)
	cfg.RateLimit.MaxLoginFailures = 0
	cfg.RateLimit.LoginWindow = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled login limit should not need a window: %v", err)
	}
}
