package passport

import (
	"context"
	"errors"
	"testing"
)

func registerAlice(t *testing.T, env *testEnv) *User {
	t.Helper()

	user, err := env.engine.Register(context.Background(), RegisterRequest{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return user
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	ctx := context.Background()
	user := registerAlice(t, env)

	if user.Role != "default" || user.PasswordHash == "correct horse" {
		t.Fatalf("unexpected stored user %+v", user)
	}

	for _, identifier := range []string{"alice@example.com", "alice"} {
		res, err := env.engine.Login(ctx, identifier, "correct horse")
		if err != nil {
			t.Fatalf("Login(%s) failed: %v", identifier, err)
		}
		if res.User.ID != user.ID || res.Credential == nil || res.Credential.Kind != KindSession {
			t.Fatalf("unexpected login result %+v", res)
		}

		session, err := env.engine.VerifySession(ctx, res.Credential.Secret)
		if err != nil {
			t.Fatalf("VerifySession failed: %v", err)
		}
		if session.User.ID != user.ID {
			t.Fatalf("session resolved to user %d", session.User.ID)
		}
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	registerAlice(t, env)
	ctx := context.Background()

	cases := []struct {
		identifier string
		password   string
	}{
		{identifier: "alice", password: "wrong"},
		{identifier: "alice@example.com", password: "wrong"},
		{identifier: "nobody", password: "correct horse"},
		{identifier: "nobody@example.com", password: "correct horse"},
	}
	for _, tc := range cases {
		if _, err := env.engine.Login(ctx, tc.identifier, tc.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", tc.identifier, err)
		}
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricLoginFailure]; got != uint64(len(cases)) {
		t.Fatalf("expected %d login failures, got %d", len(cases), got)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	registerAlice(t, env)
	ctx := context.Background()

	cases := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{name: "bad email", req: RegisterRequest{Email: "not-an-email", Username: "bob", Password: "pw"}, want: ErrValidation},
		{name: "at in username", req: RegisterRequest{Email: "bob@example.com", Username: "bob@x", Password: "pw"}, want: ErrValidation},
		{name: "missing password", req: RegisterRequest{Email: "bob@example.com", Username: "bob"}, want: ErrValidation},
		{name: "duplicate email", req: RegisterRequest{Email: "alice@example.com", Username: "bob", Password: "pw"}, want: ErrDuplicate},
		{name: "duplicate username", req: RegisterRequest{Email: "bob@example.com", Username: "alice", Password: "pw"}, want: ErrDuplicate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.engine.Register(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRegisterClosed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Account.AllowRegister = false
	env := newTestEnv(t, cfg, nil)

	_, err := env.engine.Register(context.Background(), RegisterRequest{
		Email:    "bob@example.com",
		Username: "bob",
		Password: "pw",
	})
	if !errors.Is(err, ErrRegistrationClosed) {
		t.Fatalf("expected ErrRegistrationClosed, got %v", err)
	}
}

func issueTestBind(t *testing.T, env *testEnv, uuid, name string) string {
	t.Helper()

	cred, err := env.engine.IssueBind(context.Background(), BindPayload{PlayerUUID: uuid, PlayerName: name, Action: "login"})
	if err != nil {
		t.Fatalf("IssueBind failed: %v", err)
	}
	return cred.Secret
}

func TestNewAccountBindFlow(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	ctx := context.Background()
	bindSecret := issueTestBind(t, env, testPlayerUUID, "Notch")

	if err := env.engine.RequestBindCode(ctx, bindSecret, "notch@example.com"); err != nil {
		t.Fatalf("RequestBindCode failed: %v", err)
	}
	sent, ok := env.mailer.last()
	if !ok || sent.Email != "notch@example.com" || sent.TTL != MailCodeTTL {
		t.Fatalf("unexpected mail %+v", sent)
	}

	if _, err := env.engine.CompleteNewAccountBind(ctx, bindSecret, NewAccountBind{
		Email:    "notch@example.com",
		Password: "pw",
		Code:     "zzzzzzzz",
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong code, got %v", err)
	}

	res, err := env.engine.CompleteNewAccountBind(ctx, bindSecret, NewAccountBind{
		Email:    "notch@example.com",
		Password: "pw",
		Code:     sent.Code,
	})
	if err != nil {
		t.Fatalf("CompleteNewAccountBind failed: %v", err)
	}
	if res.User.Username != "Notch" || !res.Player.IsPrimary || res.Credential == nil {
		t.Fatalf("unexpected bind result %+v", res)
	}

	binding := env.engine.ResolveBinding(ctx, testPlayerUUID)
	if binding.Decision != DecisionLogin {
		t.Fatalf("expected Login after bind, got %s", binding.Decision)
	}

	if _, err := env.engine.CompleteNewAccountBind(ctx, bindSecret, NewAccountBind{
		Email:    "notch@example.com",
		Password: "pw",
		Code:     sent.Code,
	}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on rebind, got %v", err)
	}
}

func TestNewAccountBindRejectsCodeForOtherEmail(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	ctx := context.Background()
	bindSecret := issueTestBind(t, env, testPlayerUUID, "Notch")

	code, err := env.engine.IssueMailCode(ctx, "someone@example.com")
	if err != nil {
		t.Fatalf("IssueMailCode failed: %v", err)
	}
	_, err = env.engine.CompleteNewAccountBind(ctx, bindSecret, NewAccountBind{
		Email:    "notch@example.com",
		Password: "pw",
		Code:     code,
	})
	if !errors.Is(err, ErrMailCodeMismatch) {
		t.Fatalf("expected ErrMailCodeMismatch, got %v", err)
	}
}

func TestBindExistingAccountPrimarySelection(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	ctx := context.Background()
	user := registerAlice(t, env)

	first, err := env.engine.BindExistingAccount(ctx, issueTestBind(t, env, "uuid-a", "Alpha"), "alice", "correct horse")
	if err != nil {
		t.Fatalf("first BindExistingAccount failed: %v", err)
	}
	if !first.Player.IsPrimary || *first.Player.UserID != user.ID {
		t.Fatalf("first player should be primary for user %d: %+v", user.ID, first.Player)
	}

	second, err := env.engine.BindExistingAccount(ctx, issueTestBind(t, env, "uuid-b", "Beta"), "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("second BindExistingAccount failed: %v", err)
	}
	if second.Player.IsPrimary {
		t.Fatalf("second player must not be primary")
	}

	if got := env.engine.ResolveBinding(ctx, "uuid-a").Decision; got != DecisionSelect {
		t.Fatalf("expected Select for primary with two players, got %s", got)
	}
	if got := env.engine.ResolveBinding(ctx, "uuid-b").Decision; got != DecisionLogin {
		t.Fatalf("expected Login for secondary, got %s", got)
	}
}

func TestBindExistingAccountWrongPassword(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	registerAlice(t, env)

	_, err := env.engine.BindExistingAccount(context.Background(), issueTestBind(t, env, "uuid-a", "Alpha"), "alice", "nope")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.identity.GetPlayer(context.Background(), "uuid-a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("player linked despite failed auth: %v", err)
	}
}

func TestRequestBindCodeRequiresLiveBind(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)

	if err := env.engine.RequestBindCode(context.Background(), "BT_missing", "x@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, ok := env.mailer.last(); ok {
		t.Fatalf("mail sent for unknown bind credential")
	}
}
