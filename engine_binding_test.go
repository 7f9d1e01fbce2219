package passport

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"
)

func seedUserSeven(env *testEnv) {
	env.identity.addUser(User{ID: 7, Email: "seven@example.com", Username: "seven"})
	env.identity.addPlayer(Player{UUID: "p1", Name: "PrimaryOne", UserID: int64Ptr(7), IsPrimary: true})
	env.identity.addPlayer(Player{UUID: "p2", Name: "SecondTwo", UserID: int64Ptr(7), IsPrimary: false})
}

func TestResolveBindingTransitions(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	seedUserSeven(env)
	env.identity.addUser(User{ID: 8, Email: "solo@example.com", Username: "solo"})
	env.identity.addPlayer(Player{UUID: "solo", Name: "Solo", UserID: int64Ptr(8), IsPrimary: true})
	env.identity.addPlayer(Player{UUID: "orphan", Name: "Orphan"})
	ctx := context.Background()

	cases := []struct {
		uuid string
		want BindingDecision
	}{
		{uuid: "p1", want: DecisionSelect},
		{uuid: "p2", want: DecisionLogin},
		{uuid: "solo", want: DecisionLogin},
		{uuid: "orphan", want: DecisionBind},
		{uuid: "unknown", want: DecisionBind},
	}

	for _, tc := range cases {
		res := env.engine.ResolveBinding(ctx, tc.uuid)
		if res.Decision != tc.want {
			t.Fatalf("%s: decision = %s, want %s", tc.uuid, res.Decision, tc.want)
		}
		if res.Decision == DecisionCreate {
			t.Fatalf("%s: resolver produced reserved Create", tc.uuid)
		}
	}

	sel := env.engine.ResolveBinding(ctx, "p1")
	if len(sel.Players) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(sel.Players))
	}
	for _, lp := range sel.Players {
		if lp.UserID != 7 {
			t.Fatalf("candidate %s has user %d", lp.PlayerUUID, lp.UserID)
		}
	}

	login := env.engine.ResolveBinding(ctx, "p2")
	if login.Player == nil || login.Player.UserID == nil || *login.Player.UserID != 7 {
		t.Fatalf("expected login player for user 7, got %+v", login.Player)
	}
}

func TestResolveBindingStoreFailure(t *testing.T) {
	cfg := testConfig(t)
	env := newTestEnv(t, cfg, nil)
	env.identity.fail(errors.New("dial tcp: connection refused"))

	res := env.engine.ResolveBinding(context.Background(), "p1")
	if res.Decision != DecisionFailed {
		t.Fatalf("expected Failed, got %s", res.Decision)
	}
	if res.Message != "Error when processing player binding" {
		t.Fatalf("unexpected message %q", res.Message)
	}

	cfg.Debug = true
	debugEnv := newTestEnv(t, cfg, nil)
	debugEnv.identity.fail(errors.New("dial tcp: connection refused"))

	res = debugEnv.engine.ResolveBinding(context.Background(), "p1")
	if res.Decision != DecisionFailed || !strings.Contains(res.Message, "connection refused") {
		t.Fatalf("expected debug message, got %+v", res)
	}
}

func TestHandshakeBindIssuesBindCredential(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	envelope, hash := env.sealFor(t, testTokenID, testPlayerUUID, "Notch", "remote-secret", env.clock.Now().Add(time.Minute))
	ctx := context.Background()

	res, err := env.engine.Handshake(ctx, envelope, hash)
	if err != nil {
		t.Fatalf("Handshake failed: %v", err)
	}
	if res.Binding.Decision != DecisionBind {
		t.Fatalf("expected Bind, got %s", res.Binding.Decision)
	}
	if res.Credential == nil || res.Credential.Kind != KindBind {
		t.Fatalf("expected bind credential, got %+v", res.Credential)
	}

	payload, err := env.engine.VerifyBind(ctx, res.Credential.Secret)
	if err != nil {
		t.Fatalf("VerifyBind failed: %v", err)
	}
	if payload.PlayerUUID != testPlayerUUID || payload.PlayerName != "Notch" {
		t.Fatalf("unexpected bind payload %+v", payload)
	}
}

func TestHandshakeLoginIssuesSession(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	seedUserSeven(env)
	envelope, hash := env.sealFor(t, testTokenID, "p2", "SecondTwo", "remote-secret", env.clock.Now().Add(time.Minute))
	ctx := context.Background()

	res, err := env.engine.Handshake(ctx, envelope, hash)
	if err != nil {
		t.Fatalf("Handshake failed: %v", err)
	}
	if res.Binding.Decision != DecisionLogin || res.Credential == nil {
		t.Fatalf("expected Login with credential, got %+v", res)
	}

	val, err := env.mr.Get(res.Credential.Secret)
	if err != nil || val != strconv.Itoa(7) {
		t.Fatalf("expected session for user 7, got %q err=%v", val, err)
	}
}

func TestHandshakeSelectIssuesNothing(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	seedUserSeven(env)
	envelope, hash := env.sealFor(t, testTokenID, "p1", "PrimaryOne", "remote-secret", env.clock.Now().Add(time.Minute))

	res, err := env.engine.Handshake(context.Background(), envelope, hash)
	if err != nil {
		t.Fatalf("Handshake failed: %v", err)
	}
	if res.Binding.Decision != DecisionSelect || res.Credential != nil {
		t.Fatalf("expected Select without credential, got %+v", res)
	}
	if len(env.mr.Keys()) != 0 {
		t.Fatalf("expected no stored credentials, got %v", env.mr.Keys())
	}
}

func TestHandshakeFailedIsStoreError(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	envelope, hash := env.sealFor(t, testTokenID, testPlayerUUID, "Notch", "remote-secret", env.clock.Now().Add(time.Minute))
	env.identity.fail(errors.New("database is locked"))

	if _, err := env.engine.Handshake(context.Background(), envelope, hash); !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
}

func TestHandshakeStopsOnVerifyFailure(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	envelope, _ := env.sealFor(t, testTokenID, testPlayerUUID, "Notch", "remote-secret", env.clock.Now().Add(time.Minute))

	if _, err := env.engine.Handshake(context.Background(), envelope, "bogus"); !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("expected ErrHashMismatch, got %v", err)
	}
	if len(env.mr.Keys()) != 0 {
		t.Fatalf("credential issued after failed verification: %v", env.mr.Keys())
	}
}
