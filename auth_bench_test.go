package passport

import (
	"context"
	"testing"
	"time"
)

func newBenchmarkEnv(b *testing.B) *testEnv {
	b.Helper()
	env := newTestEnv(b, testConfig(b), nil)
	env.identity.addUser(User{ID: 1, Email: "bench@example.com", Username: "bench"})
	return env
}

func BenchmarkIssueSession(b *testing.B) {
	env := newBenchmarkEnv(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.IssueSession(ctx, 1); err != nil {
			b.Fatalf("IssueSession failed: %v", err)
		}
	}
}

func BenchmarkVerifySession(b *testing.B) {
	env := newBenchmarkEnv(b)
	ctx := context.Background()

	cred, err := env.engine.IssueSession(ctx, 1)
	if err != nil {
		b.Fatalf("IssueSession failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.VerifySession(ctx, cred.Secret); err != nil {
			b.Fatalf("VerifySession failed: %v", err)
		}
	}
}

func BenchmarkVerifyEnvelope(b *testing.B) {
	env := newBenchmarkEnv(b)
	ctx := context.Background()
	envelope, hash := env.sealFor(b, testTokenID, testPlayerUUID, "Notch", "remote-secret", env.clock.Now().Add(time.Hour))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.Verify(ctx, envelope, hash); err != nil {
			b.Fatalf("Verify failed: %v", err)
		}
	}
}
