package passport

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type captureSink struct {
	events chan AuditEvent
}

func newCaptureSink(buffer int) *captureSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &captureSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *captureSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *captureSink) next(t *testing.T) AuditEvent {
	t.Helper()
	select {
	case ev := <-s.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
	}
	return AuditEvent{}
}

// waitFor drains events until one of eventType arrives.
func (s *captureSink) waitFor(t *testing.T, eventType string) AuditEvent {
	t.Helper()
	for {
		ev := s.next(t)
		if ev.EventType == eventType {
			return ev
		}
	}
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func auditConfig(t *testing.T, buffer int) Config {
	t.Helper()
	cfg := testConfig(t)
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = buffer
	return cfg
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	sink := &countingSink{}
	env := newTestEnv(t, testConfig(t), sink)

	if _, err := env.engine.IssueSession(context.Background(), 1); err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}
	env.engine.Close()

	if sink.Count() != 0 {
		t.Fatalf("expected no events with audit disabled, got %d", sink.Count())
	}
}

func TestAuditSessionEvents(t *testing.T) {
	sink := newCaptureSink(64)
	env := newTestEnv(t, auditConfig(t, 64), sink)
	env.identity.addUser(User{ID: 12, Email: "a@example.com", Username: "a"})
	ctx := WithClientIP(context.Background(), "203.0.113.7")

	cred, err := env.engine.IssueSession(ctx, 12)
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}
	issued := sink.waitFor(t, auditEventSessionIssued)
	if issued.UserID != "12" || !issued.Success || issued.IP != "203.0.113.7" {
		t.Fatalf("unexpected issued event %+v", issued)
	}
	if issued.ID == "" || !issued.Timestamp.Equal(env.clock.Now().UTC()) {
		t.Fatalf("event missing id or engine timestamp: %+v", issued)
	}

	env.mr.SetTTL(cred.Secret, 10*time.Second)
	if _, err := env.engine.VerifySession(ctx, cred.Secret); err != nil {
		t.Fatalf("VerifySession failed: %v", err)
	}
	renewed := sink.waitFor(t, auditEventSessionRenewed)
	if renewed.Metadata["remaining_seconds"] != "10" {
		t.Fatalf("unexpected renewal metadata %+v", renewed.Metadata)
	}

	if _, err := env.engine.VerifySession(ctx, "IT_unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	invalid := sink.waitFor(t, auditEventSessionInvalid)
	if invalid.Success || invalid.Error != string(auditErrNotFound) {
		t.Fatalf("unexpected invalid event %+v", invalid)
	}
}

func TestAuditVerifyFailureCarriesKind(t *testing.T) {
	sink := newCaptureSink(64)
	env := newTestEnv(t, auditConfig(t, 64), sink)
	envelope, _ := env.sealFor(t, testTokenID, testPlayerUUID, "Notch", "remote-secret", env.clock.Now().Add(time.Minute))

	if _, err := env.engine.Verify(context.Background(), envelope, "wrong"); !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("expected ErrHashMismatch, got %v", err)
	}
	ev := sink.waitFor(t, auditEventVerifyFailure)
	if ev.Success || ev.Error != string(auditErrHashMismatch) {
		t.Fatalf("unexpected verify failure event %+v", ev)
	}
}

func TestAuditDropIfFullDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	env := newTestEnv(t, auditConfig(t, 1), sink)
	defer close(sink.gate)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			_, _ = env.engine.IssueSession(context.Background(), 1)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("issuance blocked on a full audit buffer")
	}
	if env.engine.AuditDropped() == 0 {
		t.Fatal("expected dropped audit events")
	}
}

func TestAuditDirectIssueIsRecorded(t *testing.T) {
	sink := newCaptureSink(64)
	env := newTestEnv(t, auditConfig(t, 64), sink)
	ctx := context.Background()

	cred, err := env.engine.Issue(ctx, KindBind, "", `{"player_uuid":"p-9"}`, BindTTL)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	ev := sink.waitFor(t, auditEventBindIssued)
	if !ev.Success || ev.Metadata["kind"] != KindBind.String() || ev.Metadata["attempts"] != "1" {
		t.Fatalf("unexpected issued event %+v", ev)
	}
	if ev.Metadata["expires_at"] != strconv.FormatInt(cred.ExpiresAt.Unix(), 10) {
		t.Fatalf("unexpected expiry metadata %+v", ev.Metadata)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricBindIssued]; got != 1 {
		t.Fatalf("expected 1 bind issued, got %d", got)
	}

	if _, err := env.engine.IssueBind(ctx, BindPayload{PlayerUUID: "p-10", PlayerName: "Alex"}); err != nil {
		t.Fatalf("IssueBind failed: %v", err)
	}
	ev = sink.waitFor(t, auditEventBindIssued)
	if ev.PlayerUUID != "p-10" {
		t.Fatalf("expected player uuid on bind event, got %+v", ev)
	}
}
