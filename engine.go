package passport

import (
	"context"
	"crypto/rsa"
	"log/slog"
	"time"

	internalaudit "github.com/miaomc/passport/internal/audit"
	"github.com/miaomc/passport/internal/flows"
	"github.com/miaomc/passport/internal/stores"
	"github.com/miaomc/passport/internal/verifier"
	"go.opentelemetry.io/otel/trace"
)

// Engine issues and verifies credentials, runs the verifier protocol and
// resolves player bindings. It is safe for concurrent use once built.
type Engine struct {
	config    Config
	logger    *slog.Logger
	tracer    trace.Tracer
	store     *stores.CredentialStore
	identity  IdentityStore
	remote    RemoteTokenClient
	hasher    PasswordHasher
	mailer    MailSender
	decryptor *verifier.Decryptor
	clock     Clock
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	flows     flows.Deps
	limits    engineLimits

	newSecret func(n int) (string, error)
}

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
}

// Close drains the audit dispatcher. The Redis client and identity store are
// owned by the caller.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// PublicKey returns the key game-server clients wrap envelope keys for.
func (e *Engine) PublicKey() *rsa.PublicKey {
	if e == nil || e.decryptor == nil {
		return nil
	}
	return e.decryptor.PublicKey()
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) AuditFailed() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Failed()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Health pings the credential store.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.store == nil {
		return HealthStatus{}
	}
	latency, err := e.store.Ping(ctx)
	if err != nil {
		return HealthStatus{RedisAvailable: false, RedisLatency: latency}
	}
	return HealthStatus{RedisAvailable: true, RedisLatency: latency}
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

func (e *Engine) log(component string) *slog.Logger {
	if e == nil || e.logger == nil {
		return slog.Default().With("component", component)
	}
	return e.logger.With("component", component)
}

func (e *Engine) now() time.Time {
	if e.clock == nil {
		return time.Now()
	}
	return e.clock.Now()
}

func (e *Engine) initFlowDeps() {
	e.flows = flows.Deps{
		Issue: flows.IssueDeps{
			Store:       e.store,
			NewSecret:   func(n int) (string, error) { return e.newSecret(n) },
			MaxAttempts: e.config.Token.MaxIssueAttempts,
			OnCollision: func(attempt int) {
				e.metricInc(MetricIssueCollision)
				e.log("token").Debug("credential collision", "attempt", attempt)
			},
			ValidationErr:         ErrValidation,
			CollisionExhaustedErr: ErrCollisionExhausted,
			StoreErr:              ErrStore,
			EngineNotReadyErr:     ErrEngineNotReady,
		},
		Bind: flows.BindDeps{
			Store:             e.store,
			Prefix:            KindBind.Prefix(),
			NotFoundErr:       ErrNotFound,
			StoreErr:          ErrStore,
			EngineNotReadyErr: ErrEngineNotReady,
			StoreNotFoundErr:  stores.ErrCredentialNotFound,
		},
		MailCode: flows.MailCodeDeps{
			Store:             e.store,
			Prefix:            KindMailCode.Prefix(),
			ValidationErr:     ErrValidation,
			NotFoundErr:       ErrNotFound,
			MismatchErr:       ErrMailCodeMismatch,
			StoreErr:          ErrStore,
			EngineNotReadyErr: ErrEngineNotReady,
			StoreNotFoundErr:  stores.ErrCredentialNotFound,
		},
		Binding: flows.BindingDeps{
			GetPlayer: func(ctx context.Context, playerUUID string) (*flows.PlayerRecord, error) {
				p, err := e.identity.GetPlayer(ctx, playerUUID)
				if err != nil || p == nil {
					return nil, err
				}
				rec := toPlayerRecord(*p)
				return &rec, nil
			},
			ListPlayersByUser: func(ctx context.Context, userID int64) ([]flows.PlayerRecord, error) {
				players, err := e.identity.ListPlayersByUser(ctx, userID)
				if err != nil {
					return nil, err
				}
				out := make([]flows.PlayerRecord, 0, len(players))
				for _, p := range players {
					out = append(out, toPlayerRecord(p))
				}
				return out, nil
			},
			NotFoundErr: ErrNotFound,
		},
		Verify: flows.VerifyDeps{
			Decryptor: e.decryptor,
			FetchToken: func(ctx context.Context, tokenID string) (flows.RemoteTokenRecord, error) {
				tok, err := e.remote.FetchToken(ctx, tokenID)
				if err != nil {
					return flows.RemoteTokenRecord{}, err
				}
				return flows.RemoteTokenRecord{Token: tok.Token, ExpireAt: tok.ExpireAt}, nil
			},
			Now:               e.now,
			Salt:              e.config.Verifier.Salt,
			ValidationErr:     ErrValidation,
			RemoteTokenErr:    ErrRemoteToken,
			TokenExpiredErr:   ErrTokenExpired,
			EngineNotReadyErr: ErrEngineNotReady,
		},
	}
}

func (e *Engine) sessionDeps() flows.SessionDeps[*User] {
	return flows.SessionDeps[*User]{
		Store:            e.store,
		Prefix:           KindSession.Prefix(),
		SessionTTL:       e.config.Token.SessionTTL,
		RenewalThreshold: RenewalThreshold,
		LoadUser: func(ctx context.Context, userID int64) (*User, error) {
			return e.identity.GetUserByID(ctx, userID)
		},
		OnRenewFailed: func(err error) {
			e.log("token").Warn("session renewal failed", "error", err)
		},
		NotFoundErr:       ErrNotFound,
		SubjectGoneErr:    ErrSubjectGone,
		StoreErr:          ErrStore,
		EngineNotReadyErr: ErrEngineNotReady,
		StoreNotFoundErr:  stores.ErrCredentialNotFound,
	}
}

func toPlayerRecord(p Player) flows.PlayerRecord {
	return flows.PlayerRecord{
		UUID:      p.UUID,
		Name:      p.Name,
		UserID:    p.UserID,
		IsPrimary: p.IsPrimary,
		CreatedAt: p.CreatedAt,
	}
}

func fromPlayerRecord(r flows.PlayerRecord) Player {
	return Player{
		UUID:      r.UUID,
		Name:      r.Name,
		UserID:    r.UserID,
		IsPrimary: r.IsPrimary,
		CreatedAt: r.CreatedAt,
	}
}
