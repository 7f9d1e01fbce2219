package passport

import (
	"context"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/miaomc/passport/internal/audit"
	internalmetrics "github.com/miaomc/passport/internal/metrics"
)

// Player is a game identity. A player with IsPrimary set always has a UserID.
type Player struct {
	UUID      string
	Name      string
	UserID    *int64
	IsPrimary bool
	CreatedAt time.Time
}

// Bound reports whether the player is linked to a user.
func (p *Player) Bound() bool {
	return p != nil && p.UserID != nil
}

// User is a web account.
type User struct {
	ID           int64
	Email        string
	Username     string
	Nickname     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// CreateUserInput carries the fields needed to insert a user. PasswordHash is
// already hashed.
type CreateUserInput struct {
	Email        string
	Username     string
	Nickname     string
	PasswordHash string
	Role         string
}

// CreatePlayerInput carries the fields needed to insert a player row.
type CreatePlayerInput struct {
	UUID      string
	Name      string
	UserID    *int64
	IsPrimary bool
}

// IdentityStore is the user and player repository. Lookups of absent rows
// return an error wrapping [ErrNotFound]; unique violations wrap [ErrDuplicate].
//
// Implementations must be safe for concurrent use. See identity/gormstore.
type IdentityStore interface {
	GetPlayer(ctx context.Context, playerUUID string) (*Player, error)
	ListPlayersByUser(ctx context.Context, userID int64) ([]Player, error)
	GetUserByID(ctx context.Context, userID int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, input CreateUserInput) (*User, error)
	CreatePlayer(ctx context.Context, input CreatePlayerInput) (*Player, error)
}

// RemoteToken is the ephemeral verifier token held by the remote service.
type RemoteToken struct {
	TokenID   string
	Token     string
	ExpireAt  time.Time
	CreatedAt time.Time
}

// RemoteTokenClient fetches the ephemeral token a claim refers to. Failures,
// timeouts and negative responses are reported as errors wrapping
// [ErrRemoteToken].
type RemoteTokenClient interface {
	FetchToken(ctx context.Context, tokenID string) (RemoteToken, error)
}

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// MailSender delivers a verification code. Delivery is at-most-once from the
// engine's point of view.
type MailSender interface {
	SendCode(ctx context.Context, email, code string, ttl time.Duration) error
}

// Clock supplies the current time. The remote token expiry check uses it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// VerifiedPlayer is the output of a successful verification.
type VerifiedPlayer struct {
	PlayerUUID string `json:"player_uuid"`
	PlayerName string `json:"player_name"`
	Action     string `json:"action"`
}

// AuditEvent is the structured audit payload emitted by the Engine.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events. Emit must not block the caller for long;
// the Engine dispatches asynchronously when auditing is enabled.
type AuditSink = internalaudit.Sink

// NoOpSink discards every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards events to a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs events through a slog.Logger.
type SlogSink = internalaudit.SlogSink

// MultiSink fans an event out to several sinks.
type MultiSink = internalaudit.MultiSink

// NewChannelSink returns a sink whose events are read from Events().
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink logging each event; failures log at Warn.
func NewSlogSink(logger *slog.Logger) SlogSink {
	return internalaudit.NewSlogSink(logger)
}

// MetricID identifies an engine counter or histogram.
type MetricID = internalmetrics.MetricID

const (
	MetricSessionIssued      = internalmetrics.MetricSessionIssued
	MetricSessionVerified    = internalmetrics.MetricSessionVerified
	MetricSessionRenewed     = internalmetrics.MetricSessionRenewed
	MetricSessionInvalid     = internalmetrics.MetricSessionInvalid
	MetricBindIssued         = internalmetrics.MetricBindIssued
	MetricBindVerified       = internalmetrics.MetricBindVerified
	MetricMailCodeIssued     = internalmetrics.MetricMailCodeIssued
	MetricIssueCollision     = internalmetrics.MetricIssueCollision
	MetricIssueExhausted     = internalmetrics.MetricIssueExhausted
	MetricVerifySuccess      = internalmetrics.MetricVerifySuccess
	MetricVerifyFailure      = internalmetrics.MetricVerifyFailure
	MetricVerifyHashMismatch = internalmetrics.MetricVerifyHashMismatch
	MetricVerifyExpired      = internalmetrics.MetricVerifyExpired
	MetricBindingBind        = internalmetrics.MetricBindingBind
	MetricBindingLogin       = internalmetrics.MetricBindingLogin
	MetricBindingSelect      = internalmetrics.MetricBindingSelect
	MetricBindingFailed      = internalmetrics.MetricBindingFailed
	MetricLoginSuccess       = internalmetrics.MetricLoginSuccess
	MetricLoginFailure       = internalmetrics.MetricLoginFailure
	MetricAccountCreated     = internalmetrics.MetricAccountCreated
	MetricPlayerBound        = internalmetrics.MetricPlayerBound
	MetricRateLimited        = internalmetrics.MetricRateLimited
	MetricVerifyLatency      = internalmetrics.MetricVerifyLatency
)

// Metrics is the lock-free counter set owned by the Engine.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of the engine metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics builds a metrics set from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Enabled,
		EnableLatencyHistograms: cfg.EnableLatencyHistograms,
	})
}
