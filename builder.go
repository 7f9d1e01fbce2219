package passport

import (
	"errors"
	"log/slog"

	"github.com/miaomc/passport/internal"
	internalaudit "github.com/miaomc/passport/internal/audit"
	"github.com/miaomc/passport/internal/stores"
	"github.com/miaomc/passport/internal/verifier"
	"github.com/miaomc/passport/password"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/miaomc/passport"

// Builder assembles an [Engine]. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	identity IdentityStore
	remote   RemoteTokenClient
	hasher   PasswordHasher
	mailer   MailSender
	sink     AuditSink
	clock    Clock
	logger   *slog.Logger
	tracer   trace.TracerProvider

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the credential store backend. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityStore sets the user and player repository. Required.
func (b *Builder) WithIdentityStore(store IdentityStore) *Builder {
	b.identity = store
	return b
}

// WithRemoteTokenClient sets the ephemeral token fetcher. Required.
func (b *Builder) WithRemoteTokenClient(client RemoteTokenClient) *Builder {
	b.remote = client
	return b
}

// WithPasswordHasher overrides the default bcrypt hasher.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithMailSender sets the verification code sender used by the bind flow.
func (b *Builder) WithMailSender(m MailSender) *Builder {
	b.mailer = m
	return b
}

// WithAuditSink sets the audit destination. Events are only dispatched when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

func (b *Builder) WithClock(c Clock) *Builder {
	b.clock = c
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracer = tp
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, parses the service private key and
// returns a ready Engine. A missing key is [ErrPrivateKeyMissing].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if len(cfg.Verifier.PrivateKeyPEM) == 0 {
		return nil, ErrPrivateKeyMissing
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.identity == nil {
		return nil, errors.New("identity store required")
	}
	if b.remote == nil {
		return nil, errors.New("remote token client required")
	}

	// -------- VERIFIER --------
	key, err := verifier.ParsePrivateKeyPEM(cfg.Verifier.PrivateKeyPEM)
	if err != nil {
		return nil, err
	}
	decryptor, err := verifier.NewDecryptor(key, verifier.DefaultRegistry())
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := b.tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	clock := b.clock
	if clock == nil {
		clock = systemClock{}
	}

	hasher := b.hasher
	if hasher == nil {
		bc, err := password.NewBcrypt(cfg.Password.BcryptCost)
		if err != nil {
			return nil, err
		}
		hasher = bc
	}

	engine := &Engine{
		config:    cloneConfig(cfg),
		logger:    logger,
		tracer:    tp.Tracer(instrumentationName),
		store:     stores.NewCredentialStore(b.redis),
		identity:  b.identity,
		remote:    b.remote,
		hasher:    hasher,
		mailer:    b.mailer,
		decryptor: decryptor,
		clock:     clock,
		newSecret: internal.NewSecretHex,
	}
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.limits = newEngineLimits(b.redis, cfg.RateLimit)
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.sink, logger)
	engine.initFlowDeps()

	b.built = true

	return engine, nil
}
