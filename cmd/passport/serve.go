package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/miaomc/passport"
	"github.com/miaomc/passport/identity/gormstore"
	"github.com/miaomc/passport/internal/config"
	"github.com/miaomc/passport/internal/httpapi"
	"github.com/miaomc/passport/internal/logging"
	"github.com/miaomc/passport/mail"
	promexport "github.com/miaomc/passport/metrics/export/prometheus"
	"github.com/miaomc/passport/remote"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const serviceName = "passport"

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewLoader().WithDotEnv().WithFlags(cmd.Flags()).Load()
			if err != nil {
				return err
			}
			logger := logging.Setup(serviceName, version, cfg.Log.Format, cfg.Log.Level, os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// app is the wired service: every dependency serve owns.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  *passport.Engine
	router  *gin.Engine
	metrics http.Handler
	redis   *redis.Client
	db      *gorm.DB
	tracer  *sdktrace.TracerProvider
}

// newApp connects the backing stores and builds the engine and router.
// On error everything opened so far is released.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	ready := false
	defer func() {
		if !ready {
			a.close(context.Background())
		}
	}()

	keyPEM, err := cfg.PrivateKeyPEM()
	if err != nil {
		return nil, err
	}
	if len(keyPEM) == 0 {
		return nil, passport.ErrPrivateKeyMissing
	}

	a.tracer = sdktrace.NewTracerProvider()

	a.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.redis.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}

	a.db, err = gormstore.Open(gormstore.Config{
		Driver:      cfg.Database.Driver,
		DSN:         cfg.Database.DSN,
		TablePrefix: cfg.Database.TablePrefix,
	})
	if err != nil {
		return nil, err
	}
	store := gormstore.New(a.db)
	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	rcfg := remote.DefaultConfig()
	rcfg.BaseURL = cfg.Remote.BaseURL
	rcfg.APIKey = cfg.Remote.APIKey
	rcfg.APISecret = cfg.Remote.APISecret
	rcfg.Timeout = cfg.Remote.Timeout
	rcfg.MaxRetries = cfg.Remote.MaxRetries
	remoteClient, err := remote.New(rcfg, remote.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	var mailer passport.MailSender = mail.NewLogSender(logger)
	if cfg.Mail.Host != "" {
		mailer, err = mail.NewSMTPSender(mail.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			Subject:  cfg.Mail.Subject,
		}, mail.WithLogger(logger))
		if err != nil {
			return nil, err
		}
	}

	var auditSink passport.AuditSink = gormstore.NewActivitySink(a.db, logger)
	if cfg.Debug {
		auditSink = passport.MultiSink{auditSink, passport.NewSlogSink(logger)}
	}

	a.engine, err = passport.New().
		WithConfig(cfg.Engine(keyPEM)).
		WithRedis(a.redis).
		WithIdentityStore(store).
		WithRemoteTokenClient(remoteClient).
		WithMailSender(mailer).
		WithAuditSink(auditSink).
		WithLogger(logger).
		WithTracerProvider(a.tracer).
		Build()
	if err != nil {
		return nil, err
	}
	report := a.engine.SecurityReport()
	logger.Info("security posture",
		"key_bits", report.KeyBits,
		"bcrypt_cost", report.BcryptCost,
		"rate_limiting", report.RateLimitingActive,
		"registration_open", report.RegistrationOpen,
	)
	for _, w := range report.Warnings() {
		logger.Warn("security posture", "finding", w)
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	a.router, err = httpapi.NewRouter(httpapi.Options{
		Engine:         a.engine,
		Logger:         logger,
		Debug:          cfg.Debug,
		AllowOrigins:   cfg.Server.AllowOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
		TracerProvider: a.tracer,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Listen != "" {
		exp, err := promexport.NewExporter(a.engine)
		if err != nil {
			return nil, err
		}
		a.metrics = exp.Handler()
	}
	ready = true
	return a, nil
}

func (a *app) close(ctx context.Context) {
	if a.engine != nil {
		a.engine.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.tracer != nil {
		_ = a.tracer.Shutdown(ctx)
	}
}

// runServe serves until ctx is done, then drains within the shutdown timeout.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}

	servers := []*http.Server{{
		Addr:              cfg.Server.Listen,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if a.metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics)
		servers = append(servers, &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		a.close(shutdownCtx)
		return errors.Join(errs...)
	})

	return g.Wait()
}
