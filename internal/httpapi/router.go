package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/miaomc/passport"
	"github.com/miaomc/passport/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/miaomc/passport/internal/httpapi"

// Options configures the router.
type Options struct {
	Engine *passport.Engine
	Logger *slog.Logger
	// Debug exposes error chains in Result messages.
	Debug bool
	// AllowOrigins defaults to every origin.
	AllowOrigins   []string
	TrustedProxies []string
	TracerProvider trace.TracerProvider
}

// NewRouter builds the gin engine with recovery, request logging, tracing,
// CORS and the passport routes.
func NewRouter(opts Options) (*gin.Engine, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("http router requires an engine")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(tracingMiddleware(tp.Tracer(tracerName)))
	r.Use(loggingMiddleware(logger))
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, err
	}

	origins := opts.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			middleware.IntrospectTokenHeader,
			middleware.BindTokenHeader,
		},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	r.Use(middleware.ClientInfo())

	h := &handlers{engine: opts.Engine, debug: opts.Debug, logger: logger}

	r.GET("/healthz", h.health)

	root := r.Group("/passport")

	verifier := root.Group("/verifier")
	verifier.GET("/verify", h.verify)

	auth := root.Group("/auth")
	auth.POST("/login", h.login)
	auth.POST("/register", h.register)
	auth.POST("/introspect", middleware.Session(opts.Engine), h.introspect)

	bind := root.Group("/bind", middleware.RequireBind(opts.Engine, opts.Debug))
	bind.POST("/sendCode", h.sendCode)
	bind.POST("/verifyCode", h.verifyCode)
	bind.POST("/bindExist", h.bindExist)

	return r, nil
}

func loggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}

func tracingMiddleware(tracer trace.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		ctx, span := tracer.Start(c.Request.Context(), "http.server",
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
			))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
