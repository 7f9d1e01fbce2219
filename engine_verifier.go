package passport

import (
	"context"
	"errors"
	"time"

	"github.com/miaomc/passport/internal/flows"
	"github.com/miaomc/passport/internal/verifier"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Verify runs the verifier protocol over a base64 envelope and the client's
// hash. Stages are strictly ordered: decode, key unwrap, payload decrypt,
// claim parse, remote token fetch, expiry, hash. The first failing stage
// determines the error; an expired remote token is reported even when the
// hash would not match.
func (e *Engine) Verify(ctx context.Context, envelope, hash string) (*VerifiedPlayer, error) {
	if e == nil || e.decryptor == nil || e.remote == nil {
		return nil, ErrEngineNotReady
	}

	ctx, span := e.tracer.Start(ctx, "passport.verify", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	start := time.Now()
	out, err := flows.RunVerify(ctx, envelope, hash, e.flows.Verify)
	e.metricObserve(MetricVerifyLatency, time.Since(start))

	if err != nil {
		e.recordVerifyFailure(ctx, span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("passport.player_uuid", out.Claim.PlayerUUID),
		attribute.String("passport.action", out.Claim.Action),
		attribute.String("passport.algorithm", out.Algorithm),
	)
	span.SetStatus(codes.Ok, "")

	e.metricInc(MetricVerifySuccess)
	e.emitAudit(ctx, auditEventVerifySuccess, true, "", out.Claim.PlayerUUID, nil, func() map[string]string {
		return map[string]string{
			"action":   out.Claim.Action,
			"token_id": out.Claim.TokenID,
		}
	})

	return &VerifiedPlayer{
		PlayerUUID: out.Claim.PlayerUUID,
		PlayerName: out.Claim.PlayerName,
		Action:     out.Claim.Action,
	}, nil
}

func (e *Engine) recordVerifyFailure(ctx context.Context, span trace.Span, err error) {
	kind := KindOf(err)

	e.metricInc(MetricVerifyFailure)
	switch {
	case errors.Is(err, ErrHashMismatch):
		e.metricInc(MetricVerifyHashMismatch)
	case errors.Is(err, ErrTokenExpired):
		e.metricInc(MetricVerifyExpired)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, string(kind))
	span.SetAttributes(attribute.String("passport.error_kind", string(kind)))

	logger := e.log("verifier")
	if verifier.IsPipelineError(err) || errors.Is(err, ErrValidation) {
		logger.InfoContext(ctx, "envelope rejected", "kind", kind, "error", err)
	} else {
		logger.WarnContext(ctx, "verification failed", "kind", kind, "error", err)
	}

	e.emitAudit(ctx, auditEventVerifyFailure, false, "", "", err, nil)
}
