package passport

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

const (
	auditEventSessionIssued     = "session_issued"
	auditEventSessionVerified   = "session_verified"
	auditEventSessionRenewed    = "session_renewed"
	auditEventSessionInvalid    = "session_invalid"
	auditEventBindIssued        = "bind_issued"
	auditEventBindVerified      = "bind_verified"
	auditEventMailCodeIssued    = "mail_code_issued"
	auditEventMailCodeVerified  = "mail_code_verified"
	auditEventIssueFailure      = "issue_failure"
	auditEventVerifySuccess     = "verify_success"
	auditEventVerifyFailure     = "verify_failure"
	auditEventBindingResolved   = "binding_resolved"
	auditEventLoginSuccess      = "login_success"
	auditEventLoginFailure      = "login_failure"
	auditEventAccountCreated    = "account_created"
	auditEventAccountRejected   = "account_rejected"
	auditEventPlayerBound       = "player_bound"
	auditEventPlayerBindFailure = "player_bind_failure"
	auditEventRateLimited       = "rate_limited"
)

// AuditErrorCode is the coarse error tag stored on audit events.
type AuditErrorCode string

const (
	auditErrValidation         AuditErrorCode = "validation"
	auditErrDecode             AuditErrorCode = "decode"
	auditErrKeyUnwrap          AuditErrorCode = "key_unwrap"
	auditErrPayloadDecrypt     AuditErrorCode = "payload_decrypt"
	auditErrIncompleteClaim    AuditErrorCode = "incomplete_claim"
	auditErrHashMismatch       AuditErrorCode = "hash_mismatch"
	auditErrRemoteToken        AuditErrorCode = "remote_token"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrSubjectGone        AuditErrorCode = "subject_gone"
	auditErrCollisionExhausted AuditErrorCode = "collision_exhausted"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrRegistrationClosed AuditErrorCode = "registration_closed"
	auditErrMailCodeMismatch   AuditErrorCode = "mail_code_mismatch"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	playerUUID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		ID:         uuid.NewString(),
		Timestamp:  e.now().UTC(),
		EventType:  eventType,
		UserID:     userID,
		PlayerUUID: playerUUID,
		IP:         clientIPFromContext(ctx),
		UserAgent:  userAgentFromContext(ctx),
		Success:    success,
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrDecode):
		return auditErrDecode
	case errors.Is(err, ErrKeyUnwrap):
		return auditErrKeyUnwrap
	case errors.Is(err, ErrPayloadDecrypt):
		return auditErrPayloadDecrypt
	case errors.Is(err, ErrIncompleteClaim):
		return auditErrIncompleteClaim
	case errors.Is(err, ErrHashMismatch):
		return auditErrHashMismatch
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrRemoteToken):
		return auditErrRemoteToken
	case errors.Is(err, ErrSubjectGone):
		return auditErrSubjectGone
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrCollisionExhausted):
		return auditErrCollisionExhausted
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrDuplicate):
		return auditErrDuplicate
	case errors.Is(err, ErrRegistrationClosed):
		return auditErrRegistrationClosed
	case errors.Is(err, ErrMailCodeMismatch):
		return auditErrMailCodeMismatch
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrStore), errors.Is(err, ErrEngineNotReady):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
