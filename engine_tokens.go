package passport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/miaomc/passport/internal/flows"
	"github.com/miaomc/passport/internal/stores"
)

// Issue generates a fresh credential of kind, stores payload under it with
// ttl and returns it. Secrets are retried on collision up to
// Config.Token.MaxIssueAttempts times, then [ErrCollisionExhausted].
//
// The existence check and the write are not atomic: two concurrent issuers
// that draw the same secret can both succeed and the later write wins.
//
// Every issuance, successful or not, is audited with the credential kind.
func (e *Engine) Issue(ctx context.Context, kind CredentialKind, subjectID, payload string, ttl time.Duration) (*Credential, error) {
	return e.issue(ctx, kind, subjectID, "", payload, ttl)
}

func (e *Engine) issue(ctx context.Context, kind CredentialKind, subjectID, playerUUID, payload string, ttl time.Duration) (*Credential, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if kind.Prefix() == "" {
		return nil, fmt.Errorf("%w: unknown credential kind", ErrValidation)
	}

	trackSet := ""
	if kind == KindSession && subjectID != "" {
		trackSet = stores.SubjectSetKey(subjectID)
	}

	issuedAt := e.now()
	out, err := flows.RunIssue(ctx, flows.IssueRequest{
		Prefix:      kind.Prefix(),
		SecretBytes: e.secretBytes(kind),
		Payload:     payload,
		TTL:         ttl,
		TrackSet:    trackSet,
	}, e.flows.Issue)
	if err != nil {
		if errors.Is(err, ErrCollisionExhausted) {
			e.metricInc(MetricIssueExhausted)
		}
		e.log("token").Error("credential issuance failed", "kind", kind.String(), "error", err)
		e.emitAudit(ctx, auditEventIssueFailure, false, subjectID, playerUUID, err, func() map[string]string {
			return map[string]string{
				"kind": kind.String(),
			}
		})
		return nil, err
	}

	cred := &Credential{
		Secret:    out.Key,
		Kind:      kind,
		Payload:   payload,
		TTL:       ttl,
		SubjectID: subjectID,
		ExpiresAt: issuedAt.Add(ttl),
	}

	event, metric := issuedEvent(kind)
	e.metricInc(metric)
	e.emitAudit(ctx, event, true, subjectID, playerUUID, nil, func() map[string]string {
		return map[string]string{
			"kind":       kind.String(),
			"attempts":   strconv.Itoa(out.Attempts),
			"expires_at": strconv.FormatInt(cred.ExpiresAt.Unix(), 10),
		}
	})
	return cred, nil
}

func issuedEvent(kind CredentialKind) (string, MetricID) {
	switch kind {
	case KindBind:
		return auditEventBindIssued, MetricBindIssued
	case KindMailCode:
		return auditEventMailCodeIssued, MetricMailCodeIssued
	default:
		return auditEventSessionIssued, MetricSessionIssued
	}
}

func (e *Engine) secretBytes(kind CredentialKind) int {
	switch kind {
	case KindBind:
		return e.config.Token.BindSecretBytes
	case KindMailCode:
		return e.config.Token.MailCodeBytes
	default:
		return e.config.Token.SecretBytes
	}
}

// IssueSession issues a session credential for userID with the configured
// session TTL and tracks it in the user's credential set.
func (e *Engine) IssueSession(ctx context.Context, userID int64) (*Credential, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id must be positive", ErrValidation)
	}
	uid := strconv.FormatInt(userID, 10)

	return e.Issue(ctx, KindSession, uid, uid, e.config.Token.SessionTTL)
}

// IssueBind issues a bind credential carrying payload for [BindTTL].
func (e *Engine) IssueBind(ctx context.Context, payload BindPayload) (*Credential, error) {
	if strings.TrimSpace(payload.PlayerUUID) == "" {
		return nil, fmt.Errorf("%w: player uuid required", ErrValidation)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	return e.issue(ctx, KindBind, "", payload.PlayerUUID, string(raw), BindTTL)
}

// VerifySession resolves a session credential to its user. A remaining TTL
// under [RenewalThreshold] resets it to the session TTL and sets WasRenewed.
func (e *Engine) VerifySession(ctx context.Context, secret string) (*SessionResult, error) {
	if e == nil || e.store == nil || e.identity == nil {
		return nil, ErrEngineNotReady
	}

	out, err := flows.RunVerifySession(ctx, secret, e.sessionDeps())
	if err != nil {
		e.metricInc(MetricSessionInvalid)
		e.emitAudit(ctx, auditEventSessionInvalid, false, "", "", err, nil)
		return nil, err
	}

	uid := strconv.FormatInt(out.UserID, 10)
	e.metricInc(MetricSessionVerified)
	if out.WasRenewed {
		e.metricInc(MetricSessionRenewed)
		e.emitAudit(ctx, auditEventSessionRenewed, true, uid, "", nil, func() map[string]string {
			return map[string]string{
				"remaining_seconds": strconv.FormatInt(int64(out.TTL/time.Second), 10),
			}
		})
	} else {
		e.emitAudit(ctx, auditEventSessionVerified, true, uid, "", nil, nil)
	}

	return &SessionResult{
		User:       out.User,
		WasRenewed: out.WasRenewed,
		TTL:        out.TTL,
	}, nil
}

// VerifyBind returns the payload of a live bind credential.
func (e *Engine) VerifyBind(ctx context.Context, secret string) (*BindPayload, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	data, err := flows.RunVerifyBind(ctx, secret, e.flows.Bind)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricBindVerified)
	e.emitAudit(ctx, auditEventBindVerified, true, "", data.PlayerUUID, nil, nil)
	return &BindPayload{
		PlayerUUID: data.PlayerUUID,
		PlayerName: data.PlayerName,
		Action:     data.Action,
	}, nil
}

// IssueMailCode stores a fresh code for email with [MailCodeTTL] and returns
// the bare code, without its key prefix.
func (e *Engine) IssueMailCode(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("%w: email required", ErrValidation)
	}

	cred, err := e.Issue(ctx, KindMailCode, "", email, MailCodeTTL)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(cred.Secret, KindMailCode.Prefix()), nil
}

// VerifyMailCode checks that code was issued for email and is still live.
func (e *Engine) VerifyMailCode(ctx context.Context, email, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := flows.RunVerifyMailCode(ctx, email, code, e.flows.MailCode); err != nil {
		return err
	}
	e.emitAudit(ctx, auditEventMailCodeVerified, true, "", "", nil, nil)
	return nil
}

// CheckExists reports whether secret is currently stored.
func (e *Engine) CheckExists(ctx context.Context, secret string) (bool, error) {
	if e == nil || e.store == nil {
		return false, ErrEngineNotReady
	}
	ok, err := e.store.Exists(ctx, secret)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return ok, nil
}
