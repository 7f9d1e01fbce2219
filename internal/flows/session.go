package flows

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type SessionDeps[U any] struct {
	Store            CredentialStore
	Prefix           string
	SessionTTL       time.Duration
	RenewalThreshold time.Duration
	LoadUser         func(ctx context.Context, userID int64) (U, error)
	// OnRenewFailed observes a failed renewal; verification still succeeds.
	OnRenewFailed func(err error)

	NotFoundErr       error
	SubjectGoneErr    error
	StoreErr          error
	EngineNotReadyErr error
	// StoreNotFoundErr is the store's own absence sentinel.
	StoreNotFoundErr error
}

type SessionOutcome[U any] struct {
	UserID     int64
	User       U
	WasRenewed bool
	// TTL is the remaining lifetime observed before any renewal.
	TTL time.Duration
}

// RunVerifySession resolves a session credential to its user and resets the
// TTL when the remaining lifetime is under the renewal threshold. Concurrent
// verifications of the same credential may each renew; the reset is idempotent.
func RunVerifySession[U any](ctx context.Context, secret string, deps SessionDeps[U]) (*SessionOutcome[U], error) {
	if deps.Store == nil || deps.LoadUser == nil {
		return nil, deps.EngineNotReadyErr
	}
	if !strings.HasPrefix(secret, deps.Prefix) || len(secret) == len(deps.Prefix) {
		return nil, deps.NotFoundErr
	}

	raw, ttl, err := deps.Store.Lookup(ctx, secret)
	if err != nil {
		if deps.StoreNotFoundErr != nil && errors.Is(err, deps.StoreNotFoundErr) {
			return nil, deps.NotFoundErr
		}
		return nil, fmt.Errorf("%w: %v", deps.StoreErr, err)
	}

	userID, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || userID <= 0 {
		return nil, deps.NotFoundErr
	}

	user, err := deps.LoadUser(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.NotFoundErr) {
			return nil, deps.SubjectGoneErr
		}
		return nil, fmt.Errorf("%w: %v", deps.StoreErr, err)
	}

	out := &SessionOutcome[U]{UserID: userID, User: user, TTL: ttl}
	if ttl < deps.RenewalThreshold {
		if err := deps.Store.Expire(ctx, secret, deps.SessionTTL); err != nil {
			if deps.OnRenewFailed != nil {
				deps.OnRenewFailed(err)
			}
			return out, nil
		}
		out.WasRenewed = true
	}
	return out, nil
}
