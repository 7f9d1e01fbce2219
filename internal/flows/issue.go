package flows

import (
	"context"
	"fmt"
	"time"
)

// CredentialStore is the key/value surface issuance and verification need.
type CredentialStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration, trackSet string) error
	Lookup(ctx context.Context, key string) (string, time.Duration, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

type IssueRequest struct {
	Prefix      string
	SecretBytes int
	Payload     string
	TTL         time.Duration
	// TrackSet, when set, names a set the issued key is added to.
	TrackSet string
}

type IssueDeps struct {
	Store       CredentialStore
	NewSecret   func(n int) (string, error)
	MaxAttempts int
	OnCollision func(attempt int)

	ValidationErr         error
	CollisionExhaustedErr error
	StoreErr              error
	EngineNotReadyErr     error
}

type IssueOutcome struct {
	Key      string
	Attempts int
}

// RunIssue generates prefixed secrets until one is absent from the store, then
// writes the payload under it. The existence check and the write are separate
// round trips; two issuers drawing the same secret in that window both write.
func RunIssue(ctx context.Context, req IssueRequest, deps IssueDeps) (*IssueOutcome, error) {
	if deps.Store == nil || deps.NewSecret == nil {
		return nil, deps.EngineNotReadyErr
	}
	if req.Prefix == "" || req.TTL <= 0 || req.SecretBytes <= 0 {
		return nil, deps.ValidationErr
	}

	maxAttempts := deps.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		secret, err := deps.NewSecret(req.SecretBytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", deps.StoreErr, err)
		}
		key := req.Prefix + secret

		exists, err := deps.Store.Exists(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", deps.StoreErr, err)
		}
		if exists {
			if deps.OnCollision != nil {
				deps.OnCollision(attempt)
			}
			continue
		}

		if err := deps.Store.Put(ctx, key, req.Payload, req.TTL, req.TrackSet); err != nil {
			return nil, fmt.Errorf("%w: %v", deps.StoreErr, err)
		}
		return &IssueOutcome{Key: key, Attempts: attempt}, nil
	}

	return nil, deps.CollisionExhaustedErr
}
