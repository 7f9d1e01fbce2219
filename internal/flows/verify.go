package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miaomc/passport/internal/verifier"
)

type RemoteTokenRecord struct {
	Token    string
	ExpireAt time.Time
}

type VerifyDeps struct {
	Decryptor  *verifier.Decryptor
	FetchToken func(ctx context.Context, tokenID string) (RemoteTokenRecord, error)
	Now        func() time.Time
	Salt       string

	ValidationErr     error
	RemoteTokenErr    error
	TokenExpiredErr   error
	EngineNotReadyErr error
}

type VerifyOutcome struct {
	Claim       verifier.Claim
	PlainBase64 string
	Algorithm   string
}

// RunVerify executes the verification stages in order: envelope decrypt and
// claim parse, remote token fetch, expiry, then the hash challenge. Each stage
// is reached only when every earlier one succeeded.
func RunVerify(ctx context.Context, envelope, hash string, deps VerifyDeps) (*VerifyOutcome, error) {
	if deps.Decryptor == nil || deps.FetchToken == nil {
		return nil, deps.EngineNotReadyErr
	}
	if strings.TrimSpace(envelope) == "" || strings.TrimSpace(hash) == "" {
		return nil, deps.ValidationErr
	}

	decrypted, err := deps.Decryptor.Decrypt(envelope)
	if err != nil {
		return nil, err
	}

	remote, err := deps.FetchToken(ctx, decrypted.Claim.TokenID)
	if err != nil {
		if errors.Is(err, deps.RemoteTokenErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", deps.RemoteTokenErr, err)
	}

	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	if remote.Token == "" {
		return nil, fmt.Errorf("%w: remote token is empty", deps.RemoteTokenErr)
	}
	if now().After(remote.ExpireAt) {
		return nil, fmt.Errorf("%w: expired at %s", deps.TokenExpiredErr, remote.ExpireAt.UTC().Format(time.RFC3339))
	}

	if !verifier.HashMatches(decrypted.PlainBase64, remote.Token, deps.Salt, hash) {
		return nil, verifier.ErrHashMismatch
	}

	return &VerifyOutcome{
		Claim:       decrypted.Claim,
		PlainBase64: decrypted.PlainBase64,
		Algorithm:   decrypted.Algorithm,
	}, nil
}
