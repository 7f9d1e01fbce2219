package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type MailCodeDeps struct {
	Store  CredentialStore
	Prefix string

	ValidationErr     error
	NotFoundErr       error
	MismatchErr       error
	StoreErr          error
	EngineNotReadyErr error
	StoreNotFoundErr  error
}

// RunVerifyMailCode checks that code was issued for email. Codes are not
// consumed; they expire with their TTL.
func RunVerifyMailCode(ctx context.Context, email, code string, deps MailCodeDeps) error {
	if deps.Store == nil {
		return deps.EngineNotReadyErr
	}
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return deps.ValidationErr
	}

	stored, _, err := deps.Store.Lookup(ctx, deps.Prefix+code)
	if err != nil {
		if deps.StoreNotFoundErr != nil && errors.Is(err, deps.StoreNotFoundErr) {
			return deps.NotFoundErr
		}
		return fmt.Errorf("%w: %v", deps.StoreErr, err)
	}
	if stored != email {
		return deps.MismatchErr
	}
	return nil
}
