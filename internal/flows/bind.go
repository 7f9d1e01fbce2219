package flows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BindData is the stored form of a bind credential payload.
type BindData struct {
	PlayerUUID string `json:"player_uuid"`
	PlayerName string `json:"player_name,omitempty"`
	Action     string `json:"action,omitempty"`
}

type BindDeps struct {
	Store  CredentialStore
	Prefix string

	NotFoundErr       error
	StoreErr          error
	EngineNotReadyErr error
	StoreNotFoundErr  error
}

func RunVerifyBind(ctx context.Context, secret string, deps BindDeps) (*BindData, error) {
	if deps.Store == nil {
		return nil, deps.EngineNotReadyErr
	}
	if !strings.HasPrefix(secret, deps.Prefix) || len(secret) == len(deps.Prefix) {
		return nil, deps.NotFoundErr
	}

	raw, _, err := deps.Store.Lookup(ctx, secret)
	if err != nil {
		if deps.StoreNotFoundErr != nil && errors.Is(err, deps.StoreNotFoundErr) {
			return nil, deps.NotFoundErr
		}
		return nil, fmt.Errorf("%w: %v", deps.StoreErr, err)
	}

	var data BindData
	if err := json.Unmarshal([]byte(raw), &data); err != nil || data.PlayerUUID == "" {
		return nil, deps.NotFoundErr
	}
	return &data, nil
}
