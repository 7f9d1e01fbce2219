package flows

import (
	"context"
	"errors"
	"time"
)

// Binding decisions, in the wire spelling.
const (
	NextBind   = "Bind"
	NextLogin  = "Login"
	NextSelect = "Select"
	NextCreate = "Create"
	NextFailed = "Failed"
)

type PlayerRecord struct {
	UUID      string
	Name      string
	UserID    *int64
	IsPrimary bool
	CreatedAt time.Time
}

type BindingDeps struct {
	GetPlayer         func(ctx context.Context, playerUUID string) (*PlayerRecord, error)
	ListPlayersByUser func(ctx context.Context, userID int64) ([]PlayerRecord, error)
	NotFoundErr       error
}

type BindingOutcome struct {
	Next     string
	Player   *PlayerRecord
	Siblings []PlayerRecord
	Err      error
}

// RunResolveBinding decides the next step for a verified player from the
// identity store alone. It never returns NextCreate.
func RunResolveBinding(ctx context.Context, playerUUID string, deps BindingDeps) BindingOutcome {
	if deps.GetPlayer == nil || deps.ListPlayersByUser == nil {
		return BindingOutcome{Next: NextFailed, Err: errors.New("identity store not configured")}
	}

	player, err := deps.GetPlayer(ctx, playerUUID)
	if err != nil {
		if deps.NotFoundErr != nil && errors.Is(err, deps.NotFoundErr) {
			return BindingOutcome{Next: NextBind}
		}
		return BindingOutcome{Next: NextFailed, Err: err}
	}
	if player == nil || player.UserID == nil {
		return BindingOutcome{Next: NextBind, Player: player}
	}

	if !player.IsPrimary {
		return BindingOutcome{Next: NextLogin, Player: player}
	}

	siblings, err := deps.ListPlayersByUser(ctx, *player.UserID)
	if err != nil {
		return BindingOutcome{Next: NextFailed, Player: player, Err: err}
	}
	if len(siblings) > 1 {
		return BindingOutcome{Next: NextSelect, Player: player, Siblings: siblings}
	}
	return BindingOutcome{Next: NextLogin, Player: player}
}
