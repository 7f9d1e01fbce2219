package passport

import (
	"context"
	"errors"
	"fmt"
)

// HandshakeResult is the outcome of a full verification handshake. Credential
// is a bind credential for Bind, a session credential for Login, and nil for
// Select.
type HandshakeResult struct {
	Player     VerifiedPlayer
	Binding    BindingResult
	Credential *Credential
}

// Handshake verifies the envelope, resolves the player's binding and issues
// the credential the decision calls for. A Failed decision is [ErrStore].
func (e *Engine) Handshake(ctx context.Context, envelope, hash string) (*HandshakeResult, error) {
	player, err := e.Verify(ctx, envelope, hash)
	if err != nil {
		return nil, err
	}

	binding := e.ResolveBinding(ctx, player.PlayerUUID)
	out := &HandshakeResult{Player: *player, Binding: binding}

	switch binding.Decision {
	case DecisionBind:
		cred, err := e.IssueBind(ctx, BindPayload{
			PlayerUUID: player.PlayerUUID,
			PlayerName: player.PlayerName,
			Action:     player.Action,
		})
		if err != nil {
			return nil, err
		}
		out.Credential = cred

	case DecisionLogin:
		if binding.Player == nil || binding.Player.UserID == nil {
			return nil, fmt.Errorf("%w: bound player without user", ErrStore)
		}
		cred, err := e.IssueSession(ctx, *binding.Player.UserID)
		if err != nil {
			return nil, err
		}
		out.Credential = cred

	case DecisionSelect:
		// candidates only; the client picks and logs in separately

	case DecisionFailed:
		return nil, fmt.Errorf("%w: %s", ErrStore, binding.Message)

	default:
		return nil, errors.New("unexpected binding decision " + string(binding.Decision))
	}

	return out, nil
}
