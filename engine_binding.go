package passport

import (
	"context"
	"strings"
	"time"

	"github.com/miaomc/passport/internal/flows"
)

// BindingDecision is the next step for a verified player.
type BindingDecision string

const (
	DecisionBind   BindingDecision = flows.NextBind
	DecisionLogin  BindingDecision = flows.NextLogin
	DecisionSelect BindingDecision = flows.NextSelect
	// DecisionCreate is reserved; the resolver never returns it.
	DecisionCreate BindingDecision = flows.NextCreate
	DecisionFailed BindingDecision = flows.NextFailed
)

// PlayerRef identifies the verified player and, when bound, its user.
type PlayerRef struct {
	PlayerUUID string `json:"player_uuid"`
	PlayerName string `json:"player_name"`
	UserID     *int64 `json:"user_id,omitempty"`
}

// LinkedPlayer is one candidate in a Select decision.
type LinkedPlayer struct {
	PlayerUUID string    `json:"player_uuid"`
	PlayerName string    `json:"player_name"`
	UserID     int64     `json:"user_id"`
	IsPrimary  bool      `json:"is_primary"`
	CreatedAt  time.Time `json:"created_at"`
}

type BindingResult struct {
	Decision BindingDecision `json:"next"`
	Player   *PlayerRef      `json:"player,omitempty"`
	Players  []LinkedPlayer  `json:"players,omitempty"`
	Message  string          `json:"message,omitempty"`
}

const bindingFailedMessage = "Error when processing player binding"

// ResolveBinding decides Bind, Login, Select or Failed for playerUUID from the
// identity store. Store errors yield Failed with the error text only when
// Config.Debug is set.
func (e *Engine) ResolveBinding(ctx context.Context, playerUUID string) BindingResult {
	if e == nil || e.identity == nil {
		return BindingResult{Decision: DecisionFailed, Message: bindingFailedMessage}
	}
	playerUUID = strings.TrimSpace(playerUUID)
	if playerUUID == "" {
		return BindingResult{Decision: DecisionFailed, Message: bindingFailedMessage}
	}

	out := flows.RunResolveBinding(ctx, playerUUID, e.flows.Binding)
	res := BindingResult{Decision: BindingDecision(out.Next)}
	if out.Player != nil {
		res.Player = &PlayerRef{
			PlayerUUID: out.Player.UUID,
			PlayerName: out.Player.Name,
			UserID:     out.Player.UserID,
		}
	}

	switch res.Decision {
	case DecisionBind:
		e.metricInc(MetricBindingBind)
	case DecisionLogin:
		e.metricInc(MetricBindingLogin)
	case DecisionSelect:
		e.metricInc(MetricBindingSelect)
		res.Players = make([]LinkedPlayer, 0, len(out.Siblings))
		for _, rec := range out.Siblings {
			p := fromPlayerRecord(rec)
			lp := LinkedPlayer{
				PlayerUUID: p.UUID,
				PlayerName: p.Name,
				IsPrimary:  p.IsPrimary,
				CreatedAt:  p.CreatedAt,
			}
			if p.UserID != nil {
				lp.UserID = *p.UserID
			}
			res.Players = append(res.Players, lp)
		}
	case DecisionFailed:
		e.metricInc(MetricBindingFailed)
		e.log("binding").ErrorContext(ctx, "binding resolution failed", "player_uuid", playerUUID, "error", out.Err)
		res.Message = bindingFailedMessage
		if e.config.Debug && out.Err != nil {
			res.Message = out.Err.Error()
		}
	}

	e.emitAudit(ctx, auditEventBindingResolved, res.Decision != DecisionFailed, "", playerUUID, nil, func() map[string]string {
		return map[string]string{
			"next": string(res.Decision),
		}
	})
	return res
}
