package action

import (
	"context"

	"github.com/unomas/cancha/internal/unomas"
)

// Join requests a seat for user. The prediction adds the user to the
// roster and, when that fills the match, moves it to ASSEMBLED.
func Join(api unomas.MatchAPI, matchID string, user unomas.Player) Request {
	return Request{
		Kind:    KindJoin,
		MatchID: matchID,
		Transform: func(m unomas.Match) unomas.Match {
			if m.HasPlayer(user.ID) {
				return m
			}
			p := user
			p.Organizer = false
			m.Roster = append(m.Roster, p)
			m.CurrentPlayers++
			m.CanJoin = false
			if m.Status == unomas.StatusSeekingPlayers && m.RequiredPlayers > 0 && m.CurrentPlayers >= m.RequiredPlayers {
				m.Status = unomas.StatusAssembled
			}
			return m
		},
		Call: func(ctx context.Context) (unomas.ActionResult, error) {
			return api.JoinMatch(ctx, matchID)
		},
	}
}

// Confirm confirms the user's participation in an assembled match. The
// prediction shows the match as confirmed; the server decides whether every
// player has confirmed.
func Confirm(api unomas.MatchAPI, matchID string) Request {
	return Request{
		Kind:    KindConfirm,
		MatchID: matchID,
		Transform: func(m unomas.Match) unomas.Match {
			if m.Status == unomas.StatusAssembled {
				m.Status = unomas.StatusConfirmed
			}
			return m
		},
		Call: func(ctx context.Context) (unomas.ActionResult, error) {
			return api.ConfirmParticipation(ctx, matchID)
		},
	}
}

// ChangeStatus moves the match to status. Reserved for the organizer; the
// server enforces that.
func ChangeStatus(api unomas.MatchAPI, matchID string, status unomas.Status, reason string) Request {
	return Request{
		Kind:    KindChangeStatus,
		MatchID: matchID,
		Transform: func(m unomas.Match) unomas.Match {
			m.Status = status
			return m
		},
		Call: func(ctx context.Context) (unomas.ActionResult, error) {
			return api.ChangeMatchStatus(ctx, matchID, unomas.StatusChange{NewStatus: status, Reason: reason})
		},
	}
}

// ConfigureStrategy switches the matching strategy. Like ChangeStatus it is
// the organizer's call, enforced by the server.
func ConfigureStrategy(api unomas.MatchAPI, matchID string, strategy unomas.Strategy) Request {
	return Request{
		Kind:    KindStrategy,
		MatchID: matchID,
		Transform: func(m unomas.Match) unomas.Match {
			m.Strategy = strategy
			return m
		},
		Call: func(ctx context.Context) (unomas.ActionResult, error) {
			return api.ConfigureStrategy(ctx, matchID, unomas.StrategyChange{Strategy: strategy})
		},
	}
}
