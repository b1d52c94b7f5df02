package notify

import (
	"strings"

	"github.com/unomas/cancha/internal/unomas"
)

// Scorer estimates compatibility for matches the server did not score.
type Scorer interface {
	Score(m unomas.Match) float64
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(unomas.Match) float64

func (f ScorerFunc) Score(m unomas.Match) float64 { return f(m) }

// Weights are the coefficients of ProfileScorer.
type Weights struct {
	Base          float64
	FavoriteSport float64
	Level         float64
}

// DefaultWeights reach the recommendation threshold only when both the
// sport and a player's level line up with the profile.
var DefaultWeights = Weights{Base: 0.4, FavoriteSport: 0.3, Level: 0.2}

// ProfileScorer scores a match against the user's profile: a base value,
// plus a bonus when the sport is the user's favorite and another when
// someone on the roster plays at the user's level. The result is clamped
// to [0, 1].
type ProfileScorer struct {
	Profile unomas.Profile
	Weights Weights
}

func (s ProfileScorer) Score(m unomas.Match) float64 {
	score := s.Weights.Base
	fav := strings.TrimSpace(s.Profile.FavoriteSport)
	if fav != "" && (strings.EqualFold(m.Sport.Type, fav) || strings.EqualFold(m.Sport.Name, fav)) {
		score += s.Weights.FavoriteSport
	}
	if s.Profile.Level != "" {
		for _, p := range m.Roster {
			if strings.EqualFold(p.Level, s.Profile.Level) {
				score += s.Weights.Level
				break
			}
		}
	}
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
