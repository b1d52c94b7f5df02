package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unomas/cancha/internal/unomas"
)

// Kind identifies the rule that produced a notification.
type Kind string

const (
	KindUpcoming            Kind = "UPCOMING_MATCH"
	KindPendingConfirmation Kind = "PENDING_CONFIRMATION"
	KindAutoTransition      Kind = "AUTO_TRANSITION_IMMINENT"
	KindRecommendation      Kind = "RECOMMENDATION"
)

// Label returns a short human label.
func (k Kind) Label() string {
	switch k {
	case KindUpcoming:
		return "Upcoming"
	case KindPendingConfirmation:
		return "Confirm"
	case KindAutoTransition:
		return "Imminent"
	case KindRecommendation:
		return "For you"
	default:
		return string(k)
	}
}

// Priority orders notifications for presentation. Higher sorts first.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "HIGH"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityLow:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

const (
	// UpcomingWindow is how far ahead a confirmed match is announced.
	UpcomingWindow = 24 * time.Hour
	// ImminentStartWindow is the lead time before a confirmed match starts.
	ImminentStartWindow = time.Hour
	// ImminentEndWindow is the lead time before a running match ends.
	ImminentEndWindow = 15 * time.Minute
	// RecommendationThreshold is the minimum compatibility for a recommendation.
	RecommendationThreshold = 0.8
)

// matchKinds are the rules evaluated against a single match snapshot.
var matchKinds = []Kind{KindUpcoming, KindPendingConfirmation, KindAutoTransition}

var idNamespace = uuid.MustParse("5f0c1b8e-2d5a-4c1e-9a57-3b8f6e2d9c41")

// RecordID derives the stable id of the notification of kind for a match.
// Re-deriving the same pair always yields the same id.
func RecordID(kind Kind, matchID string) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte(string(kind)+"/"+matchID))
}

// Record is a notification derived from match snapshots. Only Read is ever
// mutated after creation.
type Record struct {
	ID        uuid.UUID
	Kind      Kind
	Priority  Priority
	MatchID   string
	Title     string
	Message   string
	Score     float64 // recommendations only
	CreatedAt time.Time
	ExpiresAt time.Time // zero when the record has no time window
	Read      bool
}

// Delta is the outcome of evaluating the rules for one diff.
type Delta struct {
	Insert []Record
	Remove []uuid.UUID
}

// Empty reports whether the delta carries no work.
func (d Delta) Empty() bool {
	return len(d.Insert) == 0 && len(d.Remove) == 0
}

// Derive evaluates the per-match rules for a snapshot transition. A nil new
// snapshot means the match is no longer tracked and retires every record for
// it. Records whose condition holds on new are listed for insertion; the
// rest of the match's kinds are listed for removal, so applying the delta
// twice is a no-op.
func Derive(old, new *unomas.Match, now time.Time) Delta {
	var d Delta
	if new == nil {
		if old != nil {
			for _, k := range matchKinds {
				d.Remove = append(d.Remove, RecordID(k, old.ID))
			}
		}
		return d
	}
	for _, k := range matchKinds {
		if rec, ok := evaluate(k, *new, now); ok {
			d.Insert = append(d.Insert, rec)
		} else {
			d.Remove = append(d.Remove, RecordID(k, new.ID))
		}
	}
	return d
}

func evaluate(kind Kind, m unomas.Match, now time.Time) (Record, bool) {
	untilStart := m.ScheduledAt.Sub(now)
	rec := Record{
		ID:        RecordID(kind, m.ID),
		Kind:      kind,
		MatchID:   m.ID,
		CreatedAt: now,
	}
	switch kind {
	case KindUpcoming:
		if m.Status != unomas.StatusConfirmed || m.ScheduledAt.IsZero() || untilStart <= 0 || untilStart > UpcomingWindow {
			return Record{}, false
		}
		rec.Priority = PriorityMedium
		rec.Title = matchLabel(m) + " coming up"
		rec.Message = fmt.Sprintf("%s at %s", placeOf(m), m.ScheduledAt.Local().Format("Mon 15:04"))
		rec.ExpiresAt = m.ScheduledAt
	case KindPendingConfirmation:
		if m.Status != unomas.StatusAssembled {
			return Record{}, false
		}
		rec.Priority = PriorityHigh
		rec.Title = "Confirm your participation"
		rec.Message = matchLabel(m) + " is full and waiting for confirmation"
	case KindAutoTransition:
		switch {
		case m.Status == unomas.StatusConfirmed && !m.ScheduledAt.IsZero() && untilStart > 0 && untilStart <= ImminentStartWindow:
			rec.Title = matchLabel(m) + " starts soon"
			rec.Message = fmt.Sprintf("Kick-off at %s, %s", m.ScheduledAt.Local().Format("15:04"), placeOf(m))
			rec.ExpiresAt = m.ScheduledAt
		case m.Status == unomas.StatusInProgress && m.DurationMinutes > 0 && m.EndsAt().Sub(now) > 0 && m.EndsAt().Sub(now) <= ImminentEndWindow:
			rec.Title = matchLabel(m) + " ends soon"
			rec.Message = fmt.Sprintf("Scheduled to finish at %s", m.EndsAt().Local().Format("15:04"))
			rec.ExpiresAt = m.EndsAt()
		default:
			return Record{}, false
		}
		rec.Priority = PriorityHigh
	default:
		return Record{}, false
	}
	return rec, true
}

// matchLabel names the match by its sport, or just "Match" when the sport
// is unknown.
func matchLabel(m unomas.Match) string {
	sport := strings.TrimSpace(m.Sport.Name)
	if sport == "" {
		sport = strings.TrimSpace(m.Sport.Type)
	}
	if sport == "" {
		return "Match"
	}
	return sport + " match"
}

// DeriveRecommendations turns search results into recommendation records.
// The server's compatibility wins; scorer is consulted only when it is
// missing. Matches the user already joined, finished or cancelled matches,
// and matches that already started are skipped. Results are ordered by
// score, highest first.
func DeriveRecommendations(results []unomas.Match, userID string, scorer Scorer, now time.Time) []Record {
	var out []Record
	seen := make(map[string]bool, len(results))
	for _, m := range results {
		if m.ID == "" || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		if m.HasPlayer(userID) || !m.Status.Active() || m.Status == unomas.StatusInProgress {
			continue
		}
		if !m.ScheduledAt.IsZero() && !m.ScheduledAt.After(now) {
			continue
		}
		score, ok := scoreOf(m, scorer)
		if !ok || score < RecommendationThreshold {
			continue
		}
		out = append(out, Record{
			ID:        RecordID(KindRecommendation, m.ID),
			Kind:      KindRecommendation,
			Priority:  PriorityLow,
			MatchID:   m.ID,
			Title:     matchLabel(m) + " for you",
			Message:   fmt.Sprintf("%d%% match, %s", int(score*100+0.5), placeOf(m)),
			Score:     score,
			CreatedAt: now,
			ExpiresAt: m.ScheduledAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func scoreOf(m unomas.Match, scorer Scorer) (float64, bool) {
	if m.Compatibility != nil {
		return *m.Compatibility, true
	}
	if scorer == nil {
		return 0, false
	}
	return scorer.Score(m), true
}

func placeOf(m unomas.Match) string {
	switch {
	case m.Location.Address != "":
		return m.Location.Address
	case m.Location.Zone != "":
		return m.Location.Zone
	default:
		return "location to be announced"
	}
}
