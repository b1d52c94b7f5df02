package notify

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unomas/cancha/internal/state"
	"github.com/unomas/cancha/internal/unomas"
)

// DefaultRecommendationBudget caps how many recommendations are kept.
const DefaultRecommendationBudget = 3

// FeedOptions configure a Feed.
type FeedOptions struct {
	RecommendationBudget int
	Logger               *slog.Logger
	Now                  func() time.Time
}

// Feed is the single source of truth for derived notifications. It is fed
// only by snapshot diffs (Observe, ObserveList, SetRecommendations) and by
// the clock (Sweep).
type Feed struct {
	budget int
	log    *slog.Logger
	now    func() time.Time

	// emitMu serializes mutate+notify so subscribers see lists in order.
	emitMu sync.Mutex

	mu        sync.Mutex
	records   map[uuid.UUID]*Record
	dismissed map[uuid.UUID]Kind
	tracked   map[string]unomas.Match
	subs      map[int]func([]Record)
	nextSub   int
}

// NewFeed builds an empty feed.
func NewFeed(opts FeedOptions) *Feed {
	if opts.RecommendationBudget <= 0 {
		opts.RecommendationBudget = DefaultRecommendationBudget
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		budget:    opts.RecommendationBudget,
		log:       logger.With("component", "notify"),
		now:       opts.Now,
		records:   make(map[uuid.UUID]*Record),
		dismissed: make(map[uuid.UUID]Kind),
		tracked:   make(map[string]unomas.Match),
		subs:      make(map[int]func([]Record)),
	}
}

// Apply merges a delta. Inserting an id that is already present keeps the
// existing record (and its read flag). A removal also lifts any dismissal
// of that id, so the notification can reappear once its condition holds
// again. It reports whether the visible list changed.
func (f *Feed) Apply(d Delta) bool {
	return f.mutate(func() bool { return f.applyLocked(d) })
}

// Observe derives notifications from a match store change. Optimistic
// overlays and their rollbacks are ignored; only authoritative snapshots
// drive notifications.
func (f *Feed) Observe(ch state.Change[unomas.Match]) {
	if !ch.Authoritative {
		return
	}
	f.mutate(func() bool {
		m := ch.New.Clone()
		f.tracked[m.ID] = m
		var old *unomas.Match
		if ch.HadOld {
			old = &ch.Old
		}
		return f.applyLocked(Derive(old, &m, f.now()))
	})
}

// ObserveList derives notifications from a change of the user's match
// list. Matches that left the list retire their notifications.
func (f *Feed) ObserveList(ch state.Change[[]unomas.Match]) {
	if !ch.Authoritative {
		return
	}
	f.mutate(func() bool {
		now := f.now()
		changed := false
		present := make(map[string]bool, len(ch.New))
		for _, m := range ch.New {
			m := m.Clone()
			present[m.ID] = true
			prev, had := f.tracked[m.ID]
			f.tracked[m.ID] = m
			var old *unomas.Match
			if had {
				old = &prev
			}
			if f.applyLocked(Derive(old, &m, now)) {
				changed = true
			}
		}
		for _, m := range ch.Old {
			if present[m.ID] {
				continue
			}
			prev := m
			delete(f.tracked, m.ID)
			if f.applyLocked(Derive(&prev, nil, now)) {
				changed = true
			}
		}
		return changed
	})
}

// Forget stops tracking a match and retires its notifications.
func (f *Feed) Forget(matchID string) bool {
	return f.mutate(func() bool {
		m, ok := f.tracked[matchID]
		if !ok {
			m = unomas.Match{ID: matchID}
		}
		delete(f.tracked, matchID)
		return f.applyLocked(Derive(&m, nil, f.now()))
	})
}

// SetRecommendations replaces the recommendation set with the
// highest-scoring recs that fit the budget, keeping records that are still
// recommended. Recommendations not selected are retired.
func (f *Feed) SetRecommendations(recs []Record) bool {
	return f.mutate(func() bool {
		var candidates []*Record
		for i := range recs {
			r := &recs[i]
			if r.Kind != KindRecommendation {
				continue
			}
			if _, ok := f.dismissed[r.ID]; ok {
				continue
			}
			candidates = append(candidates, r)
		}
		// Trim to the budget up front; inserting the overflow only to evict
		// it again would report a change on every poll.
		sort.SliceStable(candidates, func(i, j int) bool {
			return evictsFirst(candidates[j], candidates[i])
		})
		if len(candidates) > f.budget {
			candidates = candidates[:f.budget]
		}

		keep := make(map[uuid.UUID]bool, len(recs))
		var d Delta
		for _, r := range candidates {
			keep[r.ID] = true
			d.Insert = append(d.Insert, *r)
		}
		for id, r := range f.records {
			if r.Kind == KindRecommendation && !keep[id] {
				d.Remove = append(d.Remove, id)
			}
		}
		derived := make(map[uuid.UUID]bool, len(recs))
		for _, r := range recs {
			derived[r.ID] = true
		}
		for id, kind := range f.dismissed {
			if kind == KindRecommendation && !derived[id] {
				delete(f.dismissed, id)
			}
		}
		return f.applyLocked(d)
	})
}

// Sweep re-evaluates the time-window rules against the last known
// snapshots so threshold crossings surface without a new poll, and retires
// recommendations for matches that have started.
func (f *Feed) Sweep(now time.Time) bool {
	return f.mutate(func() bool {
		changed := false
		for _, m := range f.tracked {
			m := m
			if f.applyLocked(Derive(&m, &m, now)) {
				changed = true
			}
		}
		var expired Delta
		for id, r := range f.records {
			if r.Kind == KindRecommendation && !r.ExpiresAt.IsZero() && !r.ExpiresAt.After(now) {
				expired.Remove = append(expired.Remove, id)
			}
		}
		if f.applyLocked(expired) {
			changed = true
		}
		return changed
	})
}

// Dismiss removes a notification and suppresses it until its condition
// stops holding.
func (f *Feed) Dismiss(id uuid.UUID) bool {
	return f.mutate(func() bool {
		r, ok := f.records[id]
		if !ok {
			return false
		}
		delete(f.records, id)
		f.dismissed[id] = r.Kind
		return true
	})
}

// MarkRead flags one notification as read.
func (f *Feed) MarkRead(id uuid.UUID) bool {
	return f.mutate(func() bool {
		r, ok := f.records[id]
		if !ok || r.Read {
			return false
		}
		r.Read = true
		return true
	})
}

// MarkAllRead flags every notification as read.
func (f *Feed) MarkAllRead() int {
	n := 0
	f.mutate(func() bool {
		for _, r := range f.records {
			if !r.Read {
				r.Read = true
				n++
			}
		}
		return n > 0
	})
	return n
}

// List returns the notifications ordered by priority (high first), then by
// creation time (newest first).
func (f *Feed) List() []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listLocked()
}

// Unread counts unread notifications.
func (f *Feed) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.records {
		if !r.Read {
			n++
		}
	}
	return n
}

// Subscribe registers fn to receive the full ordered list after every
// change. fn must not call back into the feed's mutating methods.
func (f *Feed) Subscribe(fn func([]Record)) (unsubscribe func()) {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *Feed) mutate(fn func() bool) bool {
	f.emitMu.Lock()
	defer f.emitMu.Unlock()

	f.mu.Lock()
	changed := fn()
	var (
		list []Record
		subs []func([]Record)
	)
	if changed && len(f.subs) > 0 {
		list = f.listLocked()
		ids := make([]int, 0, len(f.subs))
		for id := range f.subs {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			subs = append(subs, f.subs[id])
		}
	}
	f.mu.Unlock()

	for _, fn := range subs {
		fn(cloneRecords(list))
	}
	return changed
}

func (f *Feed) applyLocked(d Delta) bool {
	changed := false
	for _, id := range d.Remove {
		delete(f.dismissed, id)
		if r, ok := f.records[id]; ok {
			delete(f.records, id)
			changed = true
			f.log.Debug("notification retired", "kind", r.Kind, "match", r.MatchID)
		}
	}
	evict := false
	for _, rec := range d.Insert {
		if _, ok := f.records[rec.ID]; ok {
			continue
		}
		if _, ok := f.dismissed[rec.ID]; ok {
			continue
		}
		r := rec
		r.Read = false
		f.records[r.ID] = &r
		changed = true
		if r.Kind == KindRecommendation {
			evict = true
		}
		f.log.Info("notification raised", "kind", r.Kind, "priority", r.Priority.String(), "match", r.MatchID)
	}
	if evict {
		f.enforceBudgetLocked()
	}
	return changed
}

// enforceBudgetLocked evicts the lowest-scoring recommendations until the
// budget holds. Ties go to the older record, then to id order.
func (f *Feed) enforceBudgetLocked() {
	var recs []*Record
	for _, r := range f.records {
		if r.Kind == KindRecommendation {
			recs = append(recs, r)
		}
	}
	if len(recs) <= f.budget {
		return
	}
	sort.Slice(recs, func(i, j int) bool { return evictsFirst(recs[i], recs[j]) })
	for _, r := range recs[:len(recs)-f.budget] {
		delete(f.records, r.ID)
		f.log.Debug("recommendation evicted", "match", r.MatchID, "score", r.Score)
	}
}

// evictsFirst orders recommendations for eviction: lower score first, then
// the older record, then id order.
func evictsFirst(a, b *Record) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

func (f *Feed) listLocked() []Record {
	out := make([]Record, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func cloneRecords(in []Record) []Record {
	if in == nil {
		return nil
	}
	out := make([]Record, len(in))
	copy(out, in)
	return out
}
