package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unomas/cancha/internal/state"
	"github.com/unomas/cancha/internal/unomas"
)

var (
	// ErrActionInProgress is returned when the same action is already in
	// flight for the match. The API is not called.
	ErrActionInProgress = errors.New("action already in progress")

	// ErrUnknownMatch is returned when the match has no snapshot yet.
	ErrUnknownMatch = errors.New("match not loaded")
)

// Kind names a mutating action.
type Kind string

const (
	KindJoin         Kind = "JOIN"
	KindConfirm      Kind = "CONFIRM"
	KindChangeStatus Kind = "CHANGE_STATUS"
	KindStrategy     Kind = "STRATEGY"
)

// Status is the lifecycle state of a pending action.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusRolledBack Status = "ROLLED_BACK"
)

// Pending is an action whose outcome has not been reconciled with a poll.
type Pending struct {
	ID          uuid.UUID
	MatchID     string
	Kind        Kind
	Expected    unomas.Match
	SubmittedAt time.Time
	Status      Status
}

// Request describes one action. Transform predicts the snapshot the server
// will return; it must not modify its argument's shared slices.
type Request struct {
	Kind      Kind
	MatchID   string
	Transform func(unomas.Match) unomas.Match
	Call      func(ctx context.Context) (unomas.ActionResult, error)
}

// Failure is returned when the API call fails. The optimistic state has
// already been rolled back.
type Failure struct {
	Kind    Kind
	MatchID string
	// Message is the server's explanation, or a generic network message.
	Message string
	// Rejected is true for 4xx responses.
	Rejected bool
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s match %s: %s", f.Kind, f.MatchID, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// Store is the part of the match store the coordinator writes through.
type Store interface {
	Snapshot(key string) state.Snapshot[unomas.Match]
	SetOptimistic(key string, v unomas.Match) error
	ClearOptimistic(key string) bool
	Refresh(ctx context.Context, key string) error
	OnChange(key string, fn state.Listener[unomas.Match]) (unsubscribe func())
}

type guardKey struct {
	matchID string
	kind    Kind
}

// Coordinator runs actions with immediate local feedback: the predicted
// snapshot is shown while the request is in flight, kept until the next
// authoritative fetch on success, and rolled back on failure.
type Coordinator struct {
	store Store
	log   *slog.Logger
	now   func() time.Time

	mu       sync.Mutex
	inFlight map[guardKey]uuid.UUID
	pending  map[uuid.UUID]*Pending
	watching map[string]func()
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCoordinator builds a coordinator writing through store.
func NewCoordinator(store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		log:      slog.Default(),
		now:      time.Now,
		inFlight: make(map[guardKey]uuid.UUID),
		pending:  make(map[uuid.UUID]*Pending),
		watching: make(map[string]func()),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "action")
	return c
}

// Perform runs req. It blocks for the duration of the API call and the
// follow-up refresh.
func (c *Coordinator) Perform(ctx context.Context, req Request) (unomas.ActionResult, error) {
	if req.Call == nil {
		return unomas.ActionResult{}, fmt.Errorf("%s: missing call", req.Kind)
	}
	guard := guardKey{matchID: req.MatchID, kind: req.Kind}

	c.mu.Lock()
	if _, busy := c.inFlight[guard]; busy {
		c.mu.Unlock()
		return unomas.ActionResult{}, fmt.Errorf("%s match %s: %w", req.Kind, req.MatchID, ErrActionInProgress)
	}
	snap := c.store.Snapshot(req.MatchID)
	if !snap.HasValue {
		c.mu.Unlock()
		return unomas.ActionResult{}, fmt.Errorf("%s match %s: %w", req.Kind, req.MatchID, ErrUnknownMatch)
	}
	expected := snap.Value.Clone()
	if req.Transform != nil {
		expected = req.Transform(expected)
	}
	p := &Pending{
		ID:          uuid.New(),
		MatchID:     req.MatchID,
		Kind:        req.Kind,
		Expected:    expected,
		SubmittedAt: c.now(),
		Status:      StatusPending,
	}
	c.inFlight[guard] = p.ID
	c.pending[p.ID] = p
	c.mu.Unlock()

	c.watch(req.MatchID)

	if err := c.store.SetOptimistic(req.MatchID, expected); err != nil {
		c.finish(guard, p.ID, true)
		return unomas.ActionResult{}, fmt.Errorf("%s match %s: %w", req.Kind, req.MatchID, ErrUnknownMatch)
	}
	c.log.Debug("action submitted", "action", p.ID, "kind", p.Kind, "match", p.MatchID)

	res, err := req.Call(ctx)
	if err != nil {
		c.store.ClearOptimistic(req.MatchID)
		c.finish(guard, p.ID, true)
		failure := &Failure{
			Kind:     req.Kind,
			MatchID:  req.MatchID,
			Message:  unomas.UserMessage(err),
			Rejected: !unomas.IsTransient(err),
			Err:      err,
		}
		c.log.Warn("action rolled back", "action", p.ID, "kind", p.Kind, "match", p.MatchID, "error", err)
		return unomas.ActionResult{}, failure
	}

	c.finish(guard, p.ID, false)
	c.log.Info("action accepted", "action", p.ID, "kind", p.Kind, "match", p.MatchID)

	if err := c.store.Refresh(ctx, req.MatchID); err != nil {
		c.log.Info("post-action refresh failed, waiting for next poll", "match", req.MatchID, "error", err)
	}
	if !c.store.Snapshot(req.MatchID).Optimistic {
		c.reconcile(req.MatchID)
	}
	return res, nil
}

// Pending lists actions not yet reconciled, oldest first.
func (c *Coordinator) Pending() []Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Pending, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// InFlight reports whether an action of kind is running for the match.
func (c *Coordinator) InFlight(matchID string, kind Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[guardKey{matchID: matchID, kind: kind}]
	return ok
}

// Close drops the coordinator's store subscriptions.
func (c *Coordinator) Close() {
	c.mu.Lock()
	subs := c.watching
	c.watching = make(map[string]func())
	c.mu.Unlock()
	for _, unsubscribe := range subs {
		unsubscribe()
	}
}

// finish releases the guard. Failed actions are dropped; successful ones
// stay CONFIRMED until reconciled.
func (c *Coordinator) finish(guard guardKey, id uuid.UUID, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, guard)
	p, ok := c.pending[id]
	if !ok {
		return
	}
	if failed {
		p.Status = StatusRolledBack
		delete(c.pending, id)
		return
	}
	p.Status = StatusConfirmed
}

func (c *Coordinator) watch(matchID string) {
	c.mu.Lock()
	if _, ok := c.watching[matchID]; ok {
		c.mu.Unlock()
		return
	}
	c.watching[matchID] = func() {}
	c.mu.Unlock()

	unsubscribe := c.store.OnChange(matchID, func(ch state.Change[unomas.Match]) {
		if ch.Authoritative {
			c.reconcile(ch.Key)
		}
	})

	c.mu.Lock()
	if _, ok := c.watching[matchID]; ok {
		c.watching[matchID] = unsubscribe
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	unsubscribe()
}

// reconcile drops confirmed actions for the match once an authoritative
// snapshot has replaced their prediction.
func (c *Coordinator) reconcile(matchID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.pending {
		if p.MatchID != matchID || p.Status != StatusConfirmed {
			continue
		}
		delete(c.pending, id)
		c.log.Debug("action reconciled", "action", id, "kind", p.Kind, "match", matchID)
	}
}
