package action

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unomas/cancha/internal/state"
	"github.com/unomas/cancha/internal/unomas"
)

// fakeAPI serves matches from memory and lets tests fail or block calls.
type fakeAPI struct {
	mu      sync.Mutex
	match   unomas.Match
	joinErr error
	block   chan struct{}
	joins   int

	// fetchGate holds FetchMatch after it has read the match, so tests can
	// land an old poll result at a chosen moment.
	fetchGate    chan struct{}
	fetchStarted chan struct{}
}

func (f *fakeAPI) FetchMatch(ctx context.Context, id string) (unomas.Match, error) {
	f.mu.Lock()
	m := f.match.Clone()
	gate, started := f.fetchGate, f.fetchStarted
	f.mu.Unlock()
	if gate != nil {
		if started != nil {
			started <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return unomas.Match{}, ctx.Err()
		}
	}
	return m, nil
}

func (f *fakeAPI) FetchMyMatches(context.Context) ([]unomas.Match, error) { return nil, nil }

func (f *fakeAPI) SearchMatches(context.Context, unomas.SearchCriteria, int, int) (unomas.Page, error) {
	return unomas.Page{}, nil
}

func (f *fakeAPI) FetchProfile(context.Context) (unomas.Profile, error) { return unomas.Profile{}, nil }

func (f *fakeAPI) JoinMatch(ctx context.Context, id string) (unomas.ActionResult, error) {
	f.mu.Lock()
	f.joins++
	block := f.block
	err := f.joinErr
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return unomas.ActionResult{}, ctx.Err()
		}
	}
	if err != nil {
		return unomas.ActionResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.match.Roster = append(f.match.Roster, unomas.Player{ID: "me", Username: "me"})
	f.match.CurrentPlayers++
	return unomas.ActionResult{Message: "Te uniste al partido"}, nil
}

func (f *fakeAPI) ConfirmParticipation(context.Context, string) (unomas.ActionResult, error) {
	return unomas.ActionResult{}, nil
}

func (f *fakeAPI) ChangeMatchStatus(ctx context.Context, id string, change unomas.StatusChange) (unomas.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.match.Status = change.NewStatus
	return unomas.ActionResult{}, nil
}

func (f *fakeAPI) ConfigureStrategy(ctx context.Context, id string, change unomas.StrategyChange) (unomas.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.match.Strategy = change.Strategy
	return unomas.ActionResult{}, nil
}

var _ unomas.MatchAPI = (*fakeAPI)(nil)

func setup(t *testing.T) (*fakeAPI, *state.Store[unomas.Match], *Coordinator) {
	t.Helper()
	api := &fakeAPI{match: unomas.Match{
		ID:              "7",
		Status:          unomas.StatusSeekingPlayers,
		CurrentPlayers:  1,
		RequiredPlayers: 2,
		Roster:          []unomas.Player{{ID: "org", Organizer: true}},
		CanJoin:         true,
	}}
	store := state.New(context.Background(), state.Options[unomas.Match]{
		Name:  "matches",
		Fetch: api.FetchMatch,
		Equal: func(a, b unomas.Match) bool { return a.Equal(b) },
		Clone: func(m unomas.Match) unomas.Match { return m.Clone() },
	})
	t.Cleanup(store.Close)

	release := store.Start("7", time.Hour)
	t.Cleanup(release)
	if err := store.Refresh(context.Background(), "7"); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}

	coord := NewCoordinator(store)
	t.Cleanup(coord.Close)
	return api, store, coord
}

func TestPerform_UnknownMatch(t *testing.T) {
	api, _, coord := setup(t)
	_, err := coord.Perform(context.Background(), Join(api, "missing", unomas.Player{ID: "me"}))
	if !errors.Is(err, ErrUnknownMatch) {
		t.Fatalf("Perform = %v, want ErrUnknownMatch", err)
	}
	if api.joins != 0 {
		t.Fatalf("API should not be called for an unknown match")
	}
}

func TestPerform_FailureRollsBack(t *testing.T) {
	api, store, coord := setup(t)
	before := store.Snapshot("7").Value
	api.joinErr = &unomas.APIError{Status: 409, Message: "El partido está completo", Path: "partidos/7/unirse"}

	_, err := coord.Perform(context.Background(), Join(api, "7", unomas.Player{ID: "me"}))
	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Perform error = %v, want *Failure", err)
	}
	if failure.Message != "El partido está completo" || !failure.Rejected {
		t.Fatalf("failure = %#v, want server message and rejection", failure)
	}

	snap := store.Snapshot("7")
	if snap.Optimistic || !snap.Value.Equal(before) {
		t.Fatalf("snapshot after rollback = %#v, want %#v", snap.Value, before)
	}
	if got := coord.Pending(); len(got) != 0 {
		t.Fatalf("Pending = %#v, want none after rollback", got)
	}
}

func TestPerform_NetworkFailureUsesGenericMessage(t *testing.T) {
	api, _, coord := setup(t)
	api.joinErr = errors.New("dial tcp: connection refused")

	_, err := coord.Perform(context.Background(), Join(api, "7", unomas.Player{ID: "me"}))
	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Perform error = %v, want *Failure", err)
	}
	if failure.Message != unomas.GenericNetworkMessage || failure.Rejected {
		t.Fatalf("failure = %#v, want generic transient failure", failure)
	}
}

func TestPerform_GuardRejectsConcurrentSameKind(t *testing.T) {
	api, store, coord := setup(t)
	api.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := coord.Perform(context.Background(), Join(api, "7", unomas.Player{ID: "me"}))
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !coord.InFlight("7", KindJoin) || !store.Snapshot("7").Optimistic {
		if time.Now().After(deadline) {
			t.Fatalf("first join never went in flight")
		}
		time.Sleep(time.Millisecond)
	}

	// The optimistic prediction is visible while the call is pending.
	snap := store.Snapshot("7")
	if !snap.Optimistic || !snap.Value.HasPlayer("me") || snap.Value.Status != unomas.StatusAssembled {
		t.Fatalf("snapshot during call = %#v, want optimistic join", snap)
	}
	if got := coord.Pending(); len(got) != 1 || got[0].Status != StatusPending {
		t.Fatalf("Pending = %#v, want one pending join", got)
	}

	_, err := coord.Perform(context.Background(), Join(api, "7", unomas.Player{ID: "me"}))
	if !errors.Is(err, ErrActionInProgress) {
		t.Fatalf("second Perform = %v, want ErrActionInProgress", err)
	}

	// A different kind on the same match is not blocked.
	if _, err := coord.Perform(context.Background(), ChangeStatus(api, "7", unomas.StatusCancelled, "lluvia")); err != nil {
		t.Fatalf("ChangeStatus during join = %v", err)
	}

	close(api.block)
	if err := <-done; err != nil {
		t.Fatalf("first Perform = %v", err)
	}
	api.mu.Lock()
	joins := api.joins
	api.mu.Unlock()
	if joins != 1 {
		t.Fatalf("JoinMatch calls = %d, want 1", joins)
	}
}

func TestPerform_SuccessReconcilesWithServer(t *testing.T) {
	api, store, coord := setup(t)

	res, err := coord.Perform(context.Background(), Join(api, "7", unomas.Player{ID: "me", Username: "me"}))
	if err != nil {
		t.Fatalf("Perform = %v", err)
	}
	if res.Message != "Te uniste al partido" {
		t.Fatalf("message = %q", res.Message)
	}

	snap := store.Snapshot("7")
	if snap.Optimistic {
		t.Fatalf("overlay should be replaced by the post-action refresh")
	}
	// The server did not move the match to ASSEMBLED; its view wins.
	if snap.Value.Status != unomas.StatusSeekingPlayers || !snap.Value.HasPlayer("me") {
		t.Fatalf("snapshot = %#v, want server state", snap.Value)
	}
	if got := coord.Pending(); len(got) != 0 {
		t.Fatalf("Pending = %#v, want reconciled", got)
	}
}

func TestPerform_OlderPollDoesNotUndoPrediction(t *testing.T) {
	api, store, coord := setup(t)

	gate := make(chan struct{})
	api.mu.Lock()
	api.fetchGate = gate
	api.fetchStarted = make(chan struct{}, 1)
	api.block = make(chan struct{})
	started := api.fetchStarted
	api.mu.Unlock()

	// A poll reads the match before the join is submitted.
	polled := make(chan error, 1)
	go func() { polled <- store.Refresh(context.Background(), "7") }()
	<-started

	api.mu.Lock()
	api.fetchGate = nil
	api.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := coord.Perform(context.Background(), Join(api, "7", unomas.Player{ID: "me"}))
		done <- err
	}()
	deadline := time.Now().Add(2 * time.Second)
	for !coord.InFlight("7", KindJoin) || !store.Snapshot("7").Optimistic {
		if time.Now().After(deadline) {
			t.Fatalf("join never went in flight")
		}
		time.Sleep(time.Millisecond)
	}

	close(gate)
	if err := <-polled; err != nil {
		t.Fatalf("poll = %v", err)
	}
	snap := store.Snapshot("7")
	if !snap.Optimistic || !snap.Value.HasPlayer("me") {
		t.Fatalf("snapshot after older poll = %#v, want the join prediction", snap)
	}
	if got := coord.Pending(); len(got) != 1 || got[0].Status != StatusPending {
		t.Fatalf("Pending = %#v, want the join still pending", got)
	}

	close(api.block)
	if err := <-done; err != nil {
		t.Fatalf("Perform = %v", err)
	}
	if snap := store.Snapshot("7"); snap.Optimistic || !snap.Value.HasPlayer("me") {
		t.Fatalf("snapshot after action = %#v, want server state with the join", snap)
	}
}

func TestRequestTransforms(t *testing.T) {
	base := unomas.Match{ID: "1", Status: unomas.StatusSeekingPlayers, CurrentPlayers: 1, RequiredPlayers: 2, Roster: []unomas.Player{{ID: "a"}}, CanJoin: true}

	joined := Join(nil, "1", unomas.Player{ID: "b", Organizer: true}).Transform(base.Clone())
	if joined.CurrentPlayers != 2 || len(joined.Roster) != 2 || joined.Roster[1].Organizer || joined.Status != unomas.StatusAssembled || joined.CanJoin {
		t.Fatalf("join prediction = %#v", joined)
	}
	again := Join(nil, "1", unomas.Player{ID: "a"}).Transform(base.Clone())
	if again.CurrentPlayers != 1 {
		t.Fatalf("joining twice should not change the roster")
	}
	if len(base.Roster) != 1 {
		t.Fatalf("transform modified the original roster")
	}

	assembled := base
	assembled.Status = unomas.StatusAssembled
	if got := Confirm(nil, "1").Transform(assembled).Status; got != unomas.StatusConfirmed {
		t.Fatalf("confirm prediction = %s", got)
	}
	if got := Confirm(nil, "1").Transform(base).Status; got != unomas.StatusSeekingPlayers {
		t.Fatalf("confirm of a non-assembled match = %s", got)
	}

	if got := ChangeStatus(nil, "1", unomas.StatusInProgress, "").Transform(base).Status; got != unomas.StatusInProgress {
		t.Fatalf("status prediction = %s", got)
	}

	byLevel := base
	byLevel.Strategy = unomas.StrategyByLevel
	switched := ConfigureStrategy(nil, "1", unomas.StrategyByHistory).Transform(byLevel)
	if switched.Strategy != unomas.StrategyByHistory || switched.Status != base.Status {
		t.Fatalf("strategy prediction = %#v", switched)
	}
}

func TestPerform_ConfigureStrategyReconciles(t *testing.T) {
	api, store, coord := setup(t)

	if _, err := coord.Perform(context.Background(), ConfigureStrategy(api, "7", unomas.StrategyByProximity)); err != nil {
		t.Fatalf("Perform returned error: %v", err)
	}
	snap := store.Snapshot("7")
	if snap.Optimistic || snap.Value.Strategy != unomas.StrategyByProximity {
		t.Fatalf("snapshot = %#v, want reconciled strategy", snap)
	}
	if coord.InFlight("7", KindStrategy) {
		t.Fatalf("strategy change still in flight")
	}
}
