package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unomas/cancha/internal/action"
	"github.com/unomas/cancha/internal/config"
	"github.com/unomas/cancha/internal/notify"
	"github.com/unomas/cancha/internal/prefs"
	"github.com/unomas/cancha/internal/push"
	"github.com/unomas/cancha/internal/unomas"
)

// fakeAPI is an in-memory UnoMas backend.
type fakeAPI struct {
	mu       sync.Mutex
	matches  map[string]unomas.Match
	mine     []string
	search   []unomas.Match
	criteria []unomas.SearchCriteria
	profile  unomas.Profile
	fetches  map[string]int
	mineHits int
	joinErr  error
	comments map[string][]unomas.Comment
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		matches: make(map[string]unomas.Match),
		fetches:  make(map[string]int),
		comments: make(map[string][]unomas.Comment),
		profile: unomas.Profile{ID: "me", Username: "lucia", Level: "INTERMEDIO", FavoriteSport: "FUTBOL"},
	}
}

func (f *fakeAPI) put(m unomas.Match, mine bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches[m.ID] = m
	if mine {
		f.mine = append(f.mine, m.ID)
	}
}

func (f *fakeAPI) FetchMatch(_ context.Context, id string) (unomas.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[id]++
	m, ok := f.matches[id]
	if !ok {
		return unomas.Match{}, &unomas.APIError{Status: 404, Message: "Partido no encontrado"}
	}
	return m.Clone(), nil
}

func (f *fakeAPI) FetchMyMatches(context.Context) ([]unomas.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mineHits++
	out := make([]unomas.Match, 0, len(f.mine))
	for _, id := range f.mine {
		out = append(out, f.matches[id].Clone())
	}
	return out, nil
}

func (f *fakeAPI) SearchMatches(_ context.Context, c unomas.SearchCriteria, _, _ int) (unomas.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.criteria = append(f.criteria, c)
	return unomas.Page{Matches: unomas.CloneMatches(f.search), TotalElements: len(f.search), TotalPages: 1}, nil
}

func (f *fakeAPI) FetchProfile(context.Context) (unomas.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile, nil
}

func (f *fakeAPI) JoinMatch(_ context.Context, id string) (unomas.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinErr != nil {
		return unomas.ActionResult{}, f.joinErr
	}
	m := f.matches[id].Clone()
	m.Roster = append(m.Roster, f.profile.Player())
	m.CurrentPlayers++
	if m.CurrentPlayers >= m.RequiredPlayers {
		m.Status = unomas.StatusAssembled
	}
	f.matches[id] = m
	f.mine = append(f.mine, id)
	return unomas.ActionResult{Message: "Te uniste al partido"}, nil
}

func (f *fakeAPI) ConfirmParticipation(_ context.Context, id string) (unomas.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.matches[id].Clone()
	m.Status = unomas.StatusConfirmed
	f.matches[id] = m
	return unomas.ActionResult{Match: &m}, nil
}

func (f *fakeAPI) ChangeMatchStatus(_ context.Context, id string, change unomas.StatusChange) (unomas.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.matches[id].Clone()
	m.Status = change.NewStatus
	f.matches[id] = m
	return unomas.ActionResult{}, nil
}

func (f *fakeAPI) ConfigureStrategy(_ context.Context, id string, change unomas.StrategyChange) (unomas.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.matches[id].Clone()
	m.Strategy = change.Strategy
	f.matches[id] = m
	return unomas.ActionResult{Message: "Estrategia actualizada"}, nil
}

func (f *fakeAPI) FetchGeneralStats(context.Context) (unomas.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return unomas.Stats{TotalMatches: len(f.matches), MostPopularSport: "FUTBOL"}, nil
}

func (f *fakeAPI) FetchComments(_ context.Context, matchID string) ([]unomas.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]unomas.Comment(nil), f.comments[matchID]...), nil
}

func (f *fakeAPI) AddComment(_ context.Context, matchID string, c unomas.NewComment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments[matchID] = append([]unomas.Comment{{Author: f.profile.Username, Text: c.Text, Rating: c.Rating}}, f.comments[matchID]...)
	return nil
}

func (f *fakeAPI) fetchCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[id]
}

var (
	_ unomas.MatchAPI     = (*fakeAPI)(nil)
	_ unomas.CommunityAPI = (*fakeAPI)(nil)
)

func newTestSession(t *testing.T, api *fakeAPI, p prefs.Prefs) *Session {
	t.Helper()
	cfg := config.Default()
	cfg.Cadence.MatchDetail = time.Hour
	cfg.Cadence.Dashboard = time.Hour
	cfg.Cadence.Notifications = time.Hour
	cfg.Cadence.Recommendations = time.Hour

	s, err := NewSession(context.Background(), SessionOptions{API: api, Config: cfg, Prefs: p})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func hasKind(recs []notify.Record, kind notify.Kind, matchID string) bool {
	for _, r := range recs {
		if r.Kind == kind && r.MatchID == matchID {
			return true
		}
	}
	return false
}

func TestNewSession_RequiresAPI(t *testing.T) {
	if _, err := NewSession(context.Background(), SessionOptions{}); err == nil {
		t.Fatal("NewSession without API should fail")
	}
}

func TestSession_DashboardFeedsNotifications(t *testing.T) {
	api := newFakeAPI()
	api.put(unomas.Match{
		ID:              "1",
		Status:          unomas.StatusAssembled,
		Sport:           unomas.Sport{Type: "FUTBOL", Name: "Fútbol 5"},
		CurrentPlayers:  10,
		RequiredPlayers: 10,
		ScheduledAt:     time.Now().Add(48 * time.Hour),
		DurationMinutes: 60,
	}, true)

	s := newTestSession(t, api, prefs.Prefs{})
	s.Start(context.Background())

	waitFor(t, "pending confirmation", func() bool {
		return hasKind(s.Feed().List(), notify.KindPendingConfirmation, "1")
	})
	if snap := s.Dashboard(); !snap.HasValue || len(snap.Value) != 1 {
		t.Fatalf("Dashboard = %+v", snap)
	}
}

func TestSession_RecommendationsUseCompatibilityAndPrefs(t *testing.T) {
	high, low := 0.92, 0.4
	api := newFakeAPI()
	api.search = []unomas.Match{
		{ID: "10", Status: unomas.StatusSeekingPlayers, Compatibility: &high, ScheduledAt: time.Now().Add(5 * time.Hour)},
		{ID: "11", Status: unomas.StatusSeekingPlayers, Compatibility: &low, ScheduledAt: time.Now().Add(5 * time.Hour)},
	}

	s := newTestSession(t, api, prefs.Prefs{FavoriteSport: "PADEL", Zone: "Palermo"})
	s.Start(context.Background())

	waitFor(t, "recommendation", func() bool {
		return hasKind(s.Feed().List(), notify.KindRecommendation, "10")
	})
	if hasKind(s.Feed().List(), notify.KindRecommendation, "11") {
		t.Fatal("low-score match should not be recommended")
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.criteria) == 0 {
		t.Fatal("search was not issued")
	}
	c := api.criteria[0]
	if c.SportType != "PADEL" || c.Zone != "Palermo" || !c.OnlyAvailable {
		t.Fatalf("criteria = %+v", c)
	}
}

func TestSession_OpenIsReferenceCounted(t *testing.T) {
	api := newFakeAPI()
	api.put(unomas.Match{ID: "5", Status: unomas.StatusSeekingPlayers}, false)
	s := newTestSession(t, api, prefs.Prefs{})

	first := s.Open("5")
	second := s.Open("5")
	waitFor(t, "match snapshot", func() bool { return s.Match("5").HasValue })
	if got := api.fetchCount("5"); got != 1 {
		t.Fatalf("fetches = %d, want a single shared poller", got)
	}

	first()
	first()
	if err := s.matches.Refresh(context.Background(), "5"); err != nil {
		t.Fatalf("Refresh with one holder left: %v", err)
	}
	second()
	if err := s.matches.Refresh(context.Background(), "5"); err == nil {
		t.Fatal("Refresh after last release should fail")
	}
}

func TestSession_JoinAssemblesAndRefreshesDashboard(t *testing.T) {
	api := newFakeAPI()
	api.put(unomas.Match{
		ID:              "7",
		Status:          unomas.StatusSeekingPlayers,
		CurrentPlayers:  9,
		RequiredPlayers: 10,
		ScheduledAt:     time.Now().Add(72 * time.Hour),
		Roster:          []unomas.Player{{ID: "org", Organizer: true}},
		CanJoin:         true,
	}, false)

	s := newTestSession(t, api, prefs.Prefs{})
	s.Start(context.Background())

	res, err := s.Join(context.Background(), "7")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if res.Message == "" {
		t.Fatalf("Join result = %+v, want server message", res)
	}

	snap := s.Match("7")
	if snap.Optimistic || snap.Value.Status != unomas.StatusAssembled || !snap.Value.HasPlayer("me") {
		t.Fatalf("match after join = %+v", snap)
	}
	dash := s.Dashboard()
	if !dash.HasValue || len(dash.Value) != 1 || dash.Value[0].ID != "7" {
		t.Fatalf("dashboard after join = %+v", dash.Value)
	}
	waitFor(t, "pending confirmation after join", func() bool {
		return hasKind(s.Feed().List(), notify.KindPendingConfirmation, "7")
	})
}

func TestSession_JoinFailureRollsBack(t *testing.T) {
	api := newFakeAPI()
	api.put(unomas.Match{ID: "8", Status: unomas.StatusSeekingPlayers, CurrentPlayers: 1, RequiredPlayers: 4, CanJoin: true}, false)
	api.joinErr = &unomas.APIError{Status: 409, Message: "El partido ya está completo"}

	s := newTestSession(t, api, prefs.Prefs{})
	_, err := s.Join(context.Background(), "8")

	var failure *action.Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Join err = %v, want *action.Failure", err)
	}
	if failure.Message != "El partido ya está completo" || !failure.Rejected {
		t.Fatalf("failure = %+v", failure)
	}
	if len(s.Pending()) != 0 {
		t.Fatalf("pending = %+v, want none", s.Pending())
	}
}

func TestSession_JoinUnknownMatchFails(t *testing.T) {
	api := newFakeAPI()
	s := newTestSession(t, api, prefs.Prefs{})

	_, err := s.Join(context.Background(), "404")
	var failure *action.Failure
	if !errors.As(err, &failure) || failure.Message != "Partido no encontrado" {
		t.Fatalf("Join err = %v", err)
	}
}

func TestSession_HandlePushRefreshes(t *testing.T) {
	api := newFakeAPI()
	api.put(unomas.Match{ID: "3", Status: unomas.StatusConfirmed, ScheduledAt: time.Now().Add(30 * time.Hour)}, true)

	s := newTestSession(t, api, prefs.Prefs{})
	s.Start(context.Background())
	release := s.Open("3")
	defer release()
	waitFor(t, "initial snapshot", func() bool { return s.Match("3").HasValue })

	api.put(unomas.Match{ID: "3", Status: unomas.StatusConfirmed, ScheduledAt: time.Now().Add(2 * time.Hour)}, false)
	s.HandlePush(context.Background(), push.Message{MatchID: "3", Kind: "PARTIDO_CONFIRMADO"})

	if got := s.Match("3").Value.ScheduledAt; time.Until(got) > 3*time.Hour {
		t.Fatalf("match not refreshed by push, starts in %v", time.Until(got))
	}
	waitFor(t, "upcoming after push", func() bool {
		return hasKind(s.Feed().List(), notify.KindUpcoming, "3")
	})
}

func TestSession_PolicyPausesStores(t *testing.T) {
	api := newFakeAPI()
	s := newTestSession(t, api, prefs.Prefs{})
	s.Start(context.Background())

	s.Policy().SetVisible(false)
	if !s.matches.Paused() || !s.lists.Paused() {
		t.Fatal("stores should pause when the terminal loses focus")
	}

	api.mu.Lock()
	before := api.mineHits
	api.mu.Unlock()

	s.Policy().SetVisible(true)
	if s.lists.Paused() {
		t.Fatal("stores should resume when focus returns")
	}
	waitFor(t, "refresh on resume", func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.mineHits > before
	})
}

func TestSession_BrowsedMatchRaisesNoNotifications(t *testing.T) {
	api := newFakeAPI()
	api.put(unomas.Match{
		ID:              "77",
		Status:          unomas.StatusAssembled,
		CurrentPlayers:  1,
		RequiredPlayers: 1,
		ScheduledAt:     time.Now().Add(30 * time.Minute),
		Roster:          []unomas.Player{{ID: "other", Organizer: true}},
	}, false)

	s := newTestSession(t, api, prefs.Prefs{})
	if _, err := s.ensureProfile(context.Background()); err != nil {
		t.Fatalf("ensureProfile: %v", err)
	}
	release := s.Open("77")
	waitFor(t, "match snapshot", func() bool { return s.Match("77").HasValue })
	if err := s.matches.Refresh(context.Background(), "77"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	release()
	s.Feed().Sweep(time.Now())

	for _, r := range s.Feed().List() {
		if r.MatchID == "77" {
			t.Fatalf("feed has %s for a match the user is not in", r.Kind)
		}
	}
}

func TestSession_ClosingOwnMatchForgetsIt(t *testing.T) {
	api := newFakeAPI()
	api.put(unomas.Match{
		ID:              "12",
		Status:          unomas.StatusAssembled,
		CurrentPlayers:  2,
		RequiredPlayers: 2,
		ScheduledAt:     time.Now().Add(48 * time.Hour),
		Roster:          []unomas.Player{{ID: "me"}, {ID: "other", Organizer: true}},
	}, false)

	s := newTestSession(t, api, prefs.Prefs{})
	if _, err := s.ensureProfile(context.Background()); err != nil {
		t.Fatalf("ensureProfile: %v", err)
	}
	release := s.Open("12")
	waitFor(t, "pending confirmation", func() bool {
		return hasKind(s.Feed().List(), notify.KindPendingConfirmation, "12")
	})

	release()
	s.Feed().Sweep(time.Now())
	if hasKind(s.Feed().List(), notify.KindPendingConfirmation, "12") {
		t.Fatal("closing a match outside the dashboard should retire its notifications")
	}
}

func TestSession_HandlePushWaitsWhilePaused(t *testing.T) {
	api := newFakeAPI()
	api.put(unomas.Match{ID: "3", Status: unomas.StatusConfirmed, ScheduledAt: time.Now().Add(30 * time.Hour)}, true)

	s := newTestSession(t, api, prefs.Prefs{})
	release := s.Open("3")
	defer release()
	waitFor(t, "initial snapshot", func() bool { return s.Match("3").HasValue })

	s.Policy().SetManualPause(true)
	before := api.fetchCount("3")
	s.HandlePush(context.Background(), push.Message{MatchID: "3"})
	if got := api.fetchCount("3"); got != before {
		t.Fatalf("fetches while paused = %d, want %d", got, before)
	}
}

func TestSession_ConfigureStrategy(t *testing.T) {
	api := newFakeAPI()
	api.put(unomas.Match{
		ID:              "21",
		Status:          unomas.StatusSeekingPlayers,
		CurrentPlayers:  1,
		RequiredPlayers: 10,
		Strategy:        unomas.StrategyByLevel,
		Roster:          []unomas.Player{{ID: "me", Organizer: true}},
	}, true)

	s := newTestSession(t, api, prefs.Prefs{})
	res, err := s.ConfigureStrategy(context.Background(), "21", unomas.StrategyByProximity)
	if err != nil {
		t.Fatalf("ConfigureStrategy: %v", err)
	}
	if res.Message != "Estrategia actualizada" {
		t.Fatalf("result = %+v", res)
	}
	snap := s.Match("21")
	if snap.Optimistic || snap.Value.Strategy != unomas.StrategyByProximity {
		t.Fatalf("match after strategy change = %+v", snap)
	}
}

func TestSession_Comments(t *testing.T) {
	api := newFakeAPI()
	api.put(unomas.Match{ID: "30", Status: unomas.StatusFinished, CurrentPlayers: 1, Roster: []unomas.Player{{ID: "me"}}}, true)
	api.put(unomas.Match{ID: "31", Status: unomas.StatusConfirmed, CurrentPlayers: 1, Roster: []unomas.Player{{ID: "me"}}}, true)
	api.put(unomas.Match{ID: "32", Status: unomas.StatusFinished, CurrentPlayers: 1, Roster: []unomas.Player{{ID: "other"}}}, false)

	s := newTestSession(t, api, prefs.Prefs{})
	ctx := context.Background()

	if err := s.AddComment(ctx, "30", "buen partido", 4); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	got, err := s.Comments(ctx, "30")
	if err != nil || len(got) != 1 || got[0].Text != "buen partido" || got[0].Rating != 4 {
		t.Fatalf("Comments = %+v, %v", got, err)
	}

	for _, id := range []string{"31", "32"} {
		if err := s.AddComment(ctx, id, "hola", 3); !errors.Is(err, ErrNotCommentable) {
			t.Fatalf("AddComment(%s) err = %v, want ErrNotCommentable", id, err)
		}
	}

	stats, err := s.Stats(ctx)
	if err != nil || stats.TotalMatches != 3 {
		t.Fatalf("Stats = %+v, %v", stats, err)
	}
}

// matchesOnly hides the community methods of the wrapped API.
type matchesOnly struct{ unomas.MatchAPI }

func TestSession_CommunityUnavailable(t *testing.T) {
	s, err := NewSession(context.Background(), SessionOptions{API: matchesOnly{newFakeAPI()}, Config: config.Default()})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.Close)

	if _, err := s.Stats(context.Background()); !errors.Is(err, ErrCommunityUnavailable) {
		t.Fatalf("Stats err = %v, want ErrCommunityUnavailable", err)
	}
	if err := s.AddComment(context.Background(), "1", "x", 5); !errors.Is(err, ErrCommunityUnavailable) {
		t.Fatalf("AddComment err = %v, want ErrCommunityUnavailable", err)
	}
}
