package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/unomas/cancha/internal/action"
	"github.com/unomas/cancha/internal/config"
	"github.com/unomas/cancha/internal/notify"
	"github.com/unomas/cancha/internal/policy"
	"github.com/unomas/cancha/internal/prefs"
	"github.com/unomas/cancha/internal/push"
	"github.com/unomas/cancha/internal/state"
	"github.com/unomas/cancha/internal/unomas"
)

// Errors returned by the community calls.
var (
	ErrCommunityUnavailable = errors.New("statistics and comments are not available")
	ErrNotCommentable       = errors.New("only players of a finished match can comment on it")
)

// List keys of the match list store.
const (
	ListMine        = "mine"
	ListRecommended = "recommended"
)

const recommendationPageSize = 20

// SessionOptions configure a Session.
type SessionOptions struct {
	API unomas.MatchAPI
	// Community serves statistics and comments. When nil, API is used if
	// it implements unomas.CommunityAPI.
	Community unomas.CommunityAPI
	Config    config.Config
	Prefs  prefs.Prefs
	Logger *slog.Logger
	Now    func() time.Time
}

// Session ties the polled stores, the notification feed, the action
// coordinator and the polling policy together for one signed-in user.
type Session struct {
	api       unomas.MatchAPI
	community unomas.CommunityAPI
	cfg    config.Config
	prefs  prefs.Prefs
	log    *slog.Logger
	now    func() time.Time
	// weights is nil when fallback scoring is disabled.
	weights *notify.Weights

	matches *state.Store[unomas.Match]
	lists   *state.Store[[]unomas.Match]
	feed    *notify.Feed
	actions *action.Coordinator
	policy  *policy.Policy

	mu        sync.Mutex
	profile   unomas.Profile
	hasProf   bool
	open      map[string]*openMatch
	releases  []func()
	unsubs    []func()
	started   bool
	sweepStop context.CancelFunc
}

type openMatch struct {
	refs    int
	release func()
	unsub   func()
}

// NewSession builds a session. Nothing is fetched until Start.
func NewSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	if opts.API == nil {
		return nil, errors.New("session requires an API client")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cfg := opts.Config

	s := &Session{
		api:       opts.API,
		community: opts.Community,
		cfg:       cfg,
		prefs:     opts.Prefs,
		log:       logger,
		now:       now,
		open:      make(map[string]*openMatch),
	}
	if s.community == nil {
		s.community, _ = opts.API.(unomas.CommunityAPI)
	}

	s.matches = state.New(ctx, state.Options[unomas.Match]{
		Name:       "matches",
		Fetch:      s.fetchMatch,
		Equal:      unomas.Match.Equal,
		Clone:      unomas.Match.Clone,
		Timeout:    cfg.FetchTimeout,
		StaleAfter: cfg.StaleAfter,
		Logger:     logger,
		Now:        now,
	})
	s.lists = state.New(ctx, state.Options[[]unomas.Match]{
		Name:       "lists",
		Fetch:      s.fetchList,
		Equal:      unomas.MatchesEqual,
		Clone:      unomas.CloneMatches,
		Timeout:    cfg.FetchTimeout,
		StaleAfter: cfg.StaleAfter,
		Logger:     logger,
		Now:        now,
	})
	s.feed = notify.NewFeed(notify.FeedOptions{
		RecommendationBudget: cfg.RecommendationBudget,
		Logger:               logger,
		Now:                  now,
	})
	s.actions = action.NewCoordinator(s.matches, action.WithLogger(logger), action.WithClock(now))
	s.policy = policy.New(map[policy.Kind]time.Duration{
		policy.MatchDetail:      cfg.Cadence.MatchDetail,
		policy.Dashboard:        cfg.Cadence.Dashboard,
		policy.NotificationFeed: cfg.Cadence.Notifications,
		policy.Recommendations:  cfg.Cadence.Recommendations,
	}, logger)

	if cfg.Scoring.Enabled {
		s.weights = &notify.Weights{
			Base:          cfg.Scoring.Base,
			FavoriteSport: cfg.Scoring.FavoriteSport,
			Level:         cfg.Scoring.Level,
		}
	}
	return s, nil
}

// Start begins polling the dashboard and recommendation lists and the
// notification sweep. It is a no-op when already started.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	unsubs := []func(){
		s.lists.OnChange(ListMine, s.feed.ObserveList),
		s.lists.OnChange(ListRecommended, s.observeRecommendations),
		s.policy.OnTransition(s.setPaused),
	}
	releases := []func(){
		s.lists.Start(ListMine, s.policy.Cadence(policy.Dashboard)),
		s.lists.Start(ListRecommended, s.policy.Cadence(policy.Recommendations)),
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	StartSweeper(sweepCtx, s.feed, s.policy, s.now)

	s.mu.Lock()
	s.unsubs = append(s.unsubs, unsubs...)
	s.releases = append(s.releases, releases...)
	s.sweepStop = cancel
	s.mu.Unlock()
}

// Close stops every poller and the sweeper.
func (s *Session) Close() {
	s.mu.Lock()
	unsubs, releases, stop := s.unsubs, s.releases, s.sweepStop
	s.unsubs, s.releases, s.sweepStop = nil, nil, nil
	for id, om := range s.open {
		om.unsub()
		om.release()
		delete(s.open, id)
	}
	s.mu.Unlock()

	for _, fn := range unsubs {
		fn()
	}
	for _, fn := range releases {
		fn()
	}
	if stop != nil {
		stop()
	}
	s.actions.Close()
	s.matches.Close()
	s.lists.Close()
}

// Open starts polling one match at the match-detail cadence. Changes reach
// the notification feed only while the user plays in the match. Calls are
// reference counted; the returned release undoes one Open.
func (s *Session) Open(matchID string) (release func()) {
	s.mu.Lock()
	om, ok := s.open[matchID]
	if !ok {
		om = &openMatch{
			unsub:   s.matches.OnChange(matchID, s.observeMatch),
			release: s.matches.Start(matchID, s.policy.Cadence(policy.MatchDetail)),
		}
		s.open[matchID] = om
	}
	om.refs++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.close(matchID) })
	}
}

func (s *Session) close(matchID string) {
	s.mu.Lock()
	om, ok := s.open[matchID]
	if !ok {
		s.mu.Unlock()
		return
	}
	om.refs--
	if om.refs > 0 {
		s.mu.Unlock()
		return
	}
	delete(s.open, matchID)
	om.unsub()
	om.release()
	s.mu.Unlock()

	// Dashboard matches stay tracked through the list.
	if !s.inMine(matchID) {
		s.feed.Forget(matchID)
	}
}

// observeMatch forwards detail changes to the feed for the user's own
// matches. Any other match is forgotten, so browsing never raises
// notifications.
func (s *Session) observeMatch(ch state.Change[unomas.Match]) {
	if !ch.Authoritative {
		return
	}
	if s.participates(ch.New) {
		s.feed.Observe(ch)
		return
	}
	s.feed.Forget(ch.Key)
}

func (s *Session) participates(m unomas.Match) bool {
	if p, ok := s.Profile(); ok && m.HasPlayer(p.ID) {
		return true
	}
	return s.inMine(m.ID)
}

func (s *Session) inMine(matchID string) bool {
	for _, m := range s.lists.Snapshot(ListMine).Value {
		if m.ID == matchID {
			return true
		}
	}
	return false
}

// Match returns the polled snapshot of a match.
func (s *Session) Match(matchID string) state.Snapshot[unomas.Match] {
	return s.matches.Snapshot(matchID)
}

// Dashboard returns the user's own matches.
func (s *Session) Dashboard() state.Snapshot[[]unomas.Match] {
	return s.lists.Snapshot(ListMine)
}

// Recommended returns the latest recommendation search results.
func (s *Session) Recommended() state.Snapshot[[]unomas.Match] {
	return s.lists.Snapshot(ListRecommended)
}

// Profile returns the signed-in user's profile, if it has been loaded.
func (s *Session) Profile() (unomas.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile, s.hasProf
}

// Feed returns the notification feed.
func (s *Session) Feed() *notify.Feed { return s.feed }

// Policy returns the polling policy.
func (s *Session) Policy() *policy.Policy { return s.policy }

// Pending lists outstanding optimistic actions.
func (s *Session) Pending() []action.Pending { return s.actions.Pending() }

// InFlight reports whether an action of kind is running for a match.
func (s *Session) InFlight(matchID string, kind action.Kind) bool {
	return s.actions.InFlight(matchID, kind)
}

// Refresh re-fetches every polled list and match now.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.lists.RefreshAll(ctx); err != nil {
		return err
	}
	return s.matches.RefreshAll(ctx)
}

// Join asks to join a match on behalf of the signed-in user.
func (s *Session) Join(ctx context.Context, matchID string) (unomas.ActionResult, error) {
	profile, err := s.ensureProfile(ctx)
	if err != nil {
		return unomas.ActionResult{}, err
	}
	return s.perform(ctx, action.Join(s.api, matchID, profile.Player()))
}

// Confirm confirms participation in an assembled match.
func (s *Session) Confirm(ctx context.Context, matchID string) (unomas.ActionResult, error) {
	return s.perform(ctx, action.Confirm(s.api, matchID))
}

// ChangeStatus moves a match to status.
func (s *Session) ChangeStatus(ctx context.Context, matchID string, status unomas.Status, reason string) (unomas.ActionResult, error) {
	return s.perform(ctx, action.ChangeStatus(s.api, matchID, status, reason))
}

// ConfigureStrategy switches the matching strategy of a match.
func (s *Session) ConfigureStrategy(ctx context.Context, matchID string, strategy unomas.Strategy) (unomas.ActionResult, error) {
	return s.perform(ctx, action.ConfigureStrategy(s.api, matchID, strategy))
}

// perform runs req with the match held open for the duration, so the
// coordinator has a snapshot to predict from and a poller to reconcile
// against. The dashboard is refreshed after a confirmed action.
func (s *Session) perform(ctx context.Context, req action.Request) (unomas.ActionResult, error) {
	release := s.Open(req.MatchID)
	defer release()

	if !s.matches.Snapshot(req.MatchID).HasValue {
		if err := s.matches.Refresh(ctx, req.MatchID); err != nil {
			return unomas.ActionResult{}, &action.Failure{
				Kind:     req.Kind,
				MatchID:  req.MatchID,
				Message:  unomas.UserMessage(err),
				Rejected: !unomas.IsTransient(err),
				Err:      err,
			}
		}
	}

	res, err := s.actions.Perform(ctx, req)
	if err != nil {
		return res, err
	}
	if err := s.lists.Refresh(ctx, ListMine); err != nil && !errors.Is(err, state.ErrNotStarted) {
		s.log.Warn("dashboard refresh after action failed", "match", req.MatchID, "error", err)
	}
	return res, nil
}

// Stats fetches the platform statistics. They are fetched on demand, not
// polled.
func (s *Session) Stats(ctx context.Context) (unomas.Stats, error) {
	if s.community == nil {
		return unomas.Stats{}, ErrCommunityUnavailable
	}
	ctx, cancel := s.requestContext(ctx)
	defer cancel()
	return s.community.FetchGeneralStats(ctx)
}

// Comments fetches the comments on a match, newest first.
func (s *Session) Comments(ctx context.Context, matchID string) ([]unomas.Comment, error) {
	if s.community == nil {
		return nil, ErrCommunityUnavailable
	}
	ctx, cancel := s.requestContext(ctx)
	defer cancel()
	return s.community.FetchComments(ctx, matchID)
}

// AddComment rates a finished match the user took part in. The server has
// the final say; the local check only saves a round trip.
func (s *Session) AddComment(ctx context.Context, matchID, text string, rating int) error {
	if s.community == nil {
		return ErrCommunityUnavailable
	}
	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	snap := s.matches.Snapshot(matchID)
	m := snap.Value
	if !snap.HasValue {
		fetched, err := s.api.FetchMatch(ctx, matchID)
		if err != nil {
			return err
		}
		m = fetched
	}
	profile, err := s.ensureProfile(ctx)
	if err != nil {
		return err
	}
	if m.Status != unomas.StatusFinished || !m.HasPlayer(profile.ID) {
		return ErrNotCommentable
	}
	if err := s.community.AddComment(ctx, matchID, unomas.NewComment{Text: text, Rating: rating}); err != nil {
		return err
	}
	s.log.Info("comment added", "match", matchID, "rating", rating)
	return nil
}

func (s *Session) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.FetchTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.FetchTimeout)
	}
	return context.WithCancel(ctx)
}

// HandlePush reacts to a relayed push notification by refreshing the match
// it names and the dashboard. Nothing is fetched while polling is paused.
func (s *Session) HandlePush(ctx context.Context, msg push.Message) {
	s.log.Info("push received", "match", msg.MatchID, "kind", msg.Kind)
	if s.policy.Paused() {
		// Resuming refreshes every polled key anyway.
		s.log.Debug("push refresh deferred while paused", "match", msg.MatchID)
		return
	}
	if msg.MatchID != "" {
		if err := s.matches.Refresh(ctx, msg.MatchID); err != nil && !errors.Is(err, state.ErrNotStarted) {
			s.log.Warn("push refresh failed", "match", msg.MatchID, "error", err)
		}
	}
	if err := s.lists.Refresh(ctx, ListMine); err != nil && !errors.Is(err, state.ErrNotStarted) {
		s.log.Warn("push refresh failed", "list", ListMine, "error", err)
	}
}

func (s *Session) setPaused(paused bool) {
	s.matches.SetPaused(paused)
	s.lists.SetPaused(paused)
}

func (s *Session) observeRecommendations(ch state.Change[[]unomas.Match]) {
	if !ch.Authoritative {
		return
	}
	profile, _ := s.Profile()
	var scorer notify.Scorer
	if s.weights != nil {
		scorer = notify.ProfileScorer{Profile: s.scoringProfile(profile), Weights: *s.weights}
	}
	recs := notify.DeriveRecommendations(ch.New, profile.ID, scorer, s.now())
	s.feed.SetRecommendations(recs)
}

// scoringProfile applies the favorite sport preference over the profile.
func (s *Session) scoringProfile(p unomas.Profile) unomas.Profile {
	if s.prefs.FavoriteSport != "" {
		p.FavoriteSport = s.prefs.FavoriteSport
	}
	return p
}

func (s *Session) fetchMatch(ctx context.Context, id string) (unomas.Match, error) {
	return s.api.FetchMatch(ctx, id)
}

func (s *Session) fetchList(ctx context.Context, key string) ([]unomas.Match, error) {
	switch key {
	case ListMine:
		return s.api.FetchMyMatches(ctx)
	case ListRecommended:
		// A missing profile narrows nothing; the search still runs.
		profile, _ := s.ensureProfile(ctx)
		criteria := unomas.SearchCriteria{
			SportType:     s.scoringProfile(profile).FavoriteSport,
			Zone:          s.prefs.Zone,
			OnlyAvailable: true,
		}
		page, err := s.api.SearchMatches(ctx, criteria, 0, recommendationPageSize)
		if err != nil {
			return nil, err
		}
		return page.Matches, nil
	default:
		return nil, fmt.Errorf("unknown list %q", key)
	}
}

func (s *Session) ensureProfile(ctx context.Context) (unomas.Profile, error) {
	if p, ok := s.Profile(); ok {
		return p, nil
	}
	p, err := s.api.FetchProfile(ctx)
	if err != nil {
		return unomas.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	s.mu.Lock()
	s.profile, s.hasProf = p, true
	s.mu.Unlock()
	return p, nil
}
