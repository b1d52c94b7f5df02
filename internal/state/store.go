package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultFetchTimeout bounds every fetch; a timeout counts as a transient failure.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultStaleAfter is the failure streak after which data is flagged stale.
	DefaultStaleAfter = 3

	refreshAllLimit = 4
)

// ErrNotStarted is returned when refreshing a key nobody is polling.
var ErrNotStarted = errors.New("entity is not being polled")

// ErrUnknownEntity is returned when an operation needs a snapshot that has
// not been fetched yet.
var ErrUnknownEntity = errors.New("no snapshot for entity")

// Fetcher loads the current value of one entity.
type Fetcher[T any] func(ctx context.Context, key string) (T, error)

// Snapshot is the view of one entity handed to readers.
type Snapshot[T any] struct {
	Value               T
	HasValue            bool
	Optimistic          bool // Value is a local prediction, not yet confirmed by a poll
	LastUpdated         time.Time
	LastAttempt         time.Time
	LastError           error
	ConsecutiveFailures int
	staleAfter          int
}

// IsStale reports whether polling has failed often enough that the data
// should be flagged as possibly out of date.
func (s Snapshot[T]) IsStale() bool {
	threshold := s.staleAfter
	if threshold <= 0 {
		threshold = DefaultStaleAfter
	}
	return s.ConsecutiveFailures >= threshold
}

// Change describes a replacement of an entity's visible value.
type Change[T any] struct {
	Key    string
	Old    T
	HadOld bool
	New    T
	// Authoritative is true when New came from the API rather than from an
	// optimistic overlay or its rollback.
	Authoritative bool
	// Reconciled is true when an authoritative value replaced an optimistic
	// overlay; emitted even if the visible value did not change.
	Reconciled bool
	// Corrected is true when the reconciled value differed from the overlay.
	Corrected bool
}

// Listener receives change events. Listeners run on the goroutine that
// applied the change and must not block.
type Listener[T any] func(Change[T])

// Options configure a Store.
type Options[T any] struct {
	Name       string // used in log lines
	Fetch      Fetcher[T]
	Equal      func(a, b T) bool
	Clone      func(T) T
	Timeout    time.Duration
	StaleAfter int
	Logger     *slog.Logger
	Now        func() time.Time
}

type token struct {
	epoch uint64
	seq   uint64
}

type entry[T any] struct {
	refs     int
	interval time.Duration
	stopTick chan struct{}

	epoch      uint64
	nextSeq    uint64
	appliedSeq uint64
	inFlight   int

	canonical    T
	hasCanonical bool
	overlay      T
	hasOverlay   bool
	// overlaySeq is the last seq issued when the overlay was set. Only
	// fetches issued after it may replace the overlay.
	overlaySeq uint64

	lastUpdated time.Time
	lastAttempt time.Time
	lastErr     error
	failures    int

	listeners map[int]Listener[T]
}

func (e *entry[T]) visible() (T, bool) {
	if e.hasOverlay {
		return e.overlay, true
	}
	return e.canonical, e.hasCanonical
}

// Store keeps the latest snapshot of each polled entity. Multiple callers
// polling the same key share one ticker; fetch results are applied only if
// they are fresher than what is already applied.
type Store[T any] struct {
	opts Options[T]
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// emitMu serializes apply+notify so listeners observe changes in order.
	emitMu sync.Mutex

	mu           sync.Mutex
	entries      map[string]*entry[T]
	paused       bool
	nextListener int
}

// New builds a Store. Background polling stops when ctx is cancelled or
// Close is called.
func New[T any](ctx context.Context, opts Options[T]) *Store[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Fetch == nil {
		panic("state: Options.Fetch is required")
	}
	if opts.Equal == nil {
		panic("state: Options.Equal is required")
	}
	if opts.Clone == nil {
		opts.Clone = func(v T) T { return v }
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cctx, cancel := context.WithCancel(ctx)
	return &Store[T]{
		opts:    opts,
		log:     logger.With("store", opts.Name),
		ctx:     cctx,
		cancel:  cancel,
		entries: make(map[string]*entry[T]),
	}
}

// Start begins polling key every interval and fetches immediately, unless
// the store is paused. Calls
// are reference counted: the returned release func drops this caller's
// reference and polling stops when the last reference is released. When
// callers ask for different intervals the shortest wins.
func (s *Store[T]) Start(key string, interval time.Duration) (release func()) {
	if interval <= 0 {
		interval = time.Minute
	}
	s.mu.Lock()
	e := s.entryLocked(key)
	e.refs++
	var tok token
	initial := false
	if e.refs == 1 {
		e.interval = interval
		s.startTickerLocked(key, e)
		// While paused the first fetch waits for SetPaused(false).
		if !s.paused {
			tok = s.beginLocked(e)
			initial = true
		}
	} else if interval < e.interval {
		e.interval = interval
		s.stopTickerLocked(e)
		s.startTickerLocked(key, e)
	}
	s.mu.Unlock()

	if initial {
		s.spawnFetch(key, tok)
	}

	var once sync.Once
	return func() {
		once.Do(func() { s.release(key) })
	}
}

func (s *Store[T]) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.refs == 0 {
		return
	}
	e.refs--
	if e.refs == 0 {
		s.stopLocked(e)
	}
}

// Stop cancels polling of key regardless of outstanding references. A fetch
// already in flight completes but its result is discarded.
func (s *Store[T]) Stop(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.refs == 0 {
		return
	}
	e.refs = 0
	s.stopLocked(e)
}

func (s *Store[T]) stopLocked(e *entry[T]) {
	s.stopTickerLocked(e)
	e.epoch++
}

// Snapshot returns the visible value of key. HasValue is false until the
// first successful fetch.
func (s *Store[T]) Snapshot(key string) Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return Snapshot[T]{staleAfter: s.opts.StaleAfter}
	}
	v, has := e.visible()
	snap := Snapshot[T]{
		HasValue:            has,
		Optimistic:          e.hasOverlay,
		LastUpdated:         e.lastUpdated,
		LastAttempt:         e.lastAttempt,
		ConsecutiveFailures: e.failures,
		staleAfter:          s.opts.StaleAfter,
	}
	if has {
		snap.Value = s.opts.Clone(v)
	}
	snap.LastError = e.lastErr
	return snap
}

// Authoritative returns the last value fetched from the API, ignoring any
// optimistic overlay.
func (s *Store[T]) Authoritative(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	e, ok := s.entries[key]
	if !ok || !e.hasCanonical {
		return zero, false
	}
	return s.opts.Clone(e.canonical), true
}

// OnChange subscribes to visible-value replacements of key. Events are only
// emitted when the new value differs from the previous one.
func (s *Store[T]) OnChange(key string, fn Listener[T]) (unsubscribe func()) {
	s.mu.Lock()
	e := s.entryLocked(key)
	id := s.nextListener
	s.nextListener++
	e.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if e, ok := s.entries[key]; ok {
			delete(e.listeners, id)
		}
	}
}

// Refresh fetches key now, even if a scheduled fetch is in flight. The
// result is applied only if no fresher result has landed in the meantime.
// The fetch error, if any, is returned and also recorded on the snapshot.
func (s *Store[T]) Refresh(ctx context.Context, key string) error {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || e.refs == 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotStarted, key)
	}
	tok := s.beginLocked(e)
	s.mu.Unlock()

	return s.fetch(ctx, key, tok)
}

// RefreshAll refreshes every polled key concurrently.
func (s *Store[T]) RefreshAll(ctx context.Context) error {
	keys := s.Keys()
	var g errgroup.Group
	g.SetLimit(refreshAllLimit)
	for _, key := range keys {
		g.Go(func() error {
			if err := s.Refresh(ctx, key); err != nil && !errors.Is(err, ErrNotStarted) {
				return fmt.Errorf("refresh %s: %w", key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Keys lists the keys currently being polled, sorted.
func (s *Store[T]) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k, e := range s.entries {
		if e.refs > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// SetPaused suspends or resumes all tickers. Resuming refreshes every
// polled key immediately.
func (s *Store[T]) SetPaused(paused bool) {
	type pending struct {
		key string
		tok token
	}
	var resume []pending

	s.mu.Lock()
	if s.paused == paused {
		s.mu.Unlock()
		return
	}
	s.paused = paused
	for key, e := range s.entries {
		if e.refs == 0 {
			continue
		}
		if paused {
			s.stopTickerLocked(e)
			continue
		}
		s.startTickerLocked(key, e)
		resume = append(resume, pending{key: key, tok: s.beginLocked(e)})
	}
	s.mu.Unlock()

	if paused {
		s.log.Info("polling paused")
		return
	}
	s.log.Info("polling resumed", "keys", len(resume))
	for _, p := range resume {
		s.spawnFetch(p.key, p.tok)
	}
}

// Paused reports whether polling is suspended.
func (s *Store[T]) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// SetOptimistic makes v the visible value of key until the next
// authoritative fetch replaces it or ClearOptimistic rolls it back.
func (s *Store[T]) SetOptimistic(key string, v T) error {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || !e.hasCanonical {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownEntity, key)
	}
	old, hadOld := e.visible()
	e.overlay = s.opts.Clone(v)
	e.hasOverlay = true
	e.overlaySeq = e.nextSeq
	changed := !hadOld || !s.opts.Equal(old, v)
	listeners := listenersOf(e)
	s.mu.Unlock()

	if changed {
		s.emit(listeners, Change[T]{Key: key, Old: old, HadOld: hadOld, New: s.opts.Clone(v)})
	}
	return nil
}

// ClearOptimistic drops the overlay of key, restoring the last
// authoritative value. It reports whether an overlay was present.
func (s *Store[T]) ClearOptimistic(key string) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || !e.hasOverlay {
		s.mu.Unlock()
		return false
	}
	old := e.overlay
	e.hasOverlay = false
	var zero T
	e.overlay = zero
	changed := e.hasCanonical && !s.opts.Equal(old, e.canonical)
	restored := s.opts.Clone(e.canonical)
	listeners := listenersOf(e)
	s.mu.Unlock()

	if changed {
		s.emit(listeners, Change[T]{Key: key, Old: old, HadOld: true, New: restored})
	}
	return true
}

// Close stops all polling and waits for background goroutines.
func (s *Store[T]) Close() {
	s.mu.Lock()
	for _, e := range s.entries {
		if e.refs > 0 {
			s.stopTickerLocked(e)
			e.epoch++
		}
	}
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// tick runs one scheduled poll. It is skipped while a fetch for key is in
// flight so a slow API never accumulates concurrent requests.
func (s *Store[T]) tick(key string) bool {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || e.refs == 0 || s.paused || e.inFlight > 0 {
		s.mu.Unlock()
		return false
	}
	tok := s.beginLocked(e)
	s.mu.Unlock()

	s.spawnFetch(key, tok)
	return true
}

func (s *Store[T]) spawnFetch(key string, tok token) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.fetch(s.ctx, key, tok)
	}()
}

func (s *Store[T]) fetch(ctx context.Context, key string, tok token) error {
	fctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	value, err := s.opts.Fetch(fctx, key)
	cancel()
	s.complete(key, tok, value, err)
	return err
}

func (s *Store[T]) complete(key string, tok token, value T, err error) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	now := s.opts.Now()

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	e.inFlight--
	if tok.epoch != e.epoch {
		s.mu.Unlock()
		s.log.Debug("discarding result for stopped entity", "key", key, "seq", tok.seq)
		return
	}
	if tok.seq <= e.appliedSeq {
		s.mu.Unlock()
		s.log.Debug("discarding superseded result", "key", key, "seq", tok.seq, "applied", e.appliedSeq)
		return
	}
	e.lastAttempt = now

	if err != nil {
		e.lastErr = err
		e.failures++
		failures := e.failures
		s.mu.Unlock()
		if failures == s.opts.StaleAfter {
			s.log.Warn("poll failing repeatedly, data is stale", "key", key, "failures", failures, "error", err)
		} else {
			s.log.Info("poll failed", "key", key, "failures", failures, "error", err)
		}
		return
	}

	e.appliedSeq = tok.seq
	if e.hasOverlay && tok.seq <= e.overlaySeq {
		// Issued before the prediction was made: it cannot reflect the
		// action, so it refreshes the canonical value behind the overlay.
		e.canonical = s.opts.Clone(value)
		e.hasCanonical = true
		e.lastErr = nil
		e.failures = 0
		e.lastUpdated = now
		overlaySeq := e.overlaySeq
		s.mu.Unlock()
		s.log.Debug("keeping optimistic state over older result", "key", key, "seq", tok.seq, "overlay", overlaySeq)
		return
	}
	old, hadOld := e.visible()
	reconciled := e.hasOverlay
	corrected := reconciled && !s.opts.Equal(e.overlay, value)
	e.hasOverlay = false
	var zero T
	e.overlay = zero
	e.canonical = s.opts.Clone(value)
	e.hasCanonical = true
	e.lastErr = nil
	e.failures = 0
	e.lastUpdated = now
	changed := !hadOld || !s.opts.Equal(old, value)
	listeners := listenersOf(e)
	s.mu.Unlock()

	if corrected {
		s.log.Info("optimistic state corrected by server", "key", key)
	}
	if changed || reconciled {
		s.emit(listeners, Change[T]{
			Key:           key,
			Old:           old,
			HadOld:        hadOld,
			New:           s.opts.Clone(value),
			Authoritative: true,
			Reconciled:    reconciled,
			Corrected:     corrected,
		})
	}
}

func (s *Store[T]) emit(listeners []Listener[T], ch Change[T]) {
	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("change listener panicked", "key", ch.Key, "panic", r)
				}
			}()
			fn(ch)
		}()
	}
}

func (s *Store[T]) entryLocked(key string) *entry[T] {
	e, ok := s.entries[key]
	if !ok {
		e = &entry[T]{listeners: make(map[int]Listener[T])}
		s.entries[key] = e
	}
	return e
}

func (s *Store[T]) beginLocked(e *entry[T]) token {
	e.nextSeq++
	e.inFlight++
	return token{epoch: e.epoch, seq: e.nextSeq}
}

func (s *Store[T]) startTickerLocked(key string, e *entry[T]) {
	if s.paused || e.stopTick != nil {
		return
	}
	stop := make(chan struct{})
	e.stopTick = stop
	interval := e.interval
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				s.tick(key)
			}
		}
	}()
}

func (s *Store[T]) stopTickerLocked(e *entry[T]) {
	if e.stopTick != nil {
		close(e.stopTick)
		e.stopTick = nil
	}
}

func listenersOf[T any](e *entry[T]) []Listener[T] {
	if len(e.listeners) == 0 {
		return nil
	}
	ids := make([]int, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Listener[T], 0, len(ids))
	for _, id := range ids {
		out = append(out, e.listeners[id])
	}
	return out
}
