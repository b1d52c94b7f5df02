// Package policy decides how often each kind of entity is polled and when
// polling is suspended.
package policy

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Kind is a class of polled entity.
type Kind string

const (
	MatchDetail      Kind = "match_detail"
	Dashboard        Kind = "dashboard"
	NotificationFeed Kind = "notifications"
	Recommendations  Kind = "recommendations"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{MatchDetail, Dashboard, NotificationFeed, Recommendations}

// DefaultCadence is the polling interval used when none is configured.
var DefaultCadence = map[Kind]time.Duration{
	MatchDetail:      30 * time.Second,
	Dashboard:        45 * time.Second,
	NotificationFeed: 30 * time.Second,
	Recommendations:  45 * time.Second,
}

const fallbackInterval = 30 * time.Second

// Policy holds per-kind cadences and the pause state. It starts visible and
// not paused.
type Policy struct {
	log *slog.Logger

	mu        sync.Mutex
	cadence   map[Kind]time.Duration
	visible   bool
	manual    bool
	listeners map[int]func(paused bool)
	nextID    int
}

// New builds a policy. Kinds missing from cadence (or set to zero) use
// DefaultCadence.
func New(cadence map[Kind]time.Duration, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	merged := make(map[Kind]time.Duration, len(DefaultCadence))
	for k, d := range DefaultCadence {
		merged[k] = d
	}
	for k, d := range cadence {
		if d > 0 {
			merged[k] = d
		}
	}
	return &Policy{
		log:       logger.With("component", "policy"),
		cadence:   merged,
		visible:   true,
		listeners: make(map[int]func(bool)),
	}
}

// Interval returns the polling interval for kind. ok is false while polling
// is paused.
func (p *Policy) Interval(kind Kind) (d time.Duration, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pausedLocked() {
		return 0, false
	}
	return p.cadenceLocked(kind), true
}

// Cadence returns the configured interval for kind regardless of pause.
func (p *Policy) Cadence(kind Kind) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cadenceLocked(kind)
}

// Override sets one interval for every kind.
func (p *Policy) Override(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", d)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range Kinds {
		p.cadence[k] = d
	}
	return nil
}

// Paused reports whether polling is suspended for any reason.
func (p *Policy) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pausedLocked()
}

// Visible reports whether the terminal currently has focus.
func (p *Policy) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// ManuallyPaused reports whether the user paused polling.
func (p *Policy) ManuallyPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.manual
}

// SetVisible records a focus change of the terminal.
func (p *Policy) SetVisible(visible bool) {
	p.update(func() { p.visible = visible }, "visibility", visible)
}

// SetManualPause records the user's pause toggle.
func (p *Policy) SetManualPause(paused bool) {
	p.update(func() { p.manual = paused }, "manual_pause", paused)
}

// OnTransition registers fn to run when polling flips between paused and
// running. fn receives the new paused state.
func (p *Policy) OnTransition(fn func(paused bool)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *Policy) update(set func(), field string, value bool) {
	p.mu.Lock()
	before := p.pausedLocked()
	set()
	after := p.pausedLocked()
	var fns []func(bool)
	if before != after {
		ids := make([]int, 0, len(p.listeners))
		for id := range p.listeners {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			fns = append(fns, p.listeners[id])
		}
	}
	p.mu.Unlock()

	if before == after {
		return
	}
	p.log.Info("polling state changed", "paused", after, field, value)
	for _, fn := range fns {
		fn(after)
	}
}

func (p *Policy) pausedLocked() bool {
	return p.manual || !p.visible
}

func (p *Policy) cadenceLocked(kind Kind) time.Duration {
	if d, ok := p.cadence[kind]; ok && d > 0 {
		return d
	}
	return fallbackInterval
}
