// Package state keeps live snapshots of polled UnoMas entities.
//
// # Overview
//
// Store[T] is the single owner of the canonical snapshot for each entity
// key (a match id, or a list such as the user's matches). Screens that
// display the same key share one ticker through reference-counted Start
// calls; the last release stops polling.
//
//	release := matches.Start("42", 30*time.Second)
//	defer release()
//
//	unsubscribe := matches.OnChange("42", func(ch state.Change[unomas.Match]) {
//		feed.Observe(ch)
//	})
//	defer unsubscribe()
//
// # Freshness
//
// Every fetch captures two tokens when it is issued:
//
//   - seq: monotonic per key. A result is applied only if its seq is newer
//     than the last applied one, so a slow response never clobbers a
//     fresher one regardless of completion order.
//   - epoch: bumped by Stop. A result whose epoch no longer matches is
//     discarded.
//
// Scheduled ticks are skipped while any fetch for the key is in flight.
// Refresh (push arrival, resume from pause, post-action reconcile) always
// issues a request and lets the seq token sort out ordering.
//
// # Errors
//
// Fetch failures never escape the polling goroutine. They are recorded on
// the snapshot (LastError, ConsecutiveFailures) and the previous value is
// kept. After StaleAfter consecutive failures (default 3) IsStale reports
// true; polling continues regardless.
//
// # Optimistic overlay
//
// SetOptimistic layers a predicted value over the canonical one without
// touching it. The next applied fetch drops the overlay; if the server's
// value differs it is logged as a correction. ClearOptimistic rolls back.
//
// # Change events
//
// Listeners fire only when the visible value changes under Options.Equal,
// plus once when an authoritative value reconciles an overlay. Events are
// delivered in apply order; listeners must not block or call back into the
// store's mutating methods.
package state
