package app

import (
	"context"
	"time"

	"github.com/unomas/cancha/internal/notify"
	"github.com/unomas/cancha/internal/policy"
)

const defaultSweepInterval = 30 * time.Second

// sweeper is the part of the feed and policy the sweep loop needs.
type sweeper interface {
	Sweep(now time.Time) bool
}

type cadence interface {
	Interval(kind policy.Kind) (time.Duration, bool)
	Cadence(kind policy.Kind) time.Duration
}

// StartSweeper launches a background goroutine that re-evaluates the
// feed's time-window rules at the notification cadence, so a match
// crossing the 24h or 1h threshold surfaces without a new poll. Sweeps are
// skipped while polling is paused. It returns immediately.
func StartSweeper(ctx context.Context, feed *notify.Feed, pol *policy.Policy, now func() time.Time) {
	go runSweeper(ctx, feed, pol, now)
}

func runSweeper(ctx context.Context, feed sweeper, pol cadence, now func() time.Time) {
	interval := pol.Cadence(policy.NotificationFeed)
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, ok := pol.Interval(policy.NotificationFeed); !ok {
			continue
		}
		feed.Sweep(now())
	}
}
