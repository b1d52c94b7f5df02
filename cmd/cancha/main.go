package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/unomas/cancha/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override cancha config path (optional)")
	prefsPath := flag.String("prefs", "", "override preferences file (optional)")
	matchID := flag.String("match", "", "open this match on start (optional)")
	pollSeconds := flag.Int("poll", 0, "poll every N seconds instead of the configured cadences (optional)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		PrefsPath:  *prefsPath,
		MatchID:    *matchID,
	}
	if poll := *pollSeconds; poll > 0 {
		opts.PollEvery = poll
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "cancha: %v\n", err)
		return 1
	}
	return 0
}
