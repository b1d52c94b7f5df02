package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/unomas/cancha/internal/config"
	"github.com/unomas/cancha/internal/prefs"
	"github.com/unomas/cancha/internal/push"
	"github.com/unomas/cancha/internal/ui"
	"github.com/unomas/cancha/internal/unomas"
)

// Options configure the cancha application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/cancha/prefs.toml
	MatchID    string // open this match's detail on start
	PollEvery  int    // seconds; zero keeps the configured cadences
}

// Run boots the cancha TUI until the context is cancelled or the user
// quits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer closeLog.Close()

	userPrefs, _ := prefs.Load(opts.PrefsPath)

	client, err := unomas.NewClient(cfg.APIURL, cfg.Token, unomas.WithTimeout(cfg.FetchTimeout))
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}
	if !client.HasToken() {
		logger.Warn("no API token configured; personal data will be unavailable", "env", config.EnvToken)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	session, err := NewSession(ctx, SessionOptions{
		API:    client,
		Config: cfg,
		Prefs:  userPrefs,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	if opts.PollEvery > 0 {
		if err := session.Policy().Override(time.Duration(opts.PollEvery) * time.Second); err != nil {
			return fmt.Errorf("poll interval: %w", err)
		}
	}

	session.Start(ctx)

	if cfg.PushURL != "" {
		listener, err := push.New(cfg.PushURL, cfg.Token, session.HandlePush, push.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("init push listener: %w", err)
		}
		go func() {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("push listener stopped", "error", err)
			}
		}()
	}

	logger.Info("cancha started", "api", cfg.APIURL, "push", cfg.PushURL != "")

	return ui.Run(ui.Options{
		Context:   ctx,
		Backend:   session,
		Feed:      session.Feed(),
		Policy:    session.Policy(),
		LogFile:   cfg.LogFile,
		ThemeName: userPrefs.Theme,
		Prefs:     userPrefs,
		PrefsPath: opts.PrefsPath,
		MatchID:   opts.MatchID,
	})
}

// newLogger opens the log file and returns a text slog logger writing to
// it. The terminal belongs to the TUI, so nothing is logged to stderr.
func newLogger(cfg config.Config) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	slog.SetDefault(logger)
	return logger, file, nil
}
