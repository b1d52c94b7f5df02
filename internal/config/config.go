package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds everything cancha reads at startup.
type Config struct {
	Path string // resolved config file location, whether or not it exists

	APIURL  string
	Token   string
	PushURL string

	LogFile  string
	LogLevel string

	FetchTimeout         time.Duration
	StaleAfter           int
	RecommendationBudget int

	Cadence Cadence
	Scoring Scoring
}

// Cadence are the polling intervals per entity kind.
type Cadence struct {
	MatchDetail     time.Duration
	Dashboard       time.Duration
	Notifications   time.Duration
	Recommendations time.Duration
}

// Scoring configures the fallback compatibility score used when the server
// omits one.
type Scoring struct {
	Enabled       bool
	Base          float64
	FavoriteSport float64
	Level         float64
}

const (
	defaultConfigPath = "~/.config/cancha/config.toml"
	defaultLogFile    = "~/.local/state/cancha/cancha.log"
	defaultAPIURL     = "http://localhost:8080/api/v1"
	defaultLogLevel   = "info"

	defaultFetchTimeout         = 30 * time.Second
	defaultStaleAfter           = 3
	defaultRecommendationBudget = 3
)

// Environment variables that override the file.
const (
	EnvAPIURL  = "UNOMAS_API_URL"
	EnvToken   = "UNOMAS_TOKEN"
	EnvPushURL = "UNOMAS_PUSH_URL"
)

var defaultCadence = Cadence{
	MatchDetail:     30 * time.Second,
	Dashboard:       45 * time.Second,
	Notifications:   30 * time.Second,
	Recommendations: 45 * time.Second,
}

var defaultScoring = Scoring{Enabled: true, Base: 0.4, FavoriteSport: 0.3, Level: 0.2}

// raw mirrors the file. Durations are strings so TOML and YAML share one
// parser path.
type raw struct {
	APIURL               string `toml:"api_url" yaml:"api_url"`
	Token                string `toml:"token" yaml:"token"`
	PushURL              string `toml:"push_url" yaml:"push_url"`
	LogFile              string `toml:"log_file" yaml:"log_file"`
	LogLevel             string `toml:"log_level" yaml:"log_level"`
	FetchTimeout         string `toml:"fetch_timeout" yaml:"fetch_timeout"`
	StaleAfter           int    `toml:"stale_after" yaml:"stale_after"`
	RecommendationBudget int    `toml:"recommendation_budget" yaml:"recommendation_budget"`
	Cadence              struct {
		MatchDetail     string `toml:"match_detail" yaml:"match_detail"`
		Dashboard       string `toml:"dashboard" yaml:"dashboard"`
		Notifications   string `toml:"notifications" yaml:"notifications"`
		Recommendations string `toml:"recommendations" yaml:"recommendations"`
	} `toml:"cadence" yaml:"cadence"`
	Scoring struct {
		Enabled       *bool    `toml:"enabled" yaml:"enabled"`
		Base          *float64 `toml:"base" yaml:"base"`
		FavoriteSport *float64 `toml:"favorite_sport" yaml:"favorite_sport"`
		Level         *float64 `toml:"level" yaml:"level"`
	} `toml:"scoring" yaml:"scoring"`
}

// Load locates and parses the config, falling back to defaults when the
// file is missing. A .env file in the working directory or next to the
// config is loaded first; UNOMAS_* variables override the file.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}
	loadDotEnv(resolved)

	var r raw
	file, err := os.Open(resolved)
	switch {
	case err == nil:
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		data = []byte(os.ExpandEnv(string(data)))
		if err := decode(resolved, data, &r); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("open config: %w", err)
	}

	cfg, err := fromRaw(r)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Path = resolved
	applyEnv(&cfg)
	return cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() Config {
	cfg, _ := fromRaw(raw{})
	return cfg
}

// Level maps LogLevel to a slog level. Unknown values mean info.
func (c Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func decode(path string, data []byte, r *raw) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, r)
	default:
		return toml.Unmarshal(data, r)
	}
}

func fromRaw(r raw) (Config, error) {
	cfg := Config{
		APIURL:               orDefault(r.APIURL, defaultAPIURL),
		Token:                strings.TrimSpace(r.Token),
		PushURL:              strings.TrimSpace(r.PushURL),
		LogFile:              mustExpand(orDefault(r.LogFile, defaultLogFile)),
		LogLevel:             strings.ToLower(orDefault(r.LogLevel, defaultLogLevel)),
		StaleAfter:           r.StaleAfter,
		RecommendationBudget: r.RecommendationBudget,
		Cadence:              defaultCadence,
		Scoring:              defaultScoring,
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if cfg.RecommendationBudget <= 0 {
		cfg.RecommendationBudget = defaultRecommendationBudget
	}

	durations := []struct {
		key   string
		value string
		dest  *time.Duration
		def   time.Duration
	}{
		{"fetch_timeout", r.FetchTimeout, &cfg.FetchTimeout, defaultFetchTimeout},
		{"cadence.match_detail", r.Cadence.MatchDetail, &cfg.Cadence.MatchDetail, defaultCadence.MatchDetail},
		{"cadence.dashboard", r.Cadence.Dashboard, &cfg.Cadence.Dashboard, defaultCadence.Dashboard},
		{"cadence.notifications", r.Cadence.Notifications, &cfg.Cadence.Notifications, defaultCadence.Notifications},
		{"cadence.recommendations", r.Cadence.Recommendations, &cfg.Cadence.Recommendations, defaultCadence.Recommendations},
	}
	for _, d := range durations {
		v, err := parseDuration(d.value, d.def)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dest = v
	}

	if r.Scoring.Enabled != nil {
		cfg.Scoring.Enabled = *r.Scoring.Enabled
	}
	if r.Scoring.Base != nil {
		cfg.Scoring.Base = *r.Scoring.Base
	}
	if r.Scoring.FavoriteSport != nil {
		cfg.Scoring.FavoriteSport = *r.Scoring.FavoriteSport
	}
	if r.Scoring.Level != nil {
		cfg.Scoring.Level = *r.Scoring.Level
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		cfg.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPushURL)); v != "" {
		cfg.PushURL = v
	}
}

// loadDotEnv loads .env files without overriding variables already set.
// Missing files are ignored.
func loadDotEnv(configPath string) {
	candidates := []string{".env", filepath.Join(filepath.Dir(configPath), ".env")}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		_ = godotenv.Load(path)
	}
}

func parseDuration(value string, def time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", value)
	}
	return d, nil
}

func orDefault(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
