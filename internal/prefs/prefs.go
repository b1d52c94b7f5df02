// Package prefs persists the small set of choices a user makes from inside
// cancha: the color theme and the filters used to look for matches. The
// file lives at ~/.config/cancha/prefs.toml and is rewritten whenever one
// of them changes.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Prefs holds user preferences for cancha.
type Prefs struct {
	Theme string `toml:"theme"`
	// FavoriteSport overrides the profile's favorite sport when searching
	// for recommendations.
	FavoriteSport string `toml:"favorite_sport,omitempty"`
	// Zone narrows recommendation searches.
	Zone string `toml:"zone,omitempty"`
}

const (
	defaultPrefsPath = "~/.config/cancha/prefs.toml"
	defaultTheme     = "Cancha"
)

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Defaults returns the preferences used before anything has been saved.
func Defaults() Prefs {
	return Prefs{Theme: defaultTheme}
}

// normalized trims every field, upper-cases the sport code and restores the
// default theme when none is set.
func (p Prefs) normalized() Prefs {
	p.Theme = strings.TrimSpace(p.Theme)
	if p.Theme == "" {
		p.Theme = defaultTheme
	}
	p.FavoriteSport = strings.ToUpper(strings.TrimSpace(p.FavoriteSport))
	p.Zone = strings.TrimSpace(p.Zone)
	return p
}

// Load reads preferences from path (the default location when empty).
// Preferences are cosmetic, so a missing, unreadable or malformed file
// yields the defaults rather than an error.
func Load(path string) (Prefs, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Defaults(), nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return Defaults(), nil
	}

	var p Prefs
	if err := toml.Unmarshal(data, &p); err != nil {
		return Defaults(), nil
	}
	return p.normalized(), nil
}

// Save writes p to path, creating parent directories. The file is replaced
// atomically so a crash never leaves a half-written prefs file behind.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	data, err := toml.Marshal(p.normalized())
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".prefs-*.toml")
	if err != nil {
		return fmt.Errorf("create temp prefs: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp.Name(), resolved); err != nil {
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = defaultPrefsPath
	}
	if rest, ok := strings.CutPrefix(trimmed, "~"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, rest)
	}
	return filepath.Abs(trimmed)
}
