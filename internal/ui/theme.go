package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/unomas/cancha/internal/notify"
	"github.com/unomas/cancha/internal/unomas"
)

// Theme defines colors for the UI.
type Theme struct {
	Name string

	// Base colors
	Background string // Outermost background
	Surface    string // Header and command bar
	SurfaceAlt string // Secondary surfaces

	// Selection
	SelectionBg   string
	SelectionText string

	// Borders
	Border      string
	BorderFocus string

	// Text
	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string

	// Match status badges
	StatusColors map[unomas.Status]string
}

// Styles contains pre-built Lipgloss styles for a theme.
type Styles struct {
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
	InfoText    lipgloss.Style

	Header   lipgloss.Style
	Logo     lipgloss.Style
	Selected lipgloss.Style
	Section  lipgloss.Style
	Panel    lipgloss.Style

	statusColors map[unomas.Status]string
	background   string
	muted        string
}

// Styles returns Lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	return Styles{
		Text:        lipgloss.NewStyle().Foreground(lipgloss.Color(t.Text)),
		MutedText:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		FaintText:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Faint)),
		AccentText:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Accent)),
		SuccessText: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Success)).Bold(true),
		WarningText: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Warning)),
		DangerText:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Danger)).Bold(true),
		InfoText:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Info)),

		Header: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Text)).
			Padding(0, 1),
		Logo: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Success)).
			Background(lipgloss.Color(t.Surface)).
			Bold(true),
		Selected: lipgloss.NewStyle().
			Background(lipgloss.Color(t.SelectionBg)).
			Foreground(lipgloss.Color(t.SelectionText)),
		Section: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)).
			Bold(true),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Border)).
			Padding(0, 1),

		statusColors: t.StatusColors,
		background:   t.Background,
		muted:        t.Muted,
	}
}

// StatusStyle returns the badge style for a match status.
func (s Styles) StatusStyle(status unomas.Status) lipgloss.Style {
	color := s.statusColors[status]
	if color == "" {
		color = s.muted
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.background)).
		Background(lipgloss.Color(color)).
		Padding(0, 1)
}

// PriorityStyle returns the marker style for a notification priority.
func (s Styles) PriorityStyle(p notify.Priority) lipgloss.Style {
	switch p {
	case notify.PriorityHigh:
		return s.DangerText
	case notify.PriorityMedium:
		return s.WarningText
	default:
		return s.InfoText
	}
}

// Theme definitions

var themes = map[string]Theme{
	"Cancha":  canchaTheme(),
	"Arcilla": arcillaTheme(),
	"Noche":   nocheTheme(),
}

var themeOrder = []string{"Cancha", "Arcilla", "Noche"}

// GetTheme returns a theme by name, falling back to Cancha.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return canchaTheme()
}

// NextTheme returns the next theme name in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames returns available theme names.
func ThemeNames() []string {
	return themeOrder
}

func canchaTheme() Theme {
	// Turf greens on a dark pitch
	return Theme{
		Name: "Cancha",

		Background: "#0b1410",
		Surface:    "#12211a",
		SurfaceAlt: "#1a2e24",

		SelectionBg:   "#23553b",
		SelectionText: "#eef6f0",

		Border:      "#2f4a3c",
		BorderFocus: "#5fd38d",

		Text:    "#e3efe7",
		Muted:   "#8fa89a",
		Faint:   "#5d7366",
		Accent:  "#5fd38d",
		Success: "#7ee0a1",
		Warning: "#f2c94c",
		Danger:  "#ef6f6c",
		Info:    "#6cc4e0",

		StatusColors: map[unomas.Status]string{
			unomas.StatusSeekingPlayers: "#6cc4e0",
			unomas.StatusAssembled:      "#f2c94c",
			unomas.StatusConfirmed:      "#7ee0a1",
			unomas.StatusInProgress:     "#b48ef0",
			unomas.StatusFinished:       "#5d7366",
			unomas.StatusCancelled:      "#ef6f6c",
		},
	}
}

func arcillaTheme() Theme {
	// Clay court oranges and chalk lines
	return Theme{
		Name: "Arcilla",

		Background: "#1c120d",
		Surface:    "#2a1a12",
		SurfaceAlt: "#382419",

		SelectionBg:   "#8a4b2a",
		SelectionText: "#fff4ec",

		Border:      "#5a3a28",
		BorderFocus: "#e8875a",

		Text:    "#f6e9df",
		Muted:   "#c2a593",
		Faint:   "#8d7262",
		Accent:  "#e8875a",
		Success: "#a9d18e",
		Warning: "#f4c26b",
		Danger:  "#e5614e",
		Info:    "#9cc7d8",

		StatusColors: map[unomas.Status]string{
			unomas.StatusSeekingPlayers: "#9cc7d8",
			unomas.StatusAssembled:      "#f4c26b",
			unomas.StatusConfirmed:      "#a9d18e",
			unomas.StatusInProgress:     "#e8875a",
			unomas.StatusFinished:       "#8d7262",
			unomas.StatusCancelled:      "#e5614e",
		},
	}
}

func nocheTheme() Theme {
	// Floodlit night match
	return Theme{
		Name: "Noche",

		Background: "#0a0e1a",
		Surface:    "#121a2e",
		SurfaceAlt: "#1b2540",

		SelectionBg:   "#2b4a8a",
		SelectionText: "#f2f5ff",

		Border:      "#2c3a5e",
		BorderFocus: "#7aa2ff",

		Text:    "#e6eaf5",
		Muted:   "#97a2c0",
		Faint:   "#5f6a88",
		Accent:  "#7aa2ff",
		Success: "#6fd39b",
		Warning: "#ffd166",
		Danger:  "#ff6b7d",
		Info:    "#5fd0e6",

		StatusColors: map[unomas.Status]string{
			unomas.StatusSeekingPlayers: "#5fd0e6",
			unomas.StatusAssembled:      "#ffd166",
			unomas.StatusConfirmed:      "#6fd39b",
			unomas.StatusInProgress:     "#c59bff",
			unomas.StatusFinished:       "#5f6a88",
			unomas.StatusCancelled:      "#ff6b7d",
		},
	}
}
