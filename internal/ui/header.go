package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/unomas/cancha/internal/unomas"
)

// renderHeader renders the status bar.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	bg := lipgloss.Color(m.theme.Surface)
	on := func(s lipgloss.Style) lipgloss.Style { return s.Background(bg) }
	sep := on(styles.Text).Render("  ")

	parts := []string{styles.Logo.Render("cancha")}

	if m.hasProfile {
		parts = append(parts, on(styles.Text).Render(m.profile.Username))
	}

	switch {
	case m.policy == nil:
	case m.policy.ManuallyPaused():
		parts = append(parts, on(styles.WarningText).Render("❚❚ PAUSED"))
	case m.policy.Paused():
		parts = append(parts, on(styles.MutedText).Render("❚❚ idle"))
	default:
		parts = append(parts, on(styles.SuccessText).Render("● LIVE"))
	}

	if !m.mine.HasValue && m.mine.LastError != nil {
		parts = append(parts, on(styles.DangerText).Render(classifyConnectionError(m.mine.LastError)))
	} else if m.mine.IsStale() {
		parts = append(parts, on(styles.WarningText).Render("STALE"))
	}

	parts = append(parts,
		on(styles.MutedText).Render("Matches:")+on(styles.Text).Render(fmt.Sprintf(" %d", len(m.mine.Value))))

	if unread := m.unreadCount(); unread > 0 {
		parts = append(parts, on(styles.WarningText).Render(fmt.Sprintf("✉ %d", unread)))
	}

	if !m.mine.LastUpdated.IsZero() {
		parts = append(parts, on(styles.FaintText).Render(m.mine.LastUpdated.Format("15:04:05")))
	}

	if text, isErr := m.currentFlash(); text != "" {
		style := styles.InfoText
		if isErr {
			style = styles.DangerText
		}
		parts = append(parts, on(style).Render(truncate(text, 60)))
	}

	return styles.Header.Width(m.width).Render(strings.Join(parts, sep))
}

// classifyConnectionError condenses a poll error for the header.
func classifyConnectionError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "OFFLINE"
	case strings.Contains(msg, "no such host"):
		return "HOST NOT FOUND"
	case unomas.IsTimeout(err):
		return "TIMEOUT"
	case strings.Contains(msg, "status 401"), strings.Contains(msg, "status 403"):
		return "NOT SIGNED IN"
	default:
		return "ERROR"
	}
}

// renderCommandBar renders the command hints bar.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles()
	bg := lipgloss.Color(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch m.currentView {
	case ViewDetail:
		commands = []cmd{
			{"u", "Join"},
			{"c", "Confirm"},
			{"s", "Status"},
			{"e", "Strategy"},
			{"C", "Comments"},
			{"r", "Refresh"},
			{"esc", "Back"},
			{"?", "More"},
		}
	case ViewNotifications:
		commands = []cmd{
			{"j/k", "Navigate"},
			{"enter", "Open"},
			{"m", "Read"},
			{"M", "All read"},
			{"d", "Dismiss"},
			{"esc", "Back"},
			{"?", "More"},
		}
	case ViewStats:
		commands = []cmd{
			{"r", "Reload"},
			{"esc", "Back"},
			{"?", "More"},
		}
	case ViewLogs:
		commands = []cmd{
			{"f", "Level " + m.logLevel.String()},
			{"g/G", "Top/Bottom"},
			{"esc", "Back"},
			{"?", "More"},
		}
	default:
		commands = []cmd{
			{"j/k", "Navigate"},
			{"enter", "Open"},
			{"u", "Join"},
			{"c", "Confirm"},
			{"n", "Notifications"},
			{"l", "Logs"},
			{"p", pauseLabel(m)},
			{"?", "More"},
		}
	}

	key := styles.AccentText.Background(bg)
	desc := styles.MutedText.Background(bg)
	colon := styles.Text.Background(bg).Render(":")
	sep := styles.Text.Background(bg).Render("  ")

	segments := make([]string, 0, len(commands)+1)
	for _, c := range commands {
		segments = append(segments, key.Render(c.key)+colon+desc.Render(c.desc))
	}
	segments = append(segments, key.Render("T")+colon+styles.FaintText.Background(bg).Render(m.theme.Name))

	return styles.Header.Width(m.width).Render(strings.Join(segments, sep))
}

func pauseLabel(m Model) string {
	if m.policy != nil && m.policy.ManuallyPaused() {
		return "Resume"
	}
	return "Pause"
}

// freshness describes how current a snapshot is: when it was last updated
// and whether polling has been failing.
func freshness(styles Styles, hasValue, stale bool, updated time.Time, lastErr error, now time.Time) string {
	switch {
	case !hasValue && lastErr != nil:
		return styles.DangerText.Render("unavailable")
	case !hasValue:
		return styles.FaintText.Render("loading")
	case stale:
		return styles.WarningText.Render("stale, updated " + humanizeDuration(now.Sub(updated)) + " ago")
	case lastErr != nil:
		return styles.FaintText.Render("retrying, updated " + humanizeDuration(now.Sub(updated)) + " ago")
	default:
		return styles.FaintText.Render("updated " + humanizeDuration(now.Sub(updated)) + " ago")
	}
}
