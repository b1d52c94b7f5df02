package ui

import (
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unomas/cancha/internal/logtail"
)

// LogTailLines is how many lines of the log file the Logs view loads.
const LogTailLines = 500

var logLevels = []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}

// handleLogsKey processes keyboard input for the logs view.
func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.CycleLevel):
		m.logLevel = nextLevel(m.logLevel)
		m.updateLogViewport()
		m.logViewport.GotoBottom()
		return m, nil
	case key.Matches(msg, m.keys.Top):
		m.logViewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.logViewport.GotoBottom()
		return m, nil
	}
	var cmd tea.Cmd
	m.logViewport, cmd = m.logViewport.Update(msg)
	return m, cmd
}

func nextLevel(current slog.Level) slog.Level {
	for i, l := range logLevels {
		if l == current {
			return logLevels[(i+1)%len(logLevels)]
		}
	}
	return slog.LevelInfo
}

// updateLogViewport reloads the tail of the log file. The view stays pinned
// to the bottom unless the user scrolled up.
func (m *Model) updateLogViewport() {
	if !m.ready || m.logFile == "" {
		return
	}
	lines, err := logtail.Read(m.logFile, LogTailLines)
	styles := m.theme.Styles()
	if err != nil {
		m.logViewport.SetContent(styles.DangerText.Render(err.Error()))
		return
	}

	entries := logtail.ParseLines(lines, m.logLevel)
	rendered := make([]string, 0, len(entries))
	for _, e := range entries {
		rendered = append(rendered, m.renderLogEntry(e, styles))
	}
	atBottom := m.logViewport.AtBottom()
	m.logViewport.SetContent(strings.Join(rendered, "\n"))
	if atBottom || m.logLines == 0 {
		m.logViewport.GotoBottom()
	}
	m.logLines = len(rendered)
}

func (m Model) renderLogEntry(e logtail.Entry, styles Styles) string {
	if !e.Parsed {
		return styles.FaintText.Render(e.Raw)
	}
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(styles.FaintText.Render(e.Time.Local().Format("15:04:05")))
		b.WriteString(" ")
	}
	b.WriteString(m.levelStyle(e.Level, styles).Render(padRight(e.Level.String(), 5)))
	b.WriteString(" ")
	b.WriteString(styles.Text.Render(e.Message))
	for _, a := range e.Attrs {
		b.WriteString(" ")
		b.WriteString(styles.MutedText.Render(a.Key + "="))
		b.WriteString(styles.InfoText.Render(a.Value))
	}
	return b.String()
}

func (m Model) levelStyle(level slog.Level, styles Styles) lipgloss.Style {
	switch {
	case level >= slog.LevelError:
		return styles.DangerText
	case level >= slog.LevelWarn:
		return styles.WarningText
	case level >= slog.LevelInfo:
		return styles.AccentText
	default:
		return styles.FaintText
	}
}
