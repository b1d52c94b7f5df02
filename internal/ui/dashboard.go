package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/unomas/cancha/internal/state"
	"github.com/unomas/cancha/internal/unomas"
)

type dashSection int

const (
	sectionMine dashSection = iota
	sectionRecommended
)

type dashRow struct {
	section dashSection
	match   unomas.Match
}

// dashboardRows lists the user's matches followed by recommendations that
// are not already among them.
func (m Model) dashboardRows() []dashRow {
	rows := make([]dashRow, 0, len(m.mine.Value)+len(m.recommended.Value))
	seen := make(map[string]bool, len(m.mine.Value))
	for _, match := range m.mine.Value {
		seen[match.ID] = true
		rows = append(rows, dashRow{section: sectionMine, match: match})
	}
	for _, match := range m.recommended.Value {
		if seen[match.ID] || match.HasPlayer(m.profile.ID) {
			continue
		}
		rows = append(rows, dashRow{section: sectionRecommended, match: match})
	}
	return rows
}

func (m Model) selectedMatch() (unomas.Match, bool) {
	rows := m.dashboardRows()
	if m.selectedRow < 0 || m.selectedRow >= len(rows) {
		return unomas.Match{}, false
	}
	return rows[m.selectedRow].match, true
}

// handleDashboardKey processes keyboard input for the dashboard.
func (m Model) handleDashboardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	count := len(m.dashboardRows())
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.selectedRow < count-1 {
			m.selectedRow++
		}
	case key.Matches(msg, m.keys.Up):
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case key.Matches(msg, m.keys.Top):
		m.selectedRow = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selectedRow = max(count-1, 0)
	case key.Matches(msg, m.keys.Open):
		if match, ok := m.selectedMatch(); ok {
			m.openDetail(match.ID)
		}
	default:
		if match, ok := m.selectedMatch(); ok {
			return m.handleMatchAction(msg, match)
		}
	}
	return m, nil
}

// renderDashboard renders the user's matches and recommendations.
func (m Model) renderDashboard() string {
	styles := m.theme.Styles()
	var b strings.Builder
	rows := m.dashboardRows()

	b.WriteString(styles.Section.Render("My matches"))
	b.WriteString(" ")
	b.WriteString(m.freshnessNote(m.mine))
	b.WriteString("\n")
	mineCount := 0
	for i, row := range rows {
		if row.section != sectionMine {
			continue
		}
		mineCount++
		b.WriteString(m.renderMatchRow(row.match, i == m.selectedRow))
		b.WriteString("\n")
	}
	if mineCount == 0 {
		b.WriteString(styles.FaintText.Render(m.emptyNote(m.mine, "You have no matches yet.")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.Section.Render("Recommended"))
	b.WriteString(" ")
	b.WriteString(m.freshnessNote(m.recommended))
	b.WriteString("\n")
	recCount := 0
	for i, row := range rows {
		if row.section != sectionRecommended {
			continue
		}
		recCount++
		b.WriteString(m.renderMatchRow(row.match, i == m.selectedRow))
		b.WriteString("\n")
	}
	if recCount == 0 {
		b.WriteString(styles.FaintText.Render(m.emptyNote(m.recommended, "No open matches nearby.")))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderMatchRow(match unomas.Match, selected bool) string {
	styles := m.theme.Styles()
	badge := styles.StatusStyle(match.Status).Render(padRight(match.Status.Label(), 15))

	players := fmt.Sprintf("%d/%d", match.CurrentPlayers, match.RequiredPlayers)
	when := formatStart(match.ScheduledAt, m.now)
	place := match.Location.Zone
	if place == "" {
		place = match.Location.Address
	}

	var tags []string
	if match.HasPlayer(m.profile.ID) {
		tags = append(tags, "you")
	}
	if match.Compatibility != nil {
		tags = append(tags, fmt.Sprintf("%d%%", int(*match.Compatibility*100+0.5)))
	}
	if m.backend != nil && len(m.pendingFor(match.ID)) > 0 {
		tags = append(tags, "…")
	}

	var line string
	if m.width > 0 && m.width < LayoutCompactWidth {
		line = fmt.Sprintf("%-14s %-12s %5s %s",
			truncate(match.SportName(), 14),
			truncate(when, 12),
			players,
			strings.Join(tags, " "))
	} else {
		line = fmt.Sprintf("%-18s %-12s %5s  %-18s %s",
			truncate(match.SportName(), 18),
			truncate(when, 12),
			players,
			truncate(place, 18),
			strings.Join(tags, " "))
	}
	if selected {
		return badge + " " + styles.Selected.Render(line)
	}
	return badge + " " + styles.Text.Render(line)
}

// freshnessNote describes how current a list snapshot is.
func (m Model) freshnessNote(snap state.Snapshot[[]unomas.Match]) string {
	return freshness(m.theme.Styles(), snap.HasValue, snap.IsStale(), snap.LastUpdated, snap.LastError, m.now)
}

func (m Model) emptyNote(snap state.Snapshot[[]unomas.Match], empty string) string {
	if !snap.HasValue {
		if snap.LastError != nil {
			return "Could not load: " + unomas.UserMessage(snap.LastError)
		}
		return "Loading…"
	}
	return empty
}
