package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/unomas/cancha/internal/notify"
)

// handleNotificationsKey processes keyboard input for the notification list.
func (m Model) handleNotificationsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	count := len(m.records)
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.selectedNote < count-1 {
			m.selectedNote++
		}
	case key.Matches(msg, m.keys.Up):
		if m.selectedNote > 0 {
			m.selectedNote--
		}
	case key.Matches(msg, m.keys.Top):
		m.selectedNote = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selectedNote = max(count-1, 0)
	case key.Matches(msg, m.keys.MarkAllRead):
		if m.feed != nil {
			n := m.feed.MarkAllRead()
			m.setFlash(fmt.Sprintf("%d marked read", n), false)
		}
	case key.Matches(msg, m.keys.MarkRead):
		if rec, ok := m.selectedRecord(); ok && m.feed != nil {
			m.feed.MarkRead(rec.ID)
		}
	case key.Matches(msg, m.keys.Dismiss):
		if rec, ok := m.selectedRecord(); ok && m.feed != nil {
			m.feed.Dismiss(rec.ID)
		}
	case key.Matches(msg, m.keys.Open):
		if rec, ok := m.selectedRecord(); ok && rec.MatchID != "" {
			if m.feed != nil {
				m.feed.MarkRead(rec.ID)
			}
			m.openDetail(rec.MatchID)
		}
	}
	m.refreshData()
	return m, nil
}

func (m Model) selectedRecord() (notify.Record, bool) {
	if m.selectedNote < 0 || m.selectedNote >= len(m.records) {
		return notify.Record{}, false
	}
	return m.records[m.selectedNote], true
}

// renderNotifications renders the feed, highest priority first.
func (m Model) renderNotifications() string {
	styles := m.theme.Styles()
	var b strings.Builder

	b.WriteString(styles.Section.Render("Notifications"))
	if unread := m.unreadCount(); unread > 0 {
		b.WriteString(styles.WarningText.Render(fmt.Sprintf("  %d unread", unread)))
	}
	b.WriteString("\n")

	if len(m.records) == 0 {
		b.WriteString(styles.FaintText.Render("Nothing needs your attention."))
		b.WriteString("\n")
		return b.String()
	}

	for i, rec := range m.records {
		marker := styles.PriorityStyle(rec.Priority).Render(priorityGlyph(rec.Priority))
		title := rec.Title
		age := humanizeDuration(m.now.Sub(rec.CreatedAt))

		line := fmt.Sprintf("%-40s %s", truncate(title, 40), truncate(rec.Message, 50))
		meta := "  " + age
		if m.width >= LayoutWideWidth {
			meta = fmt.Sprintf("  %s · %s", rec.Kind.Label(), age)
		}

		switch {
		case i == m.selectedNote:
			b.WriteString(marker + " " + styles.Selected.Render(line) + styles.FaintText.Render(meta))
		case !rec.Read:
			b.WriteString(marker + " " + styles.Text.Bold(true).Render(line) + styles.FaintText.Render(meta))
		default:
			b.WriteString(marker + " " + styles.MutedText.Render(line) + styles.FaintText.Render(meta))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) unreadCount() int {
	n := 0
	for _, r := range m.records {
		if !r.Read {
			n++
		}
	}
	return n
}

func priorityGlyph(p notify.Priority) string {
	switch p {
	case notify.PriorityHigh:
		return "!!"
	case notify.PriorityMedium:
		return " !"
	default:
		return " ·"
	}
}
