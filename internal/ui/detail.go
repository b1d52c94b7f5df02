package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/unomas/cancha/internal/action"
	"github.com/unomas/cancha/internal/unomas"
)

// handleDetailKey processes keyboard input for the match detail view.
func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.detail.HasValue {
		return m, nil
	}
	match := m.detail.Value
	switch {
	case key.Matches(msg, m.keys.ShowComments):
		if m.commentsFor == match.ID && !m.commentsLoading {
			m.clearComments()
			return m, nil
		}
		cmd := m.commentsCmd(match.ID)
		return m, cmd
	case key.Matches(msg, m.keys.WriteComment):
		return m.startComment(match)
	}
	return m.handleMatchAction(msg, match)
}

// handleMatchAction runs join, confirm or status change against match.
// Actions the user cannot take on this match only produce a hint.
func (m Model) handleMatchAction(msg tea.KeyMsg, match unomas.Match) (tea.Model, tea.Cmd) {
	backend := m.backend
	if backend == nil {
		return m, nil
	}
	id := match.ID

	switch {
	case key.Matches(msg, m.keys.Join):
		if ok, why := canJoin(match, m.profile.ID); !ok {
			m.setFlash(why, true)
			return m, nil
		}
		m.setFlash("Joining "+match.SportName()+"…", false)
		return m, m.actionCmd(action.KindJoin, id, func(ctx context.Context) (unomas.ActionResult, error) {
			return backend.Join(ctx, id)
		})

	case key.Matches(msg, m.keys.Confirm):
		if ok, why := canConfirm(match, m.profile.ID); !ok {
			m.setFlash(why, true)
			return m, nil
		}
		m.setFlash("Confirming…", false)
		return m, m.actionCmd(action.KindConfirm, id, func(ctx context.Context) (unomas.ActionResult, error) {
			return backend.Confirm(ctx, id)
		})

	case key.Matches(msg, m.keys.ChangeStatus):
		if !isOrganizer(match, m.profile.ID) {
			m.setFlash("Only the organizer can change the status", true)
			return m, nil
		}
		m.statusModal = newStatusModal(match)
		return m, nil

	case key.Matches(msg, m.keys.Strategy):
		if ok, why := canChangeStrategy(match, m.profile.ID); !ok {
			m.setFlash(why, true)
			return m, nil
		}
		m.strategyModal = newStrategyModal(match)
		return m, nil
	}
	return m, nil
}

func canJoin(match unomas.Match, userID string) (bool, string) {
	switch {
	case match.HasPlayer(userID):
		return false, "You are already in this match"
	case match.Status != unomas.StatusSeekingPlayers:
		return false, "This match is not looking for players"
	case !match.CanJoin:
		return false, "You cannot join this match"
	default:
		return true, ""
	}
}

func canConfirm(match unomas.Match, userID string) (bool, string) {
	switch {
	case !match.HasPlayer(userID):
		return false, "Join the match before confirming"
	case match.Status != unomas.StatusAssembled:
		return false, "Only assembled matches need confirmation"
	default:
		return true, ""
	}
}

func canChangeStrategy(match unomas.Match, userID string) (bool, string) {
	switch {
	case !isOrganizer(match, userID):
		return false, "Only the organizer can change the strategy"
	case match.Status != unomas.StatusSeekingPlayers:
		return false, "The strategy only matters while seeking players"
	default:
		return true, ""
	}
}

func isOrganizer(match unomas.Match, userID string) bool {
	org, ok := match.Organizer()
	return ok && userID != "" && org.ID == userID
}

func (m Model) pendingFor(matchID string) []action.Pending {
	if m.backend == nil {
		return nil
	}
	var out []action.Pending
	for _, p := range m.backend.Pending() {
		if p.MatchID == matchID {
			out = append(out, p)
		}
	}
	return out
}

// renderDetail renders one match with its roster.
func (m Model) renderDetail() string {
	styles := m.theme.Styles()
	snap := m.detail
	if m.detailID == "" {
		return styles.FaintText.Render("No match selected. Pick one on the dashboard and press enter.")
	}
	if !snap.HasValue {
		if snap.LastError != nil {
			return styles.DangerText.Render("Could not load match " + m.detailID + ": " + unomas.UserMessage(snap.LastError))
		}
		return styles.FaintText.Render("Loading match " + m.detailID + "…")
	}
	match := snap.Value

	var b strings.Builder
	b.WriteString(styles.Section.Render(match.SportName()))
	b.WriteString("  ")
	b.WriteString(styles.StatusStyle(match.Status).Render(match.Status.Label()))
	if snap.Optimistic {
		b.WriteString("  ")
		b.WriteString(styles.WarningText.Render("(waiting for server)"))
	}
	b.WriteString("  ")
	b.WriteString(freshness(styles, snap.HasValue, snap.IsStale(), snap.LastUpdated, snap.LastError, m.now))
	b.WriteString("\n\n")

	field := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		b.WriteString(styles.MutedText.Render(padRight(label, 14)))
		b.WriteString(styles.Text.Render(value))
		b.WriteString("\n")
	}
	field("When", formatWhen(match.ScheduledAt, m.now))
	if match.DurationMinutes > 0 {
		field("Duration", fmt.Sprintf("%d min", match.DurationMinutes))
	}
	field("Where", strings.TrimSpace(strings.Join(nonEmpty(match.Location.Address, match.Location.Zone), ", ")))
	field("Players", fmt.Sprintf("%d of %d", match.CurrentPlayers, match.RequiredPlayers))
	field("Strategy", match.Strategy.Label())
	if match.Compatibility != nil {
		field("Compatibility", fmt.Sprintf("%d%%", int(*match.Compatibility*100+0.5)))
	}

	for _, a := range match.Anomalies() {
		b.WriteString(styles.WarningText.Render("! " + a))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.Section.Render("Roster"))
	b.WriteString("\n")
	if len(match.Roster) == 0 {
		b.WriteString(styles.FaintText.Render("  nobody yet"))
		b.WriteString("\n")
	}
	for _, p := range match.Roster {
		name := p.Username
		if name == "" {
			name = p.ID
		}
		line := "  " + name
		if p.Level != "" {
			line += styles.FaintText.Render("  " + p.Level)
		}
		if p.Organizer {
			line += styles.AccentText.Render("  organizer")
		}
		if p.ID == m.profile.ID && m.hasProfile {
			line += styles.SuccessText.Render("  you")
		}
		b.WriteString(styles.Text.Render(line))
		b.WriteString("\n")
	}

	if pending := m.pendingFor(match.ID); len(pending) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.Section.Render("In flight"))
		b.WriteString("\n")
		for _, p := range pending {
			b.WriteString(styles.WarningText.Render(fmt.Sprintf("  %s  %s  %s ago",
				actionVerb(p.Kind), strings.ToLower(string(p.Status)), humanizeDuration(m.now.Sub(p.SubmittedAt)))))
			b.WriteString("\n")
		}
	}

	b.WriteString(m.renderComments(match))

	b.WriteString("\n")
	b.WriteString(m.renderDetailHints(match))
	return b.String()
}

func (m Model) renderDetailHints(match unomas.Match) string {
	styles := m.theme.Styles()
	var hints []string
	if ok, _ := canJoin(match, m.profile.ID); ok {
		hints = append(hints, styles.AccentText.Render("u")+styles.MutedText.Render(" join"))
	}
	if ok, _ := canConfirm(match, m.profile.ID); ok {
		hints = append(hints, styles.AccentText.Render("c")+styles.MutedText.Render(" confirm"))
	}
	if isOrganizer(match, m.profile.ID) {
		hints = append(hints, styles.AccentText.Render("s")+styles.MutedText.Render(" change status"))
	}
	if ok, _ := canChangeStrategy(match, m.profile.ID); ok {
		hints = append(hints, styles.AccentText.Render("e")+styles.MutedText.Render(" strategy"))
	}
	hints = append(hints, styles.AccentText.Render("C")+styles.MutedText.Render(" comments"))
	if ok, _ := canComment(match, m.profile.ID); ok {
		hints = append(hints, styles.AccentText.Render("w")+styles.MutedText.Render(" rate match"))
	}
	if len(hints) == 0 {
		return ""
	}
	return strings.Join(hints, "   ")
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
