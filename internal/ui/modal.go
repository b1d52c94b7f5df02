package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/unomas/cancha/internal/action"
	"github.com/unomas/cancha/internal/unomas"
)

// statusChoices are the states an organizer can move a match to.
var statusChoices = []unomas.Status{
	unomas.StatusConfirmed,
	unomas.StatusInProgress,
	unomas.StatusFinished,
	unomas.StatusCancelled,
}

// statusModal picks a new status and an optional reason.
type statusModal struct {
	matchID string
	current unomas.Status
	options []unomas.Status
	idx     int
	reason  textinput.Model
}

func newStatusModal(match unomas.Match) *statusModal {
	var options []unomas.Status
	for _, s := range statusChoices {
		if s != match.Status {
			options = append(options, s)
		}
	}
	ti := textinput.New()
	ti.Placeholder = "reason (optional)"
	ti.CharLimit = 200
	ti.Width = 40
	ti.Focus()
	return &statusModal{
		matchID: match.ID,
		current: match.Status,
		options: options,
		reason:  ti,
	}
}

func (s *statusModal) selected() unomas.Status {
	if len(s.options) == 0 {
		return ""
	}
	return s.options[s.idx]
}

// handleStatusModalKey: arrows pick the status, enter submits, esc cancels,
// everything else edits the reason.
func (m Model) handleStatusModalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sm := m.statusModal
	switch msg.String() {
	case "esc":
		m.statusModal = nil
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	case "up", "left":
		if sm.idx > 0 {
			sm.idx--
		}
		return m, nil
	case "down", "right":
		if sm.idx < len(sm.options)-1 {
			sm.idx++
		}
		return m, nil
	case "enter":
		status := sm.selected()
		reason := strings.TrimSpace(sm.reason.Value())
		id := sm.matchID
		m.statusModal = nil
		if status == "" || m.backend == nil {
			return m, nil
		}
		backend := m.backend
		m.setFlash("Changing status to "+status.Label()+"…", false)
		return m, m.actionCmd(action.KindChangeStatus, id, func(ctx context.Context) (unomas.ActionResult, error) {
			return backend.ChangeStatus(ctx, id, status, reason)
		})
	}

	var cmd tea.Cmd
	sm.reason, cmd = sm.reason.Update(msg)
	return m, cmd
}

func (m Model) renderStatusModal() string {
	styles := m.theme.Styles()
	sm := m.statusModal

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Change match status"))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render("Currently " + sm.current.Label()))
	b.WriteString("\n\n")
	for i, s := range sm.options {
		label := "  " + s.Label()
		if i == sm.idx {
			b.WriteString(styles.Selected.Render("> " + s.Label()))
		} else {
			b.WriteString(styles.Text.Render(label))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(sm.reason.View())
	b.WriteString("\n\n")
	b.WriteString(styles.FaintText.Render("↑/↓ pick  enter apply  esc cancel"))

	return m.placeModal(b.String(), 50)
}

// strategyModal picks a new matching strategy.
type strategyModal struct {
	matchID string
	current unomas.Strategy
	options []unomas.Strategy
	idx     int
}

func newStrategyModal(match unomas.Match) *strategyModal {
	var options []unomas.Strategy
	for _, s := range unomas.Strategies {
		if s != match.Strategy {
			options = append(options, s)
		}
	}
	return &strategyModal{matchID: match.ID, current: match.Strategy, options: options}
}

func (m Model) handleStrategyModalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sm := m.strategyModal
	switch msg.String() {
	case "esc":
		m.strategyModal = nil
	case "ctrl+c":
		return m, tea.Quit
	case "up", "k", "left":
		if sm.idx > 0 {
			sm.idx--
		}
	case "down", "j", "right":
		if sm.idx < len(sm.options)-1 {
			sm.idx++
		}
	case "enter":
		m.strategyModal = nil
		if len(sm.options) == 0 || m.backend == nil {
			return m, nil
		}
		strategy, id, backend := sm.options[sm.idx], sm.matchID, m.backend
		m.setFlash("Switching strategy to "+strategy.Label()+"…", false)
		return m, m.actionCmd(action.KindStrategy, id, func(ctx context.Context) (unomas.ActionResult, error) {
			return backend.ConfigureStrategy(ctx, id, strategy)
		})
	}
	return m, nil
}

func (m Model) renderStrategyModal() string {
	styles := m.theme.Styles()
	sm := m.strategyModal

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Matching strategy"))
	b.WriteString("\n")
	current := sm.current.Label()
	if current == "" {
		current = "not set"
	}
	b.WriteString(styles.MutedText.Render("Currently " + current))
	b.WriteString("\n\n")
	for i, s := range sm.options {
		if i == sm.idx {
			b.WriteString(styles.Selected.Render("> " + s.Label()))
		} else {
			b.WriteString(styles.Text.Render("  " + s.Label()))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("↑/↓ pick  enter apply  esc cancel"))
	return m.placeModal(b.String(), 40)
}
