package ui

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unomas/cancha/internal/unomas"
)

// Messages

type statsLoadedMsg struct {
	stats unomas.Stats
	err   error
}

type commentsLoadedMsg struct {
	matchID  string
	comments []unomas.Comment
	err      error
}

type commentDoneMsg struct {
	matchID string
	err     error
}

// Commands

func (m *Model) statsCmd() tea.Cmd {
	if m.backend == nil {
		return nil
	}
	m.statsLoading = true
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		stats, err := backend.Stats(ctx)
		return statsLoadedMsg{stats: stats, err: err}
	}
}

func (m *Model) commentsCmd(matchID string) tea.Cmd {
	if m.backend == nil {
		return nil
	}
	if m.commentsFor != matchID {
		m.comments = nil
		m.commentsErr = nil
	}
	m.commentsFor = matchID
	m.commentsLoading = true
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		comments, err := backend.Comments(ctx, matchID)
		return commentsLoadedMsg{matchID: matchID, comments: comments, err: err}
	}
}

func (m *Model) handleStatsLoaded(msg statsLoadedMsg) {
	m.statsLoading = false
	m.statsErr = msg.err
	if msg.err == nil {
		m.stats = msg.stats
		m.hasStats = true
	}
}

func (m *Model) handleCommentsLoaded(msg commentsLoadedMsg) {
	// A late answer for a match that is no longer open.
	if msg.matchID != m.commentsFor {
		return
	}
	m.commentsLoading = false
	m.commentsErr = msg.err
	if msg.err == nil {
		m.comments = msg.comments
	}
}

func (m Model) handleCommentDone(msg commentDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.setFlash(commentErrorText(msg.err), true)
		return m, nil
	}
	m.setFlash("Comment posted", false)
	if msg.matchID == m.detailID {
		cmd := m.commentsCmd(msg.matchID)
		return m, cmd
	}
	return m, nil
}

func (m *Model) clearComments() {
	m.comments = nil
	m.commentsFor = ""
	m.commentsErr = nil
	m.commentsLoading = false
	m.commentModal = nil
}

func commentErrorText(err error) string {
	return "Comment failed: " + errorText(err)
}

// errorText shows the server's message, the generic connection message for
// network failures, and local refusals as they are.
func errorText(err error) string {
	var apiErr *unomas.APIError
	var netErr net.Error
	if errors.As(err, &apiErr) || errors.As(err, &netErr) || unomas.IsTimeout(err) {
		return unomas.UserMessage(err)
	}
	return err.Error()
}

func canComment(match unomas.Match, userID string) (bool, string) {
	switch {
	case match.Status != unomas.StatusFinished:
		return false, "Comments open once the match has finished"
	case !match.HasPlayer(userID):
		return false, "Only players of this match can comment"
	default:
		return true, ""
	}
}

// commentModal collects a star rating and the comment text.
type commentModal struct {
	matchID string
	rating  int
	text    textinput.Model
}

func newCommentModal(matchID string) *commentModal {
	ti := textinput.New()
	ti.Placeholder = "how was the match?"
	ti.CharLimit = 500
	ti.Width = 40
	ti.Focus()
	return &commentModal{matchID: matchID, rating: unomas.MaxRating, text: ti}
}

// handleCommentModalKey: left/right set the rating, enter posts, esc
// cancels, everything else edits the text.
func (m Model) handleCommentModalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cm := m.commentModal
	switch msg.String() {
	case "esc":
		m.commentModal = nil
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	case "left", "down":
		if cm.rating > 1 {
			cm.rating--
		}
		return m, nil
	case "right", "up":
		if cm.rating < unomas.MaxRating {
			cm.rating++
		}
		return m, nil
	case "enter":
		text := strings.TrimSpace(cm.text.Value())
		if text == "" {
			m.setFlash("Write something before posting", true)
			return m, nil
		}
		m.commentModal = nil
		if m.backend == nil {
			return m, nil
		}
		ctx, backend := m.ctx, m.backend
		id, rating := cm.matchID, cm.rating
		m.setFlash("Posting comment…", false)
		return m, func() tea.Msg {
			return commentDoneMsg{matchID: id, err: backend.AddComment(ctx, id, text, rating)}
		}
	}

	var cmd tea.Cmd
	cm.text, cmd = cm.text.Update(msg)
	return m, cmd
}

func (m Model) renderCommentModal() string {
	styles := m.theme.Styles()
	cm := m.commentModal

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Rate this match"))
	b.WriteString("\n\n")
	b.WriteString(styles.WarningText.Render(stars(cm.rating)))
	b.WriteString(styles.FaintText.Render(strings.Repeat("☆", unomas.MaxRating-cm.rating)))
	b.WriteString("\n\n")
	b.WriteString(cm.text.View())
	b.WriteString("\n\n")
	b.WriteString(styles.FaintText.Render("←/→ rating  enter post  esc cancel"))
	return m.placeModal(b.String(), 50)
}

func stars(n int) string {
	return strings.Repeat("★", max(0, min(n, unomas.MaxRating)))
}

// renderComments renders the comments section of the detail view.
func (m Model) renderComments(match unomas.Match) string {
	if m.commentsFor != match.ID {
		return ""
	}
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(styles.Section.Render("Comments"))
	b.WriteString("\n")
	switch {
	case m.commentsErr != nil:
		b.WriteString(styles.DangerText.Render("  Could not load comments: " + errorText(m.commentsErr)))
		b.WriteString("\n")
	case m.commentsLoading && len(m.comments) == 0:
		b.WriteString(styles.FaintText.Render("  loading…"))
		b.WriteString("\n")
	case len(m.comments) == 0:
		b.WriteString(styles.FaintText.Render("  no comments yet"))
		b.WriteString("\n")
	}
	for _, c := range m.comments {
		author := c.Author
		if author == "" {
			author = "someone"
		}
		b.WriteString("  ")
		b.WriteString(styles.Text.Bold(true).Render(author))
		b.WriteString(" ")
		b.WriteString(styles.WarningText.Render(stars(c.Rating)))
		if !c.CreatedAt.IsZero() {
			b.WriteString(styles.FaintText.Render("  " + c.CreatedAt.Local().Format("2 Jan")))
		}
		b.WriteString("\n")
		if c.Text != "" {
			b.WriteString(styles.MutedText.Render("    " + c.Text))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// renderStats renders the platform statistics view.
func (m Model) renderStats() string {
	styles := m.theme.Styles()
	switch {
	case m.statsErr != nil && !m.hasStats:
		return styles.DangerText.Render("Could not load statistics: " + errorText(m.statsErr))
	case !m.hasStats:
		return styles.FaintText.Render("Loading statistics…")
	}
	st := m.stats

	var b strings.Builder
	b.WriteString(styles.Section.Render("Statistics"))
	if m.statsLoading {
		b.WriteString(styles.FaintText.Render("  refreshing…"))
	} else if m.statsErr != nil {
		b.WriteString(styles.WarningText.Render("  refresh failed: " + errorText(m.statsErr)))
	}
	b.WriteString("\n\n")

	field := func(label, value string) {
		b.WriteString(styles.MutedText.Render(padRight(label, 22)))
		b.WriteString(styles.Text.Render(value))
		b.WriteString("\n")
	}
	field("Users", fmt.Sprintf("%d (%d active)", st.TotalUsers, st.ActiveUsers))
	field("Matches", fmt.Sprintf("%d (%d active)", st.TotalMatches, st.ActiveMatches))
	field("Players per match", fmt.Sprintf("%.1f", st.AvgPlayersPerMatch))
	popular := st.MostPopularSport
	if popular == "" {
		popular = "n/a"
	}
	field("Most popular sport", popular)

	breakdown := func(title string, counts []unomas.Count, total int, label func(string) string) {
		if len(counts) == 0 {
			return
		}
		b.WriteString("\n")
		b.WriteString(styles.Section.Render(title))
		b.WriteString("\n")
		for _, c := range counts {
			b.WriteString("  ")
			b.WriteString(styles.Text.Render(padRight(label(c.Key), 20)))
			b.WriteString(styles.Text.Render(fmt.Sprintf("%5d", c.Value)))
			b.WriteString(styles.FaintText.Render("  " + percent(c.Value, total)))
			b.WriteString("\n")
		}
	}
	same := func(s string) string { return s }
	breakdown("Users by sport", st.UsersBySport, st.TotalUsers, same)
	breakdown("Users by level", st.UsersByLevel, st.ActiveUsers, same)
	breakdown("Matches by status", st.MatchesByStatus, st.TotalMatches, func(s string) string {
		return unomas.Status(s).Label()
	})
	return b.String()
}

func percent(value, total int) string {
	if total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%d%%", (value*100+total/2)/total)
}

// placeModal centers body in a bordered box over the whole screen.
func (m Model) placeModal(body string, width int) string {
	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.BorderFocus)).
		Padding(1, 2).
		Width(width)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(body),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}

// startComment opens the comment modal, or explains why it cannot.
func (m Model) startComment(match unomas.Match) (tea.Model, tea.Cmd) {
	if ok, why := canComment(match, m.profile.ID); !ok {
		m.setFlash(why, true)
		return m, nil
	}
	m.commentModal = newCommentModal(match.ID)
	return m, nil
}
