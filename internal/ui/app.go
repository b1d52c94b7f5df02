package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/unomas/cancha/internal/action"
	"github.com/unomas/cancha/internal/notify"
	"github.com/unomas/cancha/internal/policy"
	"github.com/unomas/cancha/internal/prefs"
	"github.com/unomas/cancha/internal/state"
	"github.com/unomas/cancha/internal/unomas"
)

// View represents the current active view.
type View int

const (
	ViewDashboard View = iota
	ViewDetail
	ViewNotifications
	ViewLogs
	ViewStats
)

// Backend is what the UI reads from and acts through.
type Backend interface {
	Dashboard() state.Snapshot[[]unomas.Match]
	Recommended() state.Snapshot[[]unomas.Match]
	Match(matchID string) state.Snapshot[unomas.Match]
	Open(matchID string) (release func())
	Profile() (unomas.Profile, bool)
	Pending() []action.Pending
	InFlight(matchID string, kind action.Kind) bool
	Refresh(ctx context.Context) error
	Join(ctx context.Context, matchID string) (unomas.ActionResult, error)
	Confirm(ctx context.Context, matchID string) (unomas.ActionResult, error)
	ChangeStatus(ctx context.Context, matchID string, status unomas.Status, reason string) (unomas.ActionResult, error)
	ConfigureStrategy(ctx context.Context, matchID string, strategy unomas.Strategy) (unomas.ActionResult, error)
	Stats(ctx context.Context) (unomas.Stats, error)
	Comments(ctx context.Context, matchID string) ([]unomas.Comment, error)
	AddComment(ctx context.Context, matchID, text string, rating int) error
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Backend   Backend
	Feed      *notify.Feed
	Policy    *policy.Policy
	LogFile   string
	ThemeName string
	Prefs     prefs.Prefs
	PrefsPath string
	MatchID   string // open this match on start
	Tick      time.Duration
}

const (
	defaultTick   = time.Second
	flashLifetime = 6 * time.Second
)

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	backend   Backend
	feed      *notify.Feed
	policy    *policy.Policy
	logFile   string
	prefs     prefs.Prefs
	prefsPath string
	tick      time.Duration
	keys      keyMap

	// UI state
	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool
	showHelp    bool

	// Data state
	mine        state.Snapshot[[]unomas.Match]
	recommended state.Snapshot[[]unomas.Match]
	records     []notify.Record
	profile     unomas.Profile
	hasProfile  bool
	now         time.Time

	// Dashboard state
	selectedRow int

	// Detail state
	detailID      string
	detailRelease func()
	detail        state.Snapshot[unomas.Match]

	// Notifications state
	selectedNote int

	// Log state
	logViewport viewport.Model
	logLevel    slog.Level
	logLines    int

	// Comments of the open match, loaded on request
	comments        []unomas.Comment
	commentsFor     string
	commentsErr     error
	commentsLoading bool

	// Stats view state
	stats        unomas.Stats
	hasStats     bool
	statsErr     error
	statsLoading bool

	// Modals
	statusModal   *statusModal
	strategyModal *strategyModal
	commentModal  *commentModal

	// Last action outcome
	flash      string
	flashIsErr bool
	flashAt    time.Time
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	themeName := opts.ThemeName
	if themeName == "" {
		themeName = opts.Prefs.Theme
	}

	m := Model{
		ctx:         ctx,
		backend:     opts.Backend,
		feed:        opts.Feed,
		policy:      opts.Policy,
		logFile:     opts.LogFile,
		prefs:       opts.Prefs,
		prefsPath:   prefsPath,
		tick:        tick,
		keys:        DefaultKeyMap(),
		theme:       GetTheme(themeName),
		currentView: ViewDashboard,
		logLevel:    slog.LevelInfo,
		now:         time.Now(),
	}
	if id := strings.TrimSpace(opts.MatchID); id != "" {
		m.openDetail(id)
	}
	m.refreshData()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd(m.tick)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.logViewport = viewport.New(msg.Width, m.contentHeight())
		}
		m.ready = true
		m.logViewport.Width = msg.Width
		m.logViewport.Height = m.contentHeight()
		m.updateLogViewport()
		return m, nil

	case tea.FocusMsg:
		if m.policy != nil {
			m.policy.SetVisible(true)
		}
		return m, nil

	case tea.BlurMsg:
		if m.policy != nil {
			m.policy.SetVisible(false)
		}
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		m.refreshData()
		if m.currentView == ViewLogs {
			m.updateLogViewport()
		}
		return m, tickCmd(m.tick)

	case actionDoneMsg:
		m.handleActionDone(msg)
		m.refreshData()
		return m, nil

	case refreshDoneMsg:
		if msg.err != nil {
			m.setFlash("Refresh failed: "+unomas.UserMessage(msg.err), true)
		} else {
			m.setFlash("Refreshed", false)
		}
		m.refreshData()
		return m, nil

	case statsLoadedMsg:
		m.handleStatsLoaded(msg)
		return m, nil

	case commentsLoadedMsg:
		m.handleCommentsLoaded(msg)
		return m, nil

	case commentDoneMsg:
		return m.handleCommentDone(msg)
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.statusModal != nil {
		return m.renderStatusModal()
	}
	if m.strategyModal != nil {
		return m.renderStrategyModal()
	}
	if m.commentModal != nil {
		return m.renderCommentModal()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	return b.String()
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewDetail:
		return m.renderDetail()
	case ViewNotifications:
		return m.renderNotifications()
	case ViewLogs:
		return m.logViewport.View()
	case ViewStats:
		return m.renderStats()
	default:
		return m.renderDashboard()
	}
}

// contentHeight is the height left under the header and command bar.
func (m Model) contentHeight() int {
	h := m.height - 2
	if h < 1 {
		return 1
	}
	return h
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.statusModal != nil {
		return m.handleStatusModalKey(msg)
	}
	if m.strategyModal != nil {
		return m.handleStrategyModalKey(msg)
	}
	if m.commentModal != nil {
		return m.handleCommentModalKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.closeDetail()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		if m.prefsPath != "" {
			if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
				slog.Warn("save prefs failed", "error", err)
				m.setFlash("Theme not saved", true)
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		cmd := m.cycleView(1)
		return m, cmd

	case key.Matches(msg, m.keys.ShiftTab):
		cmd := m.cycleView(-1)
		return m, cmd

	case key.Matches(msg, m.keys.Escape):
		m.currentView = ViewDashboard
		return m, nil

	case key.Matches(msg, m.keys.ViewDashboard):
		m.currentView = ViewDashboard
		return m, nil

	case key.Matches(msg, m.keys.ViewNotifications):
		m.currentView = ViewNotifications
		m.refreshData()
		return m, nil

	case key.Matches(msg, m.keys.ViewLogs):
		m.currentView = ViewLogs
		m.updateLogViewport()
		m.logViewport.GotoBottom()
		return m, nil

	case key.Matches(msg, m.keys.ViewStats):
		m.currentView = ViewStats
		cmd := m.statsCmd()
		return m, cmd

	case key.Matches(msg, m.keys.Refresh):
		if m.currentView == ViewStats {
			cmd := m.statsCmd()
			return m, tea.Batch(m.refreshCmd(), cmd)
		}
		return m, m.refreshCmd()

	case key.Matches(msg, m.keys.TogglePause):
		if m.policy != nil {
			m.policy.SetManualPause(!m.policy.ManuallyPaused())
		}
		return m, nil
	}

	switch m.currentView {
	case ViewDashboard:
		return m.handleDashboardKey(msg)
	case ViewDetail:
		return m.handleDetailKey(msg)
	case ViewNotifications:
		return m.handleNotificationsKey(msg)
	case ViewLogs:
		return m.handleLogsKey(msg)
	}
	return m, nil
}

// cycleView moves through Dashboard → Detail (when a match is open) →
// Notifications → Logs → Stats. Arriving on Stats loads them.
func (m *Model) cycleView(step int) tea.Cmd {
	order := []View{ViewDashboard}
	if m.detailID != "" {
		order = append(order, ViewDetail)
	}
	order = append(order, ViewNotifications, ViewLogs, ViewStats)

	idx := 0
	for i, v := range order {
		if v == m.currentView {
			idx = i
			break
		}
	}
	idx = (idx + step + len(order)) % len(order)
	m.currentView = order[idx]
	switch m.currentView {
	case ViewLogs:
		m.updateLogViewport()
		m.logViewport.GotoBottom()
	case ViewStats:
		return m.statsCmd()
	}
	return nil
}

// refreshData copies the latest snapshots out of the backend and feed.
func (m *Model) refreshData() {
	if m.backend != nil {
		m.mine = m.backend.Dashboard()
		m.recommended = m.backend.Recommended()
		m.profile, m.hasProfile = m.backend.Profile()
		if m.detailID != "" {
			m.detail = m.backend.Match(m.detailID)
		}
	}
	if m.feed != nil {
		m.records = m.feed.List()
	}
	m.clampSelections()
}

func (m *Model) clampSelections() {
	if n := len(m.dashboardRows()); m.selectedRow >= n {
		m.selectedRow = max(n-1, 0)
	}
	if n := len(m.records); m.selectedNote >= n {
		m.selectedNote = max(n-1, 0)
	}
}

// openDetail shows one match and keeps it polled until closeDetail.
func (m *Model) openDetail(matchID string) {
	if m.detailID == matchID && m.detailRelease != nil {
		m.currentView = ViewDetail
		return
	}
	m.closeDetail()
	m.detailID = matchID
	if m.backend != nil {
		m.detailRelease = m.backend.Open(matchID)
		m.detail = m.backend.Match(matchID)
	}
	m.currentView = ViewDetail
}

func (m *Model) closeDetail() {
	if m.detailRelease != nil {
		m.detailRelease()
	}
	m.detailRelease = nil
	m.detailID = ""
	m.detail = state.Snapshot[unomas.Match]{}
	m.clearComments()
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = text
	m.flashIsErr = isErr
	m.flashAt = time.Now()
}

// currentFlash returns the last action outcome while it is fresh.
func (m Model) currentFlash() (string, bool) {
	if m.flash == "" || time.Since(m.flashAt) > flashLifetime {
		return "", false
	}
	return m.flash, m.flashIsErr
}

func (m *Model) handleActionDone(msg actionDoneMsg) {
	if msg.err == nil {
		text := strings.TrimSpace(msg.result.Message)
		if text == "" {
			text = actionVerb(msg.kind) + " done"
		}
		m.setFlash(text, false)
		return
	}
	m.setFlash(actionErrorText(msg.kind, msg.err), true)
}

func actionErrorText(kind action.Kind, err error) string {
	var failure *action.Failure
	switch {
	case errors.Is(err, action.ErrActionInProgress):
		return actionVerb(kind) + " already in progress"
	case errors.Is(err, action.ErrUnknownMatch):
		return "Match not loaded yet"
	case errors.As(err, &failure):
		return failure.Message
	default:
		return unomas.UserMessage(err)
	}
}

func actionVerb(kind action.Kind) string {
	switch kind {
	case action.KindJoin:
		return "Join"
	case action.KindConfirm:
		return "Confirmation"
	case action.KindChangeStatus:
		return "Status change"
	case action.KindStrategy:
		return "Strategy change"
	default:
		return string(kind)
	}
}

// Messages

type tickMsg time.Time

type actionDoneMsg struct {
	kind    action.Kind
	matchID string
	result  unomas.ActionResult
	err     error
}

type refreshDoneMsg struct{ err error }

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) actionCmd(kind action.Kind, matchID string, run func(context.Context) (unomas.ActionResult, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		res, err := run(ctx)
		return actionDoneMsg{kind: kind, matchID: matchID, result: res, err: err}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	if m.backend == nil {
		return nil
	}
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		return refreshDoneMsg{err: backend.Refresh(ctx)}
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or the
// context is cancelled.
func Run(opts Options) error {
	if opts.Backend == nil {
		return fmt.Errorf("ui requires a backend")
	}
	m := New(opts)
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(m.ctx),
	)
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.closeDetail()
	}
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
