package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit        key.Binding
	Help        key.Binding
	CycleTheme  key.Binding
	Tab         key.Binding
	ShiftTab    key.Binding
	Escape      key.Binding
	Refresh     key.Binding
	TogglePause key.Binding

	// View switching
	ViewDashboard     key.Binding
	ViewNotifications key.Binding
	ViewLogs          key.Binding
	ViewStats         key.Binding

	// Navigation
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding
	Open   key.Binding

	// Match actions
	Join         key.Binding
	Confirm      key.Binding
	ChangeStatus key.Binding
	Strategy     key.Binding
	ShowComments key.Binding
	WriteComment key.Binding

	// Notifications
	Dismiss     key.Binding
	MarkRead    key.Binding
	MarkAllRead key.Binding

	// Logs
	CycleLevel key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Cycle views"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Cycle views (reverse)"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Back"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh now"),
		),
		TogglePause: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "Pause/resume polling"),
		),

		ViewDashboard: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "Dashboard"),
		),
		ViewNotifications: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "Notifications"),
		),
		ViewLogs: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "Logs"),
		),
		ViewStats: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "Statistics"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Open match"),
		),

		Join: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "Join match"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Confirm participation"),
		),
		ChangeStatus: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Change status (organizer)"),
		),
		Strategy: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "Change strategy (organizer)"),
		),
		ShowComments: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "Show/hide comments"),
		),
		WriteComment: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "Rate a finished match"),
		),

		Dismiss: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Dismiss"),
		),
		MarkRead: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "Mark read"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("M"),
			key.WithHelp("M", "Mark all read"),
		),

		CycleLevel: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "Cycle level filter"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ViewDashboard, k.ViewNotifications, k.ViewLogs, k.ViewStats, k.Escape},
		{k.Up, k.Down, k.Top, k.Bottom, k.Open},
		{k.Join, k.Confirm, k.ChangeStatus, k.Strategy, k.ShowComments, k.WriteComment},
		{k.Dismiss, k.MarkRead, k.MarkAllRead},
		{k.CycleLevel},
		{k.Refresh, k.TogglePause, k.CycleTheme, k.Help, k.Quit},
	}
}
