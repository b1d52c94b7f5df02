// Package ui provides the terminal user interface for cancha.
//
// # Architecture Overview
//
// The UI is a Bubble Tea program (charmbracelet/bubbletea) styled with
// lipgloss. Model holds all view state; it never talks to the API directly
// but reads snapshots from a Backend (implemented by app.Session) and acts
// through it. Reads happen on a one second tick, so slow polls never block
// rendering.
//
// # Package Structure
//
//   - app.go: Model, Options, Backend, Update/View and Run
//   - dashboard.go: the user's matches and recommendations
//   - detail.go: one match with roster, in-flight actions and action keys
//   - modal.go: organizer status and strategy pickers (bubbles/textinput)
//   - community.go: statistics view, match comments and the rating modal
//   - notifications.go: the derived notification feed
//   - logs.go: tail of cancha's own log file (bubbles/viewport)
//   - header.go: status bar and command bar
//   - help.go, keys.go: help overlay built from the bubbles/key map
//   - theme.go, layout.go, helpers.go: colors, widths, formatting
//
// # Views
//
//   - Dashboard: my matches, then recommended matches I have not joined
//   - Detail: the selected match, polled at the match-detail cadence while
//     open. Optimistic values are marked "waiting for server"
//   - Notifications: HIGH first, newest first within a priority
//   - Logs: parsed slog lines with a level filter
//   - Stats: platform statistics, fetched when the view is entered
//
// # Polling and Focus
//
// The program runs with focus reporting. FocusMsg and BlurMsg feed
// policy.Policy.SetVisible, and "p" toggles the manual pause, so polling
// stops while the terminal is in the background and resumes with an
// immediate refresh.
//
// # Actions
//
// Join, confirm, change status and change strategy run as tea.Cmds
// through the Backend. The outcome (server message, rejection reason, or
// the generic network message) is flashed in the header. A second press
// while the same action is in flight reports "already in progress" without
// another request. Comments and statistics are plain requests, not
// optimistic actions.
package ui
