// Package app is the composition root of cancha.
//
// # Overview
//
// This package wires configuration, logging, the UnoMas API client, the
// polled stores, the notification feed, the action coordinator, the
// polling policy, the optional push listener and the UI into one running
// program.
//
// # Startup
//
//  1. Load config from ~/.config/cancha/config.toml (plus .env and
//     UNOMAS_* overrides)
//  2. Open the slog text log file; the TUI owns the terminal
//  3. Load UI preferences
//  4. Build the API client and a Session around it
//  5. Apply the -poll override to the policy, then Session.Start
//  6. Start the push listener when push_url is set
//  7. Run the TUI until the user quits or the context is cancelled
//
// # Data Flow
//
//	┌───────────────┐  ticks / Refresh   ┌──────────────────────┐
//	│ state.Store   │ ─────────────────> │ unomas.Client        │
//	│  matches      │ <───────────────── │  GET /partidos/...   │
//	│  lists        │      snapshots     └──────────────────────┘
//	└──────┬────────┘
//	       │ OnChange (authoritative)
//	       v
//	┌───────────────┐   Sweep (clock)    ┌──────────────────────┐
//	│ notify.Feed   │ <───────────────── │ StartSweeper         │
//	└──────┬────────┘                    └──────────────────────┘
//	       │ List / Unread
//	       v
//	┌───────────────┐  Join / Confirm    ┌──────────────────────┐
//	│ ui.Model      │ ─────────────────> │ action.Coordinator   │
//	└───────────────┘                    └──────────────────────┘
//
// The "mine" list feeds ObserveList, each opened match feeds Observe, and
// the "recommended" search results are scored into SetRecommendations.
// Push messages refresh the named match and the dashboard.
//
// # Pausing
//
// policy.Policy combines terminal focus and the manual pause key. Its
// transitions pause or resume both stores; resuming refreshes every polled
// key at once. The sweeper skips while paused.
//
// # Error Handling
//
// Fatal errors (returned from Run): unreadable config, log file that cannot
// be opened, invalid API or push URL, invalid -poll value. Everything after
// startup is recoverable: poll failures are recorded in snapshots and
// logged, action failures are returned to the UI as *action.Failure.
package app
