// Package config loads cancha's configuration file.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/cancha/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing or empty, use defaults
//  5. UNOMAS_API_URL, UNOMAS_TOKEN and UNOMAS_PUSH_URL override the file
//
// Before reading, a .env file in the working directory or next to the
// config file is loaded. Variables already present in the environment win.
// ${VAR} references inside the file are expanded.
//
// # Formats
//
// Files ending in .yaml or .yml are parsed as YAML; everything else as TOML.
// Both use the same keys:
//
//	api_url = "http://localhost:8080/api/v1"
//	token = "${UNOMAS_TOKEN}"
//	push_url = "ws://localhost:9090/push"
//	log_file = "~/.local/state/cancha/cancha.log"
//	log_level = "info"
//	fetch_timeout = "30s"
//	stale_after = 3
//	recommendation_budget = 3
//
//	[cadence]
//	match_detail = "30s"
//	dashboard = "45s"
//	notifications = "30s"
//	recommendations = "45s"
//
//	[scoring]
//	enabled = true
//	base = 0.4
//	favorite_sport = 0.3
//	level = 0.2
//
// Durations use Go syntax and must be positive. Tilde expansion is applied
// to log_file.
//
// # Errors
//
// Load returns errors for path expansion failures, read errors other than
// a missing file, parse errors, and invalid durations. A missing file is
// not an error.
package config
