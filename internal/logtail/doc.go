// Package logtail reads and parses cancha's own log file.
//
// # Overview
//
// The TUI owns the terminal, so cancha logs to a file through slog's text
// handler. The Logs view shows the tail of that file. This package does the
// two halves of that:
//
//  1. Read: extract the last N lines of a file without loading all of it
//  2. Parse/ParseLines: split slog text lines into time, level, message and
//     attributes, with level filtering
//
// # Reading Log Files
//
// Read keeps a ring buffer of maxLines entries and scans the file once, so
// memory stays O(maxLines) regardless of file size. Lines come back in file
// order. A non-positive maxLines returns the whole file.
//
//	lines, err := logtail.Read(cfg.LogFile, 400)
//	if err != nil {
//		return err
//	}
//	entries := logtail.ParseLines(lines, slog.LevelInfo)
//
// # Line Format
//
// Parse expects slog's text output:
//
//	time=2025-06-20T18:00:00.000-03:00 level=INFO msg="poll failed" store=matches key=42 failures=1
//
// Values may be bare or Go-quoted. Lines that do not carry any of time,
// level or msg are returned unparsed with the raw text as the message and
// level INFO, so stray output is still shown.
//
// # Error Handling
//
// Read returns nil, nil for a missing file. Other errors are wrapped.
// Parse never fails.
package logtail
