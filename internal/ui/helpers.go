package ui

import (
	"fmt"
	"strings"
	"time"
)

func humanizeDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// formatStart renders a kickoff time relative to now for list rows.
func formatStart(start, now time.Time) string {
	if start.IsZero() {
		return "TBD"
	}
	d := start.Sub(now)
	switch {
	case d < -time.Minute:
		return "started " + humanizeDuration(-d) + " ago"
	case d < time.Minute:
		return "now"
	case d < 24*time.Hour:
		return "in " + humanizeDuration(d)
	default:
		return start.Local().Format("Mon 02 15:04")
	}
}

// formatWhen renders a kickoff time with both the date and the relative
// offset.
func formatWhen(start, now time.Time) string {
	if start.IsZero() {
		return "to be scheduled"
	}
	return start.Local().Format("Mon 02 Jan 15:04") + " (" + formatStart(start, now) + ")"
}

// truncate truncates a string to max runes with an ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}

func padRight(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
