package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-logfmt/logfmt"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file yields no lines.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Attr is one key=value pair of a log line.
type Attr struct {
	Key   string
	Value string
}

// Entry is a parsed slog text line.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   []Attr
	Raw     string
	Parsed  bool // false when the line was not in key=value form
}

// Attr returns the value of key, if present.
func (e Entry) Attr(key string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Parse decodes a line written by slog's text handler. Lines in any other
// format, including malformed logfmt, are returned with Parsed false and
// the raw text as Message.
func Parse(line string) Entry {
	raw := Entry{Raw: line, Message: line, Level: slog.LevelInfo}
	entry := Entry{Raw: line, Level: slog.LevelInfo}

	dec := logfmt.NewDecoder(strings.NewReader(line))
	if !dec.ScanRecord() {
		return raw
	}
	seen := false
	for dec.ScanKeyval() {
		key, value := string(dec.Key()), string(dec.Value())
		switch key {
		case slog.TimeKey:
			if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
				entry.Time = ts
			}
			seen = true
		case slog.LevelKey:
			var lvl slog.Level
			if err := lvl.UnmarshalText([]byte(value)); err == nil {
				entry.Level = lvl
			}
			seen = true
		case slog.MessageKey:
			entry.Message = value
			seen = true
		default:
			entry.Attrs = append(entry.Attrs, Attr{Key: key, Value: value})
		}
	}
	if dec.Err() != nil || !seen {
		return raw
	}
	entry.Parsed = true
	return entry
}

// ParseLines parses each line and keeps those at or above min.
func ParseLines(lines []string, min slog.Level) []Entry {
	out := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		e := Parse(line)
		if e.Level < min {
			continue
		}
		out = append(out, e)
	}
	return out
}
