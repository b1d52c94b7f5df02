// Package push listens to a websocket relay of UnoMas push notifications
// and turns each one into an out-of-band refresh.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultBaseBackoff = 2 * time.Second
	maxBackoff         = 30 * time.Second
	handshakeTimeout   = 10 * time.Second
	maxMessageSize     = 16 * 1024
)

// Message is one push notification. MatchID is empty for notifications not
// tied to a match.
type Message struct {
	MatchID    string
	Kind       string
	Title      string
	Body       string
	ReceivedAt time.Time
}

// Handler reacts to a push. It runs on the listener goroutine.
type Handler func(ctx context.Context, msg Message)

// Listener keeps a websocket connection to the relay open, reconnecting
// with exponential backoff.
type Listener struct {
	url     string
	header  http.Header
	handler Handler
	dialer  *websocket.Dialer
	base    time.Duration
	log     *slog.Logger
}

// Option configures a Listener.
type Option func(*Listener)

// WithBaseBackoff sets the first reconnect delay.
func WithBaseBackoff(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.base = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) {
		if logger != nil {
			l.log = logger
		}
	}
}

// New validates the relay URL and builds a listener. http and https URLs
// are mapped to ws and wss.
func New(rawURL, token string, handler Handler, opts ...Option) (*Listener, error) {
	if handler == nil {
		return nil, errors.New("push handler is required")
	}
	target, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	l := &Listener{
		url:     target,
		header:  header,
		handler: handler,
		dialer:  &websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: http.ProxyFromEnvironment},
		base:    defaultBaseBackoff,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With("component", "push")
	return l, nil
}

// Run connects and dispatches messages until ctx is cancelled. It always
// returns ctx.Err().
func (l *Listener) Run(ctx context.Context) error {
	failures := 0
	for {
		connected, err := l.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			failures = 0
		}
		delay := calculateBackoff(failures, l.base)
		failures++
		l.log.Info("push relay disconnected, retrying", "error", err, "retry_in", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session runs one connection. connected reports whether the handshake
// succeeded.
func (l *Listener) session(ctx context.Context) (connected bool, err error) {
	conn, resp, err := l.dialer.DialContext(ctx, l.url, l.header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial %s: status %d: %w", l.url, resp.StatusCode, err)
		}
		return false, fmt.Errorf("dial %s: %w", l.url, err)
	}
	defer conn.Close()
	l.log.Info("push relay connected", "url", l.url)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.log.Warn("push relay closed unexpectedly", "error", err)
			}
			return true, err
		}
		msg, err := parseMessage(data)
		if err != nil {
			l.log.Warn("ignoring malformed push", "error", err)
			continue
		}
		msg.ReceivedAt = time.Now()
		l.log.Debug("push received", "match", msg.MatchID, "kind", msg.Kind)
		l.handler(ctx, msg)
	}
}

// calculateBackoff doubles base for each consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

type wirePush struct {
	PartidoID    json.RawMessage   `json:"partidoId"`
	Tipo         string            `json:"tipo"`
	Titulo       string            `json:"titulo"`
	Mensaje      string            `json:"mensaje"`
	Notification *wireNotification `json:"notification"`
	Data         map[string]any    `json:"data"`
}

type wireNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// parseMessage accepts the relay's flat form {partidoId, tipo, titulo,
// mensaje} and the raw FCM form {notification: {title, body}, data: {...}}.
func parseMessage(data []byte) (Message, error) {
	var w wirePush
	if err := json.Unmarshal(data, &w); err != nil {
		return Message{}, fmt.Errorf("decode push: %w", err)
	}
	msg := Message{
		MatchID: rawID(w.PartidoID),
		Kind:    w.Tipo,
		Title:   w.Titulo,
		Body:    w.Mensaje,
	}
	if w.Notification != nil {
		if msg.Title == "" {
			msg.Title = w.Notification.Title
		}
		if msg.Body == "" {
			msg.Body = w.Notification.Body
		}
	}
	if w.Data != nil {
		if msg.MatchID == "" {
			msg.MatchID = anyID(w.Data["partidoId"])
		}
		if msg.Kind == "" {
			if s, ok := w.Data["tipo"].(string); ok {
				msg.Kind = s
			}
		}
	}
	if msg.MatchID == "" && msg.Title == "" && msg.Body == "" {
		return Message{}, errors.New("push carries no match id or text")
	}
	return msg, nil
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return anyID(v)
}

func anyID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return ""
	}
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("push url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse push url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("push url %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("push url %q: missing host", raw)
	}
	return u.String(), nil
}
