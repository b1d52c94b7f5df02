package unomas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// MatchAPI is the subset of the UnoMas API the sync layer consumes.
// It is implemented by *Client and can be faked in tests.
type MatchAPI interface {
	FetchMatch(ctx context.Context, id string) (Match, error)
	FetchMyMatches(ctx context.Context) ([]Match, error)
	SearchMatches(ctx context.Context, criteria SearchCriteria, page, size int) (Page, error)
	FetchProfile(ctx context.Context) (Profile, error)
	JoinMatch(ctx context.Context, id string) (ActionResult, error)
	ConfirmParticipation(ctx context.Context, id string) (ActionResult, error)
	ChangeMatchStatus(ctx context.Context, id string, change StatusChange) (ActionResult, error)
	ConfigureStrategy(ctx context.Context, id string, change StrategyChange) (ActionResult, error)
}

// CommunityAPI covers the read-mostly community endpoints: platform
// statistics and post-match comments. Nothing here is polled.
type CommunityAPI interface {
	FetchGeneralStats(ctx context.Context) (Stats, error)
	FetchComments(ctx context.Context, matchID string) ([]Comment, error)
	AddComment(ctx context.Context, matchID string, comment NewComment) error
}

// Ensure Client implements both APIs at compile time.
var (
	_ MatchAPI     = (*Client)(nil)
	_ CommunityAPI = (*Client)(nil)
)

// Client talks to the UnoMas HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	token     string
	userAgent string
}

const (
	DefaultBaseURL   = "http://localhost:8080/api/v1"
	DefaultTimeout   = 30 * time.Second
	defaultUserAgent = "cancha/0.1"
	maxErrorBody     = 64 * 1024
)

// Option customizes a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient builds a Client for the versioned API base URL. The token is
// sent as a bearer credential on authenticated calls.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: DefaultTimeout},
		token:     strings.TrimSpace(token),
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// HasToken reports whether authenticated endpoints can be called.
func (c *Client) HasToken() bool {
	return c != nil && c.token != ""
}

// FetchMatch retrieves one match. The endpoint is public.
func (c *Client) FetchMatch(ctx context.Context, id string) (Match, error) {
	if c == nil {
		return Match{}, fmt.Errorf("client is nil")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Match{}, fmt.Errorf("match id required")
	}
	var payload matchPayload
	if err := c.do(ctx, http.MethodGet, "/partidos/"+url.PathEscape(id), nil, false, &payload); err != nil {
		return Match{}, err
	}
	m, err := payload.toMatch()
	if err != nil {
		return Match{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return m, nil
}

// FetchMyMatches retrieves the matches the user organizes or plays in.
func (c *Client) FetchMyMatches(ctx context.Context) ([]Match, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload []matchPayload
	if err := c.do(ctx, http.MethodGet, "/partidos/mis-partidos", nil, true, &payload); err != nil {
		return nil, err
	}
	matches, err := decodeMatches(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return matches, nil
}

// SearchMatches runs a paged search.
func (c *Client) SearchMatches(ctx context.Context, criteria SearchCriteria, page, size int) (Page, error) {
	if c == nil {
		return Page{}, fmt.Errorf("client is nil")
	}
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 10
	}
	values := url.Values{}
	values.Set("page", strconv.Itoa(page))
	values.Set("size", strconv.Itoa(size))
	rel := &url.URL{Path: "partidos/buscar", RawQuery: values.Encode()}

	var payload pagePayload
	if err := c.doURL(ctx, http.MethodPost, rel, criteria, true, &payload); err != nil {
		return Page{}, err
	}
	matches, err := decodeMatches(payload.Content)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return Page{
		Matches:       matches,
		TotalElements: payload.TotalElements,
		TotalPages:    payload.TotalPages,
		Number:        payload.Number,
	}, nil
}

// FetchProfile retrieves the authenticated user's profile.
func (c *Client) FetchProfile(ctx context.Context) (Profile, error) {
	if c == nil {
		return Profile{}, fmt.Errorf("client is nil")
	}
	var payload profilePayload
	if err := c.do(ctx, http.MethodGet, "/usuarios/perfil", nil, true, &payload); err != nil {
		return Profile{}, err
	}
	return Profile{
		ID:            string(payload.ID),
		Username:      strings.TrimSpace(payload.Username),
		Email:         strings.TrimSpace(payload.Email),
		Level:         strings.TrimSpace(payload.Level),
		FavoriteSport: strings.TrimSpace(payload.FavoriteSport),
	}, nil
}

// JoinMatch adds the user to a match.
func (c *Client) JoinMatch(ctx context.Context, id string) (ActionResult, error) {
	return c.mutate(ctx, http.MethodPost, id, "unirse", nil)
}

// ConfirmParticipation confirms the user's place in an assembled match.
func (c *Client) ConfirmParticipation(ctx context.Context, id string) (ActionResult, error) {
	return c.mutate(ctx, http.MethodPost, id, "confirmar", nil)
}

// ChangeMatchStatus moves a match to a new status.
func (c *Client) ChangeMatchStatus(ctx context.Context, id string, change StatusChange) (ActionResult, error) {
	if change.NewStatus == "" {
		return ActionResult{}, fmt.Errorf("new status required")
	}
	return c.mutate(ctx, http.MethodPut, id, "estado", change)
}

// ConfigureStrategy changes how the server matches players into a match.
func (c *Client) ConfigureStrategy(ctx context.Context, id string, change StrategyChange) (ActionResult, error) {
	if !change.Strategy.Valid() {
		return ActionResult{}, fmt.Errorf("unknown strategy %q", change.Strategy)
	}
	return c.mutate(ctx, http.MethodPut, id, "estrategia", change)
}

func (c *Client) mutate(ctx context.Context, method, id, verb string, body any) (ActionResult, error) {
	if c == nil {
		return ActionResult{}, fmt.Errorf("client is nil")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ActionResult{}, fmt.Errorf("match id required")
	}
	var raw json.RawMessage
	path := "/partidos/" + url.PathEscape(id) + "/" + verb
	if err := c.do(ctx, method, path, body, true, &raw); err != nil {
		return ActionResult{}, err
	}
	return decodeActionResult(raw)
}

func decodeActionResult(raw json.RawMessage) (ActionResult, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ActionResult{}, nil
	}
	if raw[0] == '"' {
		var msg string
		if err := json.Unmarshal(raw, &msg); err == nil {
			return ActionResult{Message: strings.TrimSpace(msg)}, nil
		}
	}
	var envelope struct {
		matchPayload
		Message string        `json:"mensaje"`
		Partido *matchPayload `json:"partido"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		// Plain-text success bodies are still successes.
		return ActionResult{Message: strings.TrimSpace(string(raw))}, nil
	}
	result := ActionResult{Message: strings.TrimSpace(envelope.Message)}
	switch {
	case envelope.Partido != nil:
		if m, err := envelope.Partido.toMatch(); err == nil {
			result.Match = &m
		}
	case envelope.matchPayload.ID != "":
		if m, err := envelope.matchPayload.toMatch(); err == nil {
			result.Match = &m
		}
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, auth bool, dest any) error {
	rel := &url.URL{Path: strings.TrimPrefix(path, "/")}
	return c.doURL(ctx, method, rel, body, auth, dest)
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, body any, auth bool, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Status:  resp.StatusCode,
			Message: errorMessage(resp.StatusCode, errBody),
			Path:    rel.Path,
		}
	}
	if dest == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if raw, ok := dest.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode response: %w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api url %q: missing host", raw)
	}
	// Relative references resolve under the versioned base path.
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
