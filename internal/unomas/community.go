package unomas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// MaxRating is the highest star rating a comment can carry.
const MaxRating = 5

// Stats is the platform-wide summary behind GET /estadisticas/generales.
type Stats struct {
	TotalUsers         int
	ActiveUsers        int
	TotalMatches       int
	ActiveMatches      int
	AvgPlayersPerMatch float64
	MostPopularSport   string
	UsersBySport       []Count
	UsersByLevel       []Count
	MatchesByStatus    []Count
}

// Count is one bucket of a breakdown, such as users per sport.
type Count struct {
	Key   string
	Value int
}

// Comment is a rating left on a finished match.
type Comment struct {
	ID        string
	Author    string
	Text      string
	Rating    int
	CreatedAt time.Time
}

// NewComment mirrors the body of POST /partidos/{id}/comentar.
type NewComment struct {
	Text   string `json:"comentario"`
	Rating int    `json:"calificacion"`
}

// FetchGeneralStats retrieves the platform statistics.
func (c *Client) FetchGeneralStats(ctx context.Context) (Stats, error) {
	if c == nil {
		return Stats{}, fmt.Errorf("client is nil")
	}
	var payload statsPayload
	if err := c.do(ctx, http.MethodGet, "/estadisticas/generales", nil, true, &payload); err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalUsers:         payload.TotalUsers,
		ActiveUsers:        payload.ActiveUsers,
		TotalMatches:       payload.TotalMatches,
		ActiveMatches:      payload.ActiveMatches,
		AvgPlayersPerMatch: payload.AvgPlayersPerMatch,
		MostPopularSport:   strings.TrimSpace(payload.MostPopularSport),
		UsersBySport:       sortedCounts(payload.UsersBySport),
		UsersByLevel:       sortedCounts(payload.UsersByLevel),
		MatchesByStatus:    sortedCounts(payload.MatchesByStatus),
	}, nil
}

// FetchComments retrieves the comments left on a match, newest first. The
// endpoint answers with a page; a bare array is accepted too.
func (c *Client) FetchComments(ctx context.Context, matchID string) ([]Comment, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return nil, fmt.Errorf("match id required")
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/comentarios/partido/"+url.PathEscape(matchID), nil, true, &raw); err != nil {
		return nil, err
	}
	items, err := decodeCommentItems(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	out := make([]Comment, 0, len(items))
	for _, item := range items {
		out = append(out, item.toComment())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// AddComment rates a finished match. The rating must be between 1 and
// MaxRating.
func (c *Client) AddComment(ctx context.Context, matchID string, comment NewComment) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return fmt.Errorf("match id required")
	}
	comment.Text = strings.TrimSpace(comment.Text)
	if comment.Text == "" {
		return fmt.Errorf("comment text required")
	}
	if comment.Rating < 1 || comment.Rating > MaxRating {
		return fmt.Errorf("rating %d out of range 1-%d", comment.Rating, MaxRating)
	}
	return c.do(ctx, http.MethodPost, "/partidos/"+url.PathEscape(matchID)+"/comentar", comment, true, nil)
}

type statsPayload struct {
	TotalUsers         int            `json:"totalUsuarios"`
	ActiveUsers        int            `json:"usuariosActivos"`
	TotalMatches       int            `json:"totalPartidos"`
	ActiveMatches      int            `json:"partidosActivos"`
	AvgPlayersPerMatch float64        `json:"promedioJugadoresPorPartido"`
	MostPopularSport   string         `json:"deporteMasPopular"`
	UsersBySport       map[string]int `json:"usuariosPorDeporte"`
	UsersByLevel       map[string]int `json:"usuariosPorNivel"`
	MatchesByStatus    map[string]int `json:"partidosPorEstado"`
}

type commentPayload struct {
	ID        flexID `json:"id"`
	Author    string `json:"usuarioNombre"`
	Text      string `json:"comentario"`
	Rating    int    `json:"calificacion"`
	CreatedAt string `json:"fechaCreacion"`
}

func (p commentPayload) toComment() Comment {
	rating := p.Rating
	if rating < 0 {
		rating = 0
	}
	if rating > MaxRating {
		rating = MaxRating
	}
	return Comment{
		ID:        string(p.ID),
		Author:    strings.TrimSpace(p.Author),
		Text:      strings.TrimSpace(p.Text),
		Rating:    rating,
		CreatedAt: parseTime(p.CreatedAt),
	}
}

func decodeCommentItems(raw json.RawMessage) ([]commentPayload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var items []commentPayload
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var page struct {
		Content []commentPayload `json:"content"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, err
	}
	return page.Content, nil
}

// sortedCounts orders a breakdown by value, largest first, then by key.
func sortedCounts(m map[string]int) []Count {
	if len(m) == 0 {
		return nil
	}
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Key < out[j].Key
	})
	return out
}
