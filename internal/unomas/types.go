package unomas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// localTimestampLayout is the zone-less ISO layout the API emits for
// LocalDateTime fields.
const localTimestampLayout = "2006-01-02T15:04:05"

// Status is the lifecycle state of a match as reported by the API.
type Status string

const (
	StatusSeekingPlayers Status = "NECESITAMOS_JUGADORES"
	StatusAssembled      Status = "PARTIDO_ARMADO"
	StatusConfirmed      Status = "CONFIRMADO"
	StatusInProgress     Status = "EN_JUEGO"
	StatusFinished       Status = "FINALIZADO"
	StatusCancelled      Status = "CANCELADO"
)

// Label returns a short human label for the status.
func (s Status) Label() string {
	switch s {
	case StatusSeekingPlayers:
		return "Seeking players"
	case StatusAssembled:
		return "Assembled"
	case StatusConfirmed:
		return "Confirmed"
	case StatusInProgress:
		return "In progress"
	case StatusFinished:
		return "Finished"
	case StatusCancelled:
		return "Cancelled"
	default:
		if s == "" {
			return "Unknown"
		}
		return string(s)
	}
}

// Active reports whether the match has not reached a terminal state.
func (s Status) Active() bool {
	switch s {
	case StatusSeekingPlayers, StatusAssembled, StatusConfirmed, StatusInProgress:
		return true
	default:
		return false
	}
}

// Strategy is the server-chosen matching strategy.
type Strategy string

const (
	StrategyByLevel     Strategy = "POR_NIVEL"
	StrategyByProximity Strategy = "POR_CERCANIA"
	StrategyByHistory   Strategy = "POR_HISTORIAL"
)

// Label returns a short human label for the strategy.
func (s Strategy) Label() string {
	switch s {
	case StrategyByLevel:
		return "By level"
	case StrategyByProximity:
		return "By proximity"
	case StrategyByHistory:
		return "By history"
	default:
		return string(s)
	}
}

// Strategies lists the known strategies in display order.
var Strategies = []Strategy{StrategyByLevel, StrategyByProximity, StrategyByHistory}

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	for _, known := range Strategies {
		if s == known {
			return true
		}
	}
	return false
}

// Player is one roster entry.
type Player struct {
	ID            string
	Username      string
	Level         string
	FavoriteSport string
	Organizer     bool
}

// Location describes where a match is played.
type Location struct {
	Address   string
	Zone      string
	Latitude  *float64
	Longitude *float64
}

// Sport identifies the sport of a match.
type Sport struct {
	Type string
	Name string
}

// Match is an immutable point-in-time view of a match. Callers must treat
// the Roster slice as read-only; use Clone before modifying.
type Match struct {
	ID              string
	Status          Status
	Sport           Sport
	CurrentPlayers  int
	RequiredPlayers int
	ScheduledAt     time.Time
	DurationMinutes int
	Strategy        Strategy
	Compatibility   *float64
	Location        Location
	Roster          []Player
	CanJoin         bool
	CreatedAt       time.Time
}

// EndsAt returns the scheduled end of the match.
func (m Match) EndsAt() time.Time {
	return m.ScheduledAt.Add(time.Duration(m.DurationMinutes) * time.Minute)
}

// SportName returns the display name of the sport, falling back to its type.
func (m Match) SportName() string {
	if m.Sport.Name != "" {
		return m.Sport.Name
	}
	if m.Sport.Type != "" {
		return m.Sport.Type
	}
	return "Match"
}

// HasPlayer reports whether the given user is on the roster.
func (m Match) HasPlayer(userID string) bool {
	if userID == "" {
		return false
	}
	for _, p := range m.Roster {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// Organizer returns the flagged organizer, if any.
func (m Match) Organizer() (Player, bool) {
	for _, p := range m.Roster {
		if p.Organizer {
			return p, true
		}
	}
	return Player{}, false
}

// Anomalies lists server-side invariant violations the client tolerates.
func (m Match) Anomalies() []string {
	var out []string
	if m.CurrentPlayers != len(m.Roster) {
		out = append(out, fmt.Sprintf("player count %d does not match roster size %d", m.CurrentPlayers, len(m.Roster)))
	}
	if m.RequiredPlayers > 0 && m.CurrentPlayers > m.RequiredPlayers {
		out = append(out, fmt.Sprintf("player count %d exceeds required %d", m.CurrentPlayers, m.RequiredPlayers))
	}
	return out
}

// Clone returns a deep copy.
func (m Match) Clone() Match {
	dup := m
	if m.Roster != nil {
		dup.Roster = make([]Player, len(m.Roster))
		copy(dup.Roster, m.Roster)
	}
	dup.Compatibility = cloneFloat(m.Compatibility)
	dup.Location.Latitude = cloneFloat(m.Location.Latitude)
	dup.Location.Longitude = cloneFloat(m.Location.Longitude)
	return dup
}

// Equal compares every field of two snapshots.
func (m Match) Equal(o Match) bool {
	if m.ID != o.ID ||
		m.Status != o.Status ||
		m.Sport != o.Sport ||
		m.CurrentPlayers != o.CurrentPlayers ||
		m.RequiredPlayers != o.RequiredPlayers ||
		!m.ScheduledAt.Equal(o.ScheduledAt) ||
		m.DurationMinutes != o.DurationMinutes ||
		m.Strategy != o.Strategy ||
		!floatPtrEqual(m.Compatibility, o.Compatibility) ||
		m.Location.Address != o.Location.Address ||
		m.Location.Zone != o.Location.Zone ||
		!floatPtrEqual(m.Location.Latitude, o.Location.Latitude) ||
		!floatPtrEqual(m.Location.Longitude, o.Location.Longitude) ||
		m.CanJoin != o.CanJoin ||
		!m.CreatedAt.Equal(o.CreatedAt) ||
		len(m.Roster) != len(o.Roster) {
		return false
	}
	for i := range m.Roster {
		if m.Roster[i] != o.Roster[i] {
			return false
		}
	}
	return true
}

// MatchesEqual compares two match lists element by element, in order.
func MatchesEqual(a, b []Match) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// CloneMatches deep-copies a match list.
func CloneMatches(items []Match) []Match {
	if len(items) == 0 {
		return nil
	}
	dup := make([]Match, len(items))
	for i, m := range items {
		dup[i] = m.Clone()
	}
	return dup
}

// Profile is the authenticated user's profile.
type Profile struct {
	ID            string
	Username      string
	Email         string
	Level         string
	FavoriteSport string
}

// Player returns the profile as a roster entry.
func (p Profile) Player() Player {
	return Player{ID: p.ID, Username: p.Username, Level: p.Level, FavoriteSport: p.FavoriteSport}
}

// SearchCriteria mirrors the body of POST /partidos/buscar.
type SearchCriteria struct {
	SportType     string `json:"tipoDeporte,omitempty"`
	Zone          string `json:"zona,omitempty"`
	OnlyAvailable bool   `json:"soloDisponibles"`
	SortBy        string `json:"ordenarPor,omitempty"`
	Order         string `json:"orden,omitempty"`
}

// Page is one page of search results.
type Page struct {
	Matches       []Match
	TotalElements int
	TotalPages    int
	Number        int
}

// ActionResult is what a mutation endpoint returned: an updated snapshot,
// a message, or both.
type ActionResult struct {
	Match   *Match
	Message string
}

// StatusChange mirrors the body of PUT /partidos/{id}/estado.
type StatusChange struct {
	NewStatus Status `json:"nuevoEstado"`
	Reason    string `json:"motivo"`
}

// StrategyChange mirrors the body of PUT /partidos/{id}/estrategia.
type StrategyChange struct {
	Strategy Strategy `json:"estrategia"`
}

// Wire payloads.

// flexID accepts both numeric and string identifiers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type playerPayload struct {
	ID            flexID `json:"id"`
	Username      string `json:"nombreUsuario"`
	Level         string `json:"nivelJuego"`
	FavoriteSport string `json:"deporteFavorito"`
}

type locationPayload struct {
	Address   string   `json:"direccion"`
	Zone      string   `json:"zona"`
	Latitude  *float64 `json:"latitud"`
	Longitude *float64 `json:"longitud"`
}

type sportPayload struct {
	Type string `json:"tipo"`
	Name string `json:"nombre"`
}

type matchPayload struct {
	ID              flexID          `json:"id"`
	Status          Status          `json:"estado"`
	Sport           *sportPayload   `json:"deporte"`
	CurrentPlayers  int             `json:"cantidadJugadoresActual"`
	RequiredPlayers int             `json:"cantidadJugadoresRequeridos"`
	ScheduledAt     string          `json:"horario"`
	DurationMinutes int             `json:"duracion"`
	Strategy        Strategy        `json:"estrategiaEmparejamiento"`
	Compatibility   *float64        `json:"compatibilidad"`
	Location        locationPayload `json:"ubicacion"`
	Players         []playerPayload `json:"jugadores"`
	Organizer       *playerPayload  `json:"organizador"`
	CanJoin         bool            `json:"puedeUnirse"`
	CreatedAt       string          `json:"createdAt"`
}

func (p matchPayload) toMatch() (Match, error) {
	if p.ID == "" {
		return Match{}, fmt.Errorf("match payload missing id")
	}
	m := Match{
		ID:              string(p.ID),
		Status:          Status(strings.TrimSpace(string(p.Status))),
		CurrentPlayers:  p.CurrentPlayers,
		RequiredPlayers: p.RequiredPlayers,
		ScheduledAt:     parseTime(p.ScheduledAt),
		DurationMinutes: p.DurationMinutes,
		Strategy:        Strategy(strings.TrimSpace(string(p.Strategy))),
		Compatibility:   p.Compatibility,
		Location: Location{
			Address:   strings.TrimSpace(p.Location.Address),
			Zone:      strings.TrimSpace(p.Location.Zone),
			Latitude:  p.Location.Latitude,
			Longitude: p.Location.Longitude,
		},
		CanJoin:   p.CanJoin,
		CreatedAt: parseTime(p.CreatedAt),
	}
	if p.Sport != nil {
		m.Sport = Sport{Type: p.Sport.Type, Name: p.Sport.Name}
	}
	organizerID := ""
	if p.Organizer != nil {
		organizerID = string(p.Organizer.ID)
	}
	seenOrganizer := false
	for _, pl := range p.Players {
		player := pl.toPlayer()
		if organizerID != "" && player.ID == organizerID {
			player.Organizer = true
			seenOrganizer = true
		}
		m.Roster = append(m.Roster, player)
	}
	// The organizer plays but is not always listed in jugadores.
	if p.Organizer != nil && organizerID != "" && !seenOrganizer && len(m.Roster) < m.CurrentPlayers {
		org := p.Organizer.toPlayer()
		org.Organizer = true
		m.Roster = append([]Player{org}, m.Roster...)
	}
	return m, nil
}

func (p playerPayload) toPlayer() Player {
	return Player{
		ID:            string(p.ID),
		Username:      strings.TrimSpace(p.Username),
		Level:         strings.TrimSpace(p.Level),
		FavoriteSport: strings.TrimSpace(p.FavoriteSport),
	}
}

type pagePayload struct {
	Content       []matchPayload `json:"content"`
	TotalElements int            `json:"totalElements"`
	TotalPages    int            `json:"totalPages"`
	Number        int            `json:"number"`
}

type profilePayload struct {
	ID            flexID `json:"id"`
	Username      string `json:"nombreUsuario"`
	Email         string `json:"email"`
	Level         string `json:"nivelJuego"`
	FavoriteSport string `json:"deporteFavorito"`
}

func decodeMatches(items []matchPayload) ([]Match, error) {
	out := make([]Match, 0, len(items))
	for i, item := range items {
		m, err := item.toMatch()
		if err != nil {
			return nil, fmt.Errorf("match %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	for _, layout := range []string{localTimestampLayout + ".999999999", localTimestampLayout} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t
		}
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.UnixMilli(ms)
	}
	return time.Time{}
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	dup := *v
	return &dup
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
