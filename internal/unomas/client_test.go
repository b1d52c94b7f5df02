package unomas

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const matchJSON = `{
	"id": 7,
	"estado": "PARTIDO_ARMADO",
	"deporte": {"tipo": "FUTBOL", "nombre": "Futbol"},
	"cantidadJugadoresActual": 2,
	"cantidadJugadoresRequeridos": 2,
	"horario": "2025-06-20T18:00:00",
	"duracion": 90,
	"estrategiaEmparejamiento": "POR_NIVEL",
	"compatibilidad": 0.85,
	"ubicacion": {"direccion": " Av. Siempre Viva 742 ", "zona": "Centro"},
	"organizador": {"id": 1, "nombreUsuario": "ana"},
	"jugadores": [
		{"id": 1, "nombreUsuario": "ana", "nivelJuego": "AVANZADO"},
		{"id": "2", "nombreUsuario": "beto"}
	],
	"puedeUnirse": false
}`

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.String() != DefaultBaseURL+"/" {
		t.Fatalf("base = %q, want %q", u.String(), DefaultBaseURL+"/")
	}

	u, err = parseBaseURL("example.com:1234/api/v1?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" || u.Path != "/api/v1/" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}

	if _, err := parseBaseURL("http://"); err == nil {
		t.Fatalf("parseBaseURL without host returned nil error")
	}
}

func TestClient_FetchMatchDecodesPayload(t *testing.T) {
	t.Parallel()

	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(matchJSON))
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL+"/api/v1", "secret")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	m, err := c.FetchMatch(context.Background(), "7")
	if err != nil {
		t.Fatalf("FetchMatch returned error: %v", err)
	}
	if gotPath != "/api/v1/partidos/7" {
		t.Fatalf("path = %q, want /api/v1/partidos/7", gotPath)
	}
	if gotAuth != "" {
		t.Fatalf("Authorization = %q, want none on public endpoint", gotAuth)
	}
	if m.ID != "7" || m.Status != StatusAssembled || m.Strategy != StrategyByLevel {
		t.Fatalf("match = %#v", m)
	}
	if len(m.Roster) != 2 || !m.Roster[0].Organizer || m.Roster[1].Organizer || m.Roster[1].ID != "2" {
		t.Fatalf("roster = %#v, want organizer flagged first", m.Roster)
	}
	if m.Compatibility == nil || *m.Compatibility != 0.85 {
		t.Fatalf("compatibility = %v, want 0.85", m.Compatibility)
	}
	if m.Location.Address != "Av. Siempre Viva 742" {
		t.Fatalf("address = %q, want trimmed", m.Location.Address)
	}
	if m.ScheduledAt.Hour() != 18 || m.DurationMinutes != 90 {
		t.Fatalf("schedule = %v/%d", m.ScheduledAt, m.DurationMinutes)
	}
	if got := m.EndsAt().Sub(m.ScheduledAt); got != 90*time.Minute {
		t.Fatalf("EndsAt offset = %v, want 90m", got)
	}
	if len(m.Anomalies()) != 0 {
		t.Fatalf("Anomalies = %v, want none", m.Anomalies())
	}
}

func TestClient_AuthenticatedEndpoints(t *testing.T) {
	t.Parallel()

	var searchBody SearchCriteria
	var searchQuery string
	var statusBody StatusChange
	var strategyBody map[string]string
	var mu sync.Mutex
	auths := map[string]string{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auths[r.URL.Path] = r.Header.Get("Authorization")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/partidos/mis-partidos":
			_, _ = w.Write([]byte("[" + matchJSON + "]"))
		case "/partidos/buscar":
			searchQuery = r.URL.RawQuery
			_ = json.NewDecoder(r.Body).Decode(&searchBody)
			_, _ = w.Write([]byte(`{"content": [` + matchJSON + `], "totalElements": 1, "totalPages": 1, "number": 0}`))
		case "/usuarios/perfil":
			_, _ = w.Write([]byte(`{"id": 2, "nombreUsuario": "beto", "deporteFavorito": "FUTBOL"}`))
		case "/partidos/7/unirse":
			_, _ = w.Write([]byte(`{"mensaje": "Te uniste al partido"}`))
		case "/partidos/7/confirmar":
			_, _ = w.Write([]byte(matchJSON))
		case "/partidos/7/estado":
			if r.Method != http.MethodPut {
				http.Error(w, "bad method", http.StatusMethodNotAllowed)
				return
			}
			_ = json.NewDecoder(r.Body).Decode(&statusBody)
			_, _ = w.Write([]byte(`{"mensaje": "ok", "partido": ` + matchJSON + `}`))
		case "/partidos/7/estrategia":
			if r.Method != http.MethodPut {
				http.Error(w, "bad method", http.StatusMethodNotAllowed)
				return
			}
			_ = json.NewDecoder(r.Body).Decode(&strategyBody)
			_, _ = w.Write([]byte(`{"mensaje": "Estrategia actualizada"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, "secret")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	mine, err := c.FetchMyMatches(ctx)
	if err != nil || len(mine) != 1 || mine[0].ID != "7" {
		t.Fatalf("FetchMyMatches = %v, %v", mine, err)
	}

	page, err := c.SearchMatches(ctx, SearchCriteria{SportType: "FUTBOL", OnlyAvailable: true, SortBy: "compatibilidad", Order: "desc"}, 0, 5)
	if err != nil || len(page.Matches) != 1 || page.TotalElements != 1 {
		t.Fatalf("SearchMatches = %#v, %v", page, err)
	}
	if searchQuery != "page=0&size=5" {
		t.Fatalf("search query = %q, want page=0&size=5", searchQuery)
	}
	if searchBody.SportType != "FUTBOL" || !searchBody.OnlyAvailable || searchBody.SortBy != "compatibilidad" {
		t.Fatalf("search body = %#v", searchBody)
	}

	profile, err := c.FetchProfile(ctx)
	if err != nil || profile.ID != "2" || profile.FavoriteSport != "FUTBOL" {
		t.Fatalf("FetchProfile = %#v, %v", profile, err)
	}

	res, err := c.JoinMatch(ctx, "7")
	if err != nil || res.Message != "Te uniste al partido" || res.Match != nil {
		t.Fatalf("JoinMatch = %#v, %v", res, err)
	}

	res, err = c.ConfirmParticipation(ctx, "7")
	if err != nil || res.Match == nil || res.Match.ID != "7" {
		t.Fatalf("ConfirmParticipation = %#v, %v", res, err)
	}

	res, err = c.ChangeMatchStatus(ctx, "7", StatusChange{NewStatus: StatusCancelled, Reason: "lluvia"})
	if err != nil || res.Message != "ok" || res.Match == nil {
		t.Fatalf("ChangeMatchStatus = %#v, %v", res, err)
	}
	if statusBody.NewStatus != StatusCancelled || statusBody.Reason != "lluvia" {
		t.Fatalf("status body = %#v", statusBody)
	}

	res, err = c.ConfigureStrategy(ctx, "7", StrategyChange{Strategy: StrategyByProximity})
	if err != nil || res.Message != "Estrategia actualizada" {
		t.Fatalf("ConfigureStrategy = %#v, %v", res, err)
	}
	if strategyBody["estrategia"] != "POR_CERCANIA" {
		t.Fatalf("strategy body = %#v", strategyBody)
	}

	mu.Lock()
	defer mu.Unlock()
	for path, auth := range auths {
		if auth != "Bearer secret" {
			t.Fatalf("Authorization for %s = %q, want bearer token", path, auth)
		}
	}
}

func TestClient_ErrorMessages(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/partidos/1/unirse":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"mensaje": "El partido ya está completo"}`))
		case "/partidos/2/unirse":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error": "conflict"}`))
		case "/partidos/3/unirse":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`not json at all`))
		case "/partidos/4/unirse":
			w.WriteHeader(http.StatusBadGateway)
		case "/partidos/5":
			_, _ = w.Write([]byte(`{not-json`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, "t")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx := context.Background()

	cases := []struct {
		id        string
		message   string
		transient bool
	}{
		{"1", "El partido ya está completo", false},
		{"2", "conflict", false},
		{"3", "not json at all", false},
		{"4", "Error 502: Bad Gateway", true},
	}
	for _, tc := range cases {
		_, err := c.JoinMatch(ctx, tc.id)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("JoinMatch(%s) error = %v, want *APIError", tc.id, err)
		}
		if apiErr.Message != tc.message {
			t.Fatalf("JoinMatch(%s) message = %q, want %q", tc.id, apiErr.Message, tc.message)
		}
		if IsTransient(err) != tc.transient {
			t.Fatalf("IsTransient(%s) = %v, want %v", tc.id, IsTransient(err), tc.transient)
		}
		if UserMessage(err) != tc.message {
			t.Fatalf("UserMessage(%s) = %q, want %q", tc.id, UserMessage(err), tc.message)
		}
	}

	_, err = c.FetchMatch(ctx, "5")
	if !errors.Is(err, ErrMalformedResponse) || !strings.Contains(err.Error(), "decode response") {
		t.Fatalf("FetchMatch malformed error = %v, want decode response", err)
	}
	if !IsTransient(err) {
		t.Fatalf("malformed body should be transient")
	}
}

func TestClient_NetworkFailureIsTransient(t *testing.T) {
	c, err := NewClient("127.0.0.1:1", "", WithTimeout(500*time.Millisecond))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	_, err = c.FetchMatch(context.Background(), "1")
	if err == nil {
		t.Fatalf("FetchMatch returned nil error, want network error")
	}
	if !IsTransient(err) {
		t.Fatalf("network error should be transient: %v", err)
	}
	if UserMessage(err) != GenericNetworkMessage {
		t.Fatalf("UserMessage = %q, want generic network message", UserMessage(err))
	}
}

func TestClient_RequiresIDs(t *testing.T) {
	c, err := NewClient("", "")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := c.FetchMatch(context.Background(), " "); err == nil {
		t.Fatalf("FetchMatch blank id returned nil error")
	}
	if _, err := c.ChangeMatchStatus(context.Background(), "1", StatusChange{}); err == nil {
		t.Fatalf("ChangeMatchStatus without status returned nil error")
	}
	if _, err := c.ConfigureStrategy(context.Background(), "1", StrategyChange{Strategy: "AL_AZAR"}); err == nil {
		t.Fatalf("ConfigureStrategy with unknown strategy returned nil error")
	}
}

func TestDecodeActionResult_PlainText(t *testing.T) {
	res, err := decodeActionResult([]byte(`"listo"`))
	if err != nil || res.Message != "listo" {
		t.Fatalf("decodeActionResult = %#v, %v", res, err)
	}
	res, err = decodeActionResult([]byte(`hecho`))
	if err != nil || res.Message != "hecho" {
		t.Fatalf("decodeActionResult plain = %#v, %v", res, err)
	}
}

func TestErrorMessage_EmptyBody(t *testing.T) {
	if got := errorMessage(http.StatusNotFound, nil); got != "Error 404: Not Found" {
		t.Fatalf("errorMessage = %q", got)
	}
	if got := errorMessage(http.StatusBadRequest, []byte(`{}`)); got != "Error 400: Bad Request" {
		t.Fatalf("errorMessage empty object = %q", got)
	}
}
