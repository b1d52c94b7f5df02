package unomas

import (
	"encoding/json"
	"testing"
	"time"
)

func sampleMatch() Match {
	score := 0.9
	return Match{
		ID:              "7",
		Status:          StatusSeekingPlayers,
		CurrentPlayers:  2,
		RequiredPlayers: 4,
		ScheduledAt:     time.Date(2025, 6, 20, 18, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Strategy:        StrategyByProximity,
		Compatibility:   &score,
		Roster:          []Player{{ID: "1", Username: "ana", Organizer: true}, {ID: "2", Username: "beto"}},
	}
}

func TestMatch_EqualComparesAllFields(t *testing.T) {
	a := sampleMatch()
	b := a.Clone()
	if !a.Equal(b) {
		t.Fatalf("clone should be equal")
	}

	b.Roster[1].Level = "AVANZADO"
	if a.Equal(b) {
		t.Fatalf("roster change should break equality")
	}
	if a.Roster[1].Level != "" {
		t.Fatalf("Clone should deep-copy roster")
	}

	c := a.Clone()
	other := 0.9
	c.Compatibility = &other
	if !a.Equal(c) {
		t.Fatalf("equal compatibility values behind different pointers should be equal")
	}
	c.Compatibility = nil
	if a.Equal(c) {
		t.Fatalf("nil vs set compatibility should differ")
	}

	d := a.Clone()
	d.CurrentPlayers = 3
	if a.Equal(d) {
		t.Fatalf("player count change should break equality")
	}
}

func TestMatchesEqual(t *testing.T) {
	a := []Match{sampleMatch()}
	if !MatchesEqual(a, CloneMatches(a)) {
		t.Fatalf("cloned list should be equal")
	}
	if MatchesEqual(a, nil) {
		t.Fatalf("lists of different length should differ")
	}
}

func TestMatch_Anomalies(t *testing.T) {
	m := sampleMatch()
	m.CurrentPlayers = 5
	got := m.Anomalies()
	if len(got) != 2 {
		t.Fatalf("Anomalies = %v, want roster mismatch and overflow", got)
	}
}

func TestMatch_HasPlayerAndOrganizer(t *testing.T) {
	m := sampleMatch()
	if !m.HasPlayer("2") || m.HasPlayer("9") || m.HasPlayer("") {
		t.Fatalf("HasPlayer mismatch")
	}
	org, ok := m.Organizer()
	if !ok || org.ID != "1" {
		t.Fatalf("Organizer = %#v, %v", org, ok)
	}
}

func TestFlexID(t *testing.T) {
	var payload struct {
		A flexID `json:"a"`
		B flexID `json:"b"`
		C flexID `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 12, "b": " x9 ", "c": null}`), &payload); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if payload.A != "12" || payload.B != "x9" || payload.C != "" {
		t.Fatalf("flexID = %#v", payload)
	}
}

func TestParseTimeLayouts(t *testing.T) {
	if parseTime("2025-12-13T10:11:12Z").IsZero() {
		t.Fatalf("parseTime should parse RFC3339")
	}
	got := parseTime("2025-12-13T10:11:12.123")
	if got.IsZero() || got.Hour() != 10 {
		t.Fatalf("parseTime local = %v", got)
	}
	if parseTime("1700000000000").IsZero() {
		t.Fatalf("parseTime should parse epoch millis")
	}
	if !parseTime("garbage").IsZero() {
		t.Fatalf("parseTime garbage should be zero")
	}
}

func TestStatusHelpers(t *testing.T) {
	if !StatusAssembled.Active() || StatusFinished.Active() {
		t.Fatalf("Active mismatch")
	}
	if Status("").Label() != "Unknown" || StatusInProgress.Label() != "In progress" {
		t.Fatalf("Label mismatch")
	}
}

func TestMatchPayload_AddsMissingOrganizer(t *testing.T) {
	var p matchPayload
	raw := `{"id": 3, "cantidadJugadoresActual": 2, "organizador": {"id": 1, "nombreUsuario": "ana"}, "jugadores": [{"id": 2}]}`
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	m, err := p.toMatch()
	if err != nil {
		t.Fatalf("toMatch: %v", err)
	}
	if len(m.Roster) != 2 || !m.Roster[0].Organizer || m.Roster[0].ID != "1" {
		t.Fatalf("roster = %#v, want organizer prepended", m.Roster)
	}

	if _, err := (matchPayload{}).toMatch(); err == nil {
		t.Fatalf("toMatch without id returned nil error")
	}
}
