package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"tapwar/internal/eventlog"
	"tapwar/internal/orchestrator"
	"tapwar/internal/state"
	"tapwar/internal/wshub"
)

func newTestServer(t *testing.T) (*Server, *state.MemoryStore, *httptest.Server) {
	t.Helper()
	log := zap.NewNop().Sugar()
	store := state.NewMemoryStore()
	ml := eventlog.NewMemoryLog(log)
	hub := wshub.NewHub(log)
	orch := orchestrator.New(store, ml, hub, 100, log)

	srv := &Server{
		Store:        store,
		Orch:         orch,
		Hub:          hub,
		Log:          log,
		PingInterval: time.Minute,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/state", srv.handleState)
	mux.HandleFunc("/tap", srv.handleTap)
	mux.HandleFunc("/health", srv.handleHealth)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return srv, store, ts
}

func seedPlayer(t *testing.T, store *state.MemoryStore, id string, team state.Team, taps int64) {
	t.Helper()
	ctx := context.Background()
	p := &state.Player{ID: id, Username: id, Team: team, TapCount: taps}
	if err := store.Put(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := store.Activate(ctx, p); err != nil {
		t.Fatal(err)
	}
	for i := int64(0); i < taps; i++ {
		if _, err := store.IncrTeamScore(ctx, team); err != nil {
			t.Fatal(err)
		}
		if _, err := store.IncrTotalTaps(ctx); err != nil {
			t.Fatal(err)
		}
	}
}

func TestHandleState(t *testing.T) {
	_, store, ts := newTestServer(t)
	seedPlayer(t, store, "alice", state.TeamA, 30)
	seedPlayer(t, store, "bob", state.TeamB, 10)

	resp, err := http.Get(ts.URL + "/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var got stateResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.GameState.TotalTaps != 40 {
		t.Errorf("totalTaps = %d, want 40", got.GameState.TotalTaps)
	}
	if got.GameState.TeamAScore != 30 || got.GameState.TeamBScore != 10 {
		t.Errorf("scores = %d/%d, want 30/10", got.GameState.TeamAScore, got.GameState.TeamBScore)
	}
	if len(got.Users) != 2 {
		t.Errorf("active users = %d, want 2", len(got.Users))
	}
	if len(got.Leaderboard) != 2 || got.Leaderboard[0].ID != "alice" {
		t.Errorf("leaderboard not sorted by taps: %+v", got.Leaderboard)
	}
}

func TestHandleStateLeaderboardCapped(t *testing.T) {
	_, store, ts := newTestServer(t)
	for i := 0; i < leaderboardSize+5; i++ {
		id := string(rune('a' + i))
		seedPlayer(t, store, id, state.TeamA, int64(i))
	}

	resp, err := http.Get(ts.URL + "/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got stateResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.Leaderboard) != leaderboardSize {
		t.Errorf("leaderboard size = %d, want %d", len(got.Leaderboard), leaderboardSize)
	}
}

func TestHandleTap(t *testing.T) {
	_, store, ts := newTestServer(t)
	seedPlayer(t, store, "alice", state.TeamA, 0)

	body, _ := json.Marshal(tapRequest{UserID: "alice", Team: state.TeamA})
	resp, err := http.Post(ts.URL+"/tap", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
}

func TestHandleTapValidation(t *testing.T) {
	_, _, ts := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing user id", `{"team":"A"}`, http.StatusBadRequest},
		{"invalid team", `{"userId":"alice","team":"C"}`, http.StatusBadRequest},
		{"malformed json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/tap", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestHandleTapRejectsGet(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/tap")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestHandleHealth(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got["status"] != "ok" {
		t.Errorf("status = %q, want %q", got["status"], "ok")
	}
}

func TestRemoteIP(t *testing.T) {
	tests := []struct {
		name      string
		remote    string
		forwarded string
		want      string
	}{
		{"direct", "10.0.0.1:52100", "", "10.0.0.1"},
		{"forwarded single", "127.0.0.1:80", "203.0.113.9", "203.0.113.9"},
		{"forwarded chain", "127.0.0.1:80", "203.0.113.9, 10.0.0.1", "203.0.113.9"},
		{"no port", "10.0.0.1", "", "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := remoteIP(r); got != tt.want {
				t.Errorf("remoteIP = %q, want %q", got, tt.want)
			}
		})
	}
}
