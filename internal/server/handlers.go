package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tapwar/internal/orchestrator"
	"tapwar/internal/state"
	"tapwar/internal/wshub"
)

const leaderboardSize = 10

type Server struct {
	Store        state.Store
	Orch         *orchestrator.Orchestrator
	Hub          *wshub.Hub
	Log          *zap.SugaredLogger
	PingInterval time.Duration
}

type stateResponse struct {
	GameState   state.GameState `json:"gameState"`
	Users       []*state.Player `json:"users"`
	Leaderboard []*state.Player `json:"leaderboard"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	gs, err := s.Store.GameState(r.Context())
	if err != nil {
		s.Log.Errorw("state snapshot failed", "error", err)
		http.Error(w, "state unavailable", http.StatusServiceUnavailable)
		return
	}
	users, err := s.Store.ListActive(r.Context())
	if err != nil {
		s.Log.Errorw("active list failed", "error", err)
		http.Error(w, "state unavailable", http.StatusServiceUnavailable)
		return
	}
	all, err := s.Store.ListAll(r.Context())
	if err != nil {
		s.Log.Errorw("all-time list failed", "error", err)
		http.Error(w, "state unavailable", http.StatusServiceUnavailable)
		return
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TapCount > all[j].TapCount })
	if len(all) > leaderboardSize {
		all = all[:leaderboardSize]
	}

	writeJSON(w, http.StatusOK, stateResponse{GameState: gs, Users: users, Leaderboard: all})
}

type tapRequest struct {
	UserID    string     `json:"userId"`
	Username  string     `json:"username"`
	Team      state.Team `json:"team"`
	SessionID string     `json:"sessionId"`
}

// handleTap is the external-producer surface: it publishes a tap event into
// the log and returns before the score moves.
func (s *Server) handleTap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req tapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	if req.Team != "" && !req.Team.Valid() {
		http.Error(w, "invalid team", http.StatusBadRequest)
		return
	}
	if err := s.Orch.PublishTapFor(r.Context(), req.UserID, req.Username, req.Team, req.SessionID); err != nil {
		s.Log.Errorw("tap submission failed", "player", req.UserID, "error", err)
		http.Error(w, "tap submission failed", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.Log.Warnw("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	// Connection metadata is only available now; it cannot be resent later.
	meta := wshub.ConnMeta{
		UserAgent:  r.UserAgent(),
		RemoteAddr: remoteIP(r),
		Language:   r.Header.Get("Accept-Language"),
	}
	c := s.Hub.NewClient(uuid.New().String(), conn, meta)

	s.Hub.Serve(r.Context(), c, s.Orch, s.PingInterval)
	wshub.CloseClient(c)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "store_error", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// remoteIP strips the port from the request's remote address, preferring a
// forwarded header when a proxy sits in front.
func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
	}
	return host
}
