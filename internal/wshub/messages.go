package wshub

import (
	"encoding/json"
	"fmt"

	"tapwar/internal/state"
)

// Message type tags. Inbound: user_join, tap, ping, pong. Outbound: ping,
// pong, game_update, user_left. Unknown tags are rejected, not ignored.
const (
	TypeUserJoin   = "user_join"
	TypeTap        = "tap"
	TypePing       = "ping"
	TypePong       = "pong"
	TypeGameUpdate = "game_update"
	TypeUserLeft   = "user_left"
)

// Inbound is the envelope received from clients.
type Inbound struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// JoinData binds a connection to a player.
type JoinData struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Team      state.Team      `json:"team,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Meta      *state.Metadata `json:"meta,omitempty"`
}

// Outbound is the envelope sent to clients.
type Outbound struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// GameUpdate carries the aggregate scoreboard, plus the receiver's own
// record when the update was caused by their tap or join.
type GameUpdate struct {
	GameState state.GameState `json:"gameState"`
	User      *state.Player   `json:"user,omitempty"`
}

// UserLeft announces a departed player.
type UserLeft struct {
	ID string `json:"id"`
}

// ParseInbound decodes one client frame, rejecting unknown type tags.
func ParseInbound(raw []byte) (Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Inbound{}, fmt.Errorf("decoding frame: %w", err)
	}
	switch msg.Type {
	case TypeUserJoin, TypeTap, TypePing, TypePong:
		return msg, nil
	default:
		return Inbound{}, fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// JoinPayload decodes and validates the user_join data.
func (m Inbound) JoinPayload() (JoinData, error) {
	var data JoinData
	if err := json.Unmarshal(m.Data, &data); err != nil {
		return JoinData{}, fmt.Errorf("decoding join data: %w", err)
	}
	if data.ID == "" {
		return JoinData{}, fmt.Errorf("join without player id")
	}
	if data.Team != "" && !data.Team.Valid() {
		return JoinData{}, fmt.Errorf("invalid team %q", data.Team)
	}
	return data, nil
}
