package state

// Team identifies one of the two competing sides.
type Team string

const (
	TeamA = Team("A")
	TeamB = Team("B")
)

// Valid reports whether t is one of the two playable teams.
func (t Team) Valid() bool {
	return t == TeamA || t == TeamB
}

// Opponent returns the other team.
func Opponent(t Team) Team {
	if t == TeamA {
		return TeamB
	}
	return TeamA
}

// Metadata is connection-derived player context captured at socket accept.
type Metadata struct {
	Browser  string `json:"browser,omitempty"`
	OS       string `json:"os,omitempty"`
	Device   string `json:"device,omitempty"`
	IP       string `json:"ip,omitempty"`
	Language string `json:"language,omitempty"`
	Country  string `json:"country,omitempty"`
	City     string `json:"city,omitempty"`
}

// Player is the persistent record for one participant. Timestamps are unix
// milliseconds. The blob is stored as a whole; only TapCount is mutated
// concurrently, and only ever by the single tap-event consumer.
type Player struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Team     Team   `json:"team"`

	TapCount    int64 `json:"tapCount"`
	LastTapTime int64 `json:"lastTapTime,omitempty"`
	FirstTapAt  int64 `json:"firstTapAt,omitempty"`

	SessionID      string `json:"sessionId,omitempty"`
	SessionStart   int64  `json:"sessionStart,omitempty"`
	LastDisconnect int64  `json:"lastDisconnect,omitempty"`
	ReconnectCount int    `json:"reconnectCount,omitempty"`
	ActiveSessions int    `json:"activeSessions,omitempty"`

	PrevTapCount int64   `json:"prevTapCount,omitempty"`
	PrevVelocity float64 `json:"prevVelocity,omitempty"`

	LastVisit  int64 `json:"lastVisit,omitempty"`
	VisitCount int   `json:"visitCount,omitempty"`
	StreakDays int   `json:"streakDays,omitempty"`

	Meta Metadata `json:"meta,omitempty"`
}

// GameState is the aggregate scoreboard derived from the store counters.
type GameState struct {
	TeamAScore    int64 `json:"teamAScore"`
	TeamBScore    int64 `json:"teamBScore"`
	TotalTaps     int64 `json:"totalTaps"`
	ActivePlayers int   `json:"activePlayers"`
	LastUpdate    int64 `json:"lastUpdate"`
}

// Session records one connection's attribution window. Expires from the
// store after the configured TTL.
type Session struct {
	PlayerID        string `json:"playerId"`
	SessionID       string `json:"sessionId"`
	StartTime       int64  `json:"startTime"`
	TapCountAtStart int64  `json:"tapCountAtStart"`
}
