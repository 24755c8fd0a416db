package events

import "tapwar/internal/state"

// Logical stream names. Tap and session events are keyed by player id so
// per-player ordering survives concurrent production.
const (
	StreamTaps        = "tap-events"
	StreamSessions    = "session-events"
	StreamAnalytics   = "analytics"
	StreamRankings    = "power-rankings"
	StreamTeams       = "team-dynamics"
	StreamPerformance = "client-performance"
	StreamEngagement  = "engagement-patterns"
	StreamAnomalies   = "fun-anomalies"
	StreamMetadata    = "user-metadata"
)

// Session event kinds.
const (
	SessionStart    = "session_start"
	SessionComeback = "comeback"
	SessionRageQuit = "rage_quit"
	SessionMarathon = "marathon"
	SessionSpectate = "spectator"
	SessionMultiTab = "multi_tab"
)

// Engagement event kinds.
const (
	EngagePeakHours    = "peak_hours"
	EngageNightOwl     = "night_owl"
	EngageEarlyBird    = "early_bird"
	EngageReturnVisit  = "return_visit"
	EngageLateGameHero = "late_game_hero"
)

// Performance event kinds.
const (
	PerfLagWarrior = "lag_warrior"
)

// Anomaly event kinds.
const (
	AnomalyBotSuspect = "bot_suspect"
)

// Team dynamics event kinds.
const (
	TeamLeadChange = "lead_change"
)

// Tap-count milestone spacing for power ranking events.
const RankingMilestone = 100

// Tap is one scored tap with its derived intensity metrics. Immutable once
// published.
type Tap struct {
	EventID   string     `json:"eventId"`
	PlayerID  string     `json:"playerId"`
	Team      state.Team `json:"team"`
	Timestamp int64      `json:"timestamp"`
	SessionID string     `json:"sessionId,omitempty"`

	Velocity        float64 `json:"tapVelocity"`
	TimeSinceLast   int64   `json:"timeSinceLastTap"`
	BurstCount      int     `json:"burstCount"`
	MaxBurst        int     `json:"maxBurst"`
	Frenzy          bool    `json:"isFrenzyMode"`
	SessionDuration int64   `json:"sessionDuration"`
}

// Session marks a lifecycle or anomaly moment in one player's session.
type Session struct {
	Kind      string `json:"kind"`
	PlayerID  string `json:"playerId"`
	SessionID string `json:"sessionId,omitempty"`
	Timestamp int64  `json:"timestamp"`

	Duration       int64 `json:"duration,omitempty"`
	TapCount       int64 `json:"tapCount,omitempty"`
	ReconnectCount int   `json:"reconnectCount,omitempty"`
	ActiveSessions int   `json:"activeSessions,omitempty"`
}

// Engagement captures habit-level signals derived on join.
type Engagement struct {
	Kind       string     `json:"kind"`
	PlayerID   string     `json:"playerId"`
	Timestamp  int64      `json:"timestamp"`
	StreakDays int        `json:"streakDays,omitempty"`
	VisitCount int        `json:"visitCount,omitempty"`
	Team       state.Team `json:"team,omitempty"`
	ScoreGap   int64      `json:"scoreGap,omitempty"`
}

// Performance reports connection quality signals from the latency probe.
type Performance struct {
	Kind      string  `json:"kind"`
	PlayerID  string  `json:"playerId"`
	Timestamp int64   `json:"timestamp"`
	LatencyMS int64   `json:"latencyMs"`
	Band      string  `json:"band"`
	Velocity  float64 `json:"tapVelocity,omitempty"`
}

// Anomaly flags suspicious tap patterns.
type Anomaly struct {
	Kind             string  `json:"kind"`
	PlayerID         string  `json:"playerId"`
	Timestamp        int64   `json:"timestamp"`
	LifetimeTaps     int64   `json:"lifetimeTaps,omitempty"`
	IntervalCV       float64 `json:"intervalCv,omitempty"`
	ConsistencyScore float64 `json:"consistencyScore,omitempty"`
}

// Analytics is one player's entry in the device/browser/OS battle tallies,
// published on join.
type Analytics struct {
	PlayerID  string     `json:"playerId"`
	Timestamp int64      `json:"timestamp"`
	Team      state.Team `json:"team"`
	Browser   string     `json:"browser,omitempty"`
	OS        string     `json:"os,omitempty"`
	Device    string     `json:"device,omitempty"`
}

// Ranking marks a player crossing a tap-count milestone.
type Ranking struct {
	PlayerID  string     `json:"playerId"`
	Timestamp int64      `json:"timestamp"`
	Team      state.Team `json:"team"`
	TapCount  int64      `json:"tapCount"`
}

// TeamDynamics records a scoreboard lead change.
type TeamDynamics struct {
	Kind       string     `json:"kind"`
	Timestamp  int64      `json:"timestamp"`
	Leader     state.Team `json:"leader"`
	TeamAScore int64      `json:"teamAScore"`
	TeamBScore int64      `json:"teamBScore"`
}

// Metadata carries connection-derived player context.
type Metadata struct {
	PlayerID  string         `json:"playerId"`
	Timestamp int64          `json:"timestamp"`
	Meta      state.Metadata `json:"meta"`
}
