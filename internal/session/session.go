package session

import (
	"time"

	"tapwar/internal/events"
	"tapwar/internal/state"
)

// Disconnect classification thresholds.
const (
	rageQuitWindow    = 5 * time.Second
	marathonDuration  = 30 * time.Minute
	spectatorDuration = 60 * time.Second
)

// TimeOfDayBucket classifies a local join time into an engagement bucket,
// or "" when the hour is unremarkable.
func TimeOfDayBucket(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 18 && h < 23:
		return events.EngagePeakHours
	case h >= 23 || h < 5:
		return events.EngageNightOwl
	case h >= 5 && h < 8:
		return events.EngageEarlyBird
	default:
		return ""
	}
}

// NextStreak advances a consecutive-day streak: same calendar day keeps it,
// the next day increments it, anything else resets to 1.
func NextStreak(streak int, lastVisit, now int64) int {
	if streak < 1 {
		streak = 1
	}
	if lastVisit == 0 {
		return 1
	}
	prev := time.UnixMilli(lastVisit)
	cur := time.UnixMilli(now)
	prevDay := time.Date(prev.Year(), prev.Month(), prev.Day(), 0, 0, 0, 0, prev.Location())
	curDay := time.Date(cur.Year(), cur.Month(), cur.Day(), 0, 0, 0, 0, cur.Location())
	switch curDay.Sub(prevDay) {
	case 0:
		return streak
	case 24 * time.Hour:
		return streak + 1
	default:
		return 1
	}
}

// LateGameHero reports whether joining team counts as a late-game entrance:
// the team trails its opponent by at least gap points.
func LateGameHero(team state.Team, gs state.GameState, gap int64) bool {
	if gap <= 0 {
		return false
	}
	own, other := gs.TeamAScore, gs.TeamBScore
	if team == state.TeamB {
		own, other = other, own
	}
	return other-own >= gap
}

// ClassifyDisconnect maps a closing session onto its event kind, or ""
// when nothing noteworthy happened. Rage quit wins over the duration-based
// classifications.
func ClassifyDisconnect(p *state.Player, now int64, teamBehind bool) string {
	duration := now - p.SessionStart
	if p.TapCount > 0 && teamBehind && p.LastTapTime > 0 &&
		now-p.LastTapTime <= rageQuitWindow.Milliseconds() {
		return events.SessionRageQuit
	}
	if duration > marathonDuration.Milliseconds() {
		return events.SessionMarathon
	}
	if duration >= spectatorDuration.Milliseconds() && taplessSession(p) {
		return events.SessionSpectate
	}
	return ""
}

// taplessSession is true when the player never tapped during this session.
func taplessSession(p *state.Player) bool {
	return p.LastTapTime == 0 || p.LastTapTime < p.SessionStart
}
