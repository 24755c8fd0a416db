package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tapwar/internal/balance"
	"tapwar/internal/eventlog"
	"tapwar/internal/events"
	"tapwar/internal/session"
	"tapwar/internal/state"
	"tapwar/internal/tapmetrics"
	"tapwar/internal/utility"
	"tapwar/internal/wshub"
)

// lagWarriorWindow: a pong this close to the last tap counts the player as
// still actively tapping.
const lagWarriorWindow = 10 * time.Second

// Orchestrator wires the gateway, the state store and the event log. It is
// the only writer of player records on the join/leave path; tap counts are
// mutated exclusively by the consumer loop.
type Orchestrator struct {
	store state.Store
	pub   eventlog.Publisher
	hub   *wshub.Hub
	log   *zap.SugaredLogger

	lateGameGap int64
	now         func() int64

	// Touched only by the consumer loop.
	lastLeader state.Team
}

func New(store state.Store, pub eventlog.Publisher, hub *wshub.Hub, lateGameGap int64, log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		store:       store,
		pub:         pub,
		hub:         hub,
		log:         log.With("component", "orchestrator"),
		lateGameGap: lateGameGap,
		now:         func() int64 { return time.Now().UnixMilli() },
	}
}

// Connected sends the current game state to a freshly accepted socket.
func (o *Orchestrator) Connected(ctx context.Context, c *wshub.Client) {
	gs, err := o.store.GameState(ctx)
	if err != nil {
		o.log.Errorw("game state unavailable on connect", "conn", c.ConnID, "error", err)
		return
	}
	c.Enqueue(wshub.Outbound{Type: wshub.TypeGameUpdate, Data: wshub.GameUpdate{GameState: gs}})
}

// Join resolves or creates the player record, binds the connection, derives
// engagement signals and fans the new state out.
func (o *Orchestrator) Join(ctx context.Context, c *wshub.Client, data wshub.JoinData) {
	now := o.now()

	// Replayed join on an already-bound connection: resend state, never
	// re-count the session.
	prev := c.PlayerID()
	if prev == data.ID {
		o.sendOwnState(ctx, c, data.ID)
		return
	}
	// Identity switch: retire the old player's session before the new one
	// starts, or its active-session count never reaches zero.
	if prev != "" {
		o.release(ctx, c, prev)
	}

	p, err := o.store.Get(ctx, data.ID)
	if err != nil {
		o.log.Errorw("join lookup failed", "player", data.ID, "error", err)
		return
	}

	kind := events.SessionStart
	if p == nil {
		team := data.Team
		if !team.Valid() {
			active, err := o.store.ListActive(ctx)
			if err != nil {
				o.log.Errorw("join balance failed", "player", data.ID, "error", err)
				return
			}
			team = balance.Assign(balance.Counts(active))
		}
		p = &state.Player{ID: data.ID, Username: data.Username, Team: team}
	} else {
		// Reconnect: the stored team always wins over fresh balancing.
		if data.Username != "" {
			p.Username = data.Username
		}
		p.ReconnectCount++
		if p.LastDisconnect > 0 {
			kind = events.SessionComeback
		}
	}

	sessionID := data.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	p.SessionID = sessionID
	p.SessionStart = now

	o.enrichMeta(p, c.Meta, data.Meta)

	returning := p.LastVisit > 0
	p.StreakDays = session.NextStreak(p.StreakDays, p.LastVisit, now)
	p.LastVisit = now
	p.VisitCount++

	sessions, err := o.store.IncrActiveSessions(ctx, p.ID)
	if err != nil {
		o.log.Errorw("session count failed", "player", p.ID, "error", err)
		sessions = 1
	}
	p.ActiveSessions = int(sessions)

	if err := o.store.Activate(ctx, p); err != nil {
		o.log.Errorw("join persist failed", "player", p.ID, "error", err)
		return
	}
	if err := o.store.PutSession(ctx, state.Session{
		PlayerID:        p.ID,
		SessionID:       sessionID,
		StartTime:       now,
		TapCountAtStart: p.TapCount,
	}); err != nil {
		o.log.Warnw("session persist failed", "player", p.ID, "error", err)
	}

	c.Bind(p.ID)

	o.pub.PublishAsync(events.StreamSessions, p.ID, events.Session{
		Kind:           kind,
		PlayerID:       p.ID,
		SessionID:      sessionID,
		Timestamp:      now,
		ReconnectCount: p.ReconnectCount,
		ActiveSessions: p.ActiveSessions,
	})
	if sessions > 1 {
		o.pub.PublishAsync(events.StreamSessions, p.ID, events.Session{
			Kind:           events.SessionMultiTab,
			PlayerID:       p.ID,
			SessionID:      sessionID,
			Timestamp:      now,
			ActiveSessions: p.ActiveSessions,
		})
	}
	o.pub.PublishAsync(events.StreamMetadata, p.ID, events.Metadata{
		PlayerID:  p.ID,
		Timestamp: now,
		Meta:      p.Meta,
	})
	o.pub.PublishAsync(events.StreamAnalytics, p.ID, events.Analytics{
		PlayerID:  p.ID,
		Timestamp: now,
		Team:      p.Team,
		Browser:   p.Meta.Browser,
		OS:        p.Meta.OS,
		Device:    p.Meta.Device,
	})
	o.publishEngagement(p, returning, now)

	gs, err := o.store.GameState(ctx)
	if err != nil {
		o.log.Errorw("game state unavailable after join", "player", p.ID, "error", err)
		return
	}
	if session.LateGameHero(p.Team, gs, o.lateGameGap) {
		gap := gs.TeamBScore - gs.TeamAScore
		if p.Team == state.TeamB {
			gap = gs.TeamAScore - gs.TeamBScore
		}
		o.pub.PublishAsync(events.StreamEngagement, p.ID, events.Engagement{
			Kind:      events.EngageLateGameHero,
			PlayerID:  p.ID,
			Timestamp: now,
			Team:      p.Team,
			ScoreGap:  gap,
		})
	}

	// Requester gets its merged record; everyone else just the scoreboard.
	c.Enqueue(wshub.Outbound{Type: wshub.TypeGameUpdate, Data: wshub.GameUpdate{GameState: gs, User: p}})
	o.hub.BroadcastExcept(c.ConnID, wshub.Outbound{Type: wshub.TypeGameUpdate, Data: wshub.GameUpdate{GameState: gs}})
}

func (o *Orchestrator) publishEngagement(p *state.Player, returning bool, now int64) {
	if bucket := session.TimeOfDayBucket(time.UnixMilli(now)); bucket != "" {
		o.pub.PublishAsync(events.StreamEngagement, p.ID, events.Engagement{
			Kind:      bucket,
			PlayerID:  p.ID,
			Timestamp: now,
		})
	}
	if returning {
		o.pub.PublishAsync(events.StreamEngagement, p.ID, events.Engagement{
			Kind:       events.EngageReturnVisit,
			PlayerID:   p.ID,
			Timestamp:  now,
			StreakDays: p.StreakDays,
			VisitCount: p.VisitCount,
		})
	}
}

// enrichMeta fills connection-derived metadata, letting client-declared
// fields through only where the connection has nothing better.
func (o *Orchestrator) enrichMeta(p *state.Player, meta wshub.ConnMeta, declared *state.Metadata) {
	if declared != nil {
		p.Meta = *declared
	}
	if meta.UserAgent != "" {
		browser, osName, device := utility.ParseUserAgent(meta.UserAgent)
		p.Meta.Browser = browser
		p.Meta.OS = osName
		p.Meta.Device = device
	}
	if meta.RemoteAddr != "" {
		p.Meta.IP = meta.RemoteAddr
	}
	if lang := utility.FirstLanguage(meta.Language); lang != "" {
		p.Meta.Language = lang
	}
}

// Tap publishes one tap from a joined connection into the event log. The
// score itself only moves when the consumer applies the event.
func (o *Orchestrator) Tap(ctx context.Context, c *wshub.Client) {
	id := c.PlayerID()
	if id == "" {
		o.log.Warnw("tap before join", "conn", c.ConnID)
		return
	}
	p, err := o.store.Get(ctx, id)
	if err != nil {
		o.log.Errorw("tap lookup failed", "player", id, "error", err)
		return
	}
	if p == nil {
		// The gateway never fabricates players; only the consumer may.
		o.log.Warnw("tap for unknown player", "player", id)
		return
	}
	if err := o.publishTap(ctx, p); err != nil {
		o.log.Errorw("tap publish failed", "player", id, "error", err)
	}
}

// PublishTapFor is the external-producer path (HTTP tap submissions): the
// player may not exist yet, the consumer will create it from the event.
func (o *Orchestrator) PublishTapFor(ctx context.Context, id, username string, team state.Team, sessionID string) error {
	p, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		p = &state.Player{ID: id, Username: username, Team: team, SessionID: sessionID}
	}
	return o.publishTap(ctx, p)
}

func (o *Orchestrator) publishTap(ctx context.Context, p *state.Player) error {
	now := o.now()

	history, err := o.store.TapTimes(ctx, p.ID)
	if err != nil {
		o.log.Warnw("tap history unavailable", "player", p.ID, "error", err)
	}
	snap := tapmetrics.Compute(history, now)
	if err := o.store.PushTapTime(ctx, p.ID, now); err != nil {
		o.log.Warnw("tap history push failed", "player", p.ID, "error", err)
	}

	var sessionDuration int64
	if p.SessionStart > 0 {
		sessionDuration = now - p.SessionStart
	}
	ev := events.Tap{
		EventID:         uuid.New().String(),
		PlayerID:        p.ID,
		Team:            p.Team,
		Timestamp:       now,
		SessionID:       p.SessionID,
		Velocity:        snap.Velocity,
		TimeSinceLast:   snap.TimeSinceLast,
		BurstCount:      snap.BurstCount,
		MaxBurst:        snap.MaxBurst,
		Frenzy:          snap.Frenzy,
		SessionDuration: sessionDuration,
	}
	if err := o.pub.Publish(ctx, events.StreamTaps, p.ID, ev); err != nil {
		return err
	}

	withNew := append([]int64{now}, history...)
	if len(withNew) > state.TapHistoryLimit {
		withNew = withNew[:state.TapHistoryLimit]
	}
	if suspect, cv := tapmetrics.SuspectBot(withNew, p.TapCount+1); suspect {
		score, _ := tapmetrics.ConsistencyScore(withNew)
		o.pub.PublishAsync(events.StreamAnomalies, p.ID, events.Anomaly{
			Kind:             events.AnomalyBotSuspect,
			PlayerID:         p.ID,
			Timestamp:        now,
			LifetimeTaps:     p.TapCount + 1,
			IntervalCV:       cv,
			ConsistencyScore: score,
		})
	}
	return nil
}

// Pong records a latency probe result. A poor connection that keeps tapping
// anyway earns a lag warrior event.
func (o *Orchestrator) Pong(ctx context.Context, c *wshub.Client, latencyMS int64) {
	id := c.PlayerID()
	if id == "" {
		return
	}
	band := wshub.LatencyBand(latencyMS)
	if band != wshub.BandPoor {
		return
	}
	p, err := o.store.Get(ctx, id)
	if err != nil || p == nil {
		return
	}
	now := o.now()
	if p.LastTapTime == 0 || now-p.LastTapTime > lagWarriorWindow.Milliseconds() {
		return
	}
	history, _ := o.store.TapTimes(ctx, id)
	o.pub.PublishAsync(events.StreamPerformance, id, events.Performance{
		Kind:      events.PerfLagWarrior,
		PlayerID:  id,
		Timestamp: now,
		LatencyMS: latencyMS,
		Band:      band,
		Velocity:  tapmetrics.Velocity(history, now),
	})
}

// Disconnect classifies the closing session, retires the active view entry
// and tells the remaining connections.
func (o *Orchestrator) Disconnect(ctx context.Context, c *wshub.Client) {
	id := c.PlayerID()
	if id == "" {
		return
	}
	o.release(ctx, c, id)
}

// release ends one of id's sessions: classify it, decrement the session
// counter and drop the active view entry when it was the last one. Shared
// by Disconnect and identity-switch joins.
func (o *Orchestrator) release(ctx context.Context, c *wshub.Client, id string) {
	now := o.now()

	p, err := o.store.Get(ctx, id)
	if err != nil {
		o.log.Errorw("disconnect lookup failed", "player", id, "error", err)
		return
	}
	if p == nil {
		return
	}

	sessions, err := o.store.DecrActiveSessions(ctx, id)
	if err != nil {
		o.log.Warnw("session count failed on disconnect", "player", id, "error", err)
	}
	p.ActiveSessions = int(sessions)

	gs, err := o.store.GameState(ctx)
	if err != nil {
		o.log.Errorw("game state unavailable on disconnect", "player", id, "error", err)
		return
	}
	teamBehind := gs.TeamAScore < gs.TeamBScore
	if p.Team == state.TeamB {
		teamBehind = gs.TeamBScore < gs.TeamAScore
	}

	if kind := session.ClassifyDisconnect(p, now, teamBehind); kind != "" {
		o.pub.PublishAsync(events.StreamSessions, id, events.Session{
			Kind:      kind,
			PlayerID:  id,
			SessionID: p.SessionID,
			Timestamp: now,
			Duration:  now - p.SessionStart,
			TapCount:  p.TapCount,
		})
	}

	p.LastDisconnect = now
	if err := o.store.Put(ctx, p); err != nil {
		o.log.Warnw("disconnect persist failed", "player", id, "error", err)
	}

	// Multi-tab: the player stays in the active view until the last
	// connection is gone.
	if sessions == 0 {
		if err := o.store.RemoveActive(ctx, id); err != nil {
			o.log.Warnw("active view removal failed", "player", id, "error", err)
		}
		o.hub.BroadcastExcept(c.ConnID, wshub.Outbound{Type: wshub.TypeUserLeft, Data: wshub.UserLeft{ID: id}})
	}

	gs, err = o.store.GameState(ctx)
	if err != nil {
		return
	}
	o.hub.BroadcastExcept(c.ConnID, wshub.Outbound{Type: wshub.TypeGameUpdate, Data: wshub.GameUpdate{GameState: gs}})
}

func (o *Orchestrator) sendOwnState(ctx context.Context, c *wshub.Client, id string) {
	p, err := o.store.Get(ctx, id)
	if err != nil {
		o.log.Errorw("state lookup failed", "player", id, "error", err)
		return
	}
	gs, err := o.store.GameState(ctx)
	if err != nil {
		o.log.Errorw("game state unavailable", "player", id, "error", err)
		return
	}
	c.Enqueue(wshub.Outbound{Type: wshub.TypeGameUpdate, Data: wshub.GameUpdate{GameState: gs, User: p}})
}
