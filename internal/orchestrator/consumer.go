package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"tapwar/internal/balance"
	"tapwar/internal/eventlog"
	"tapwar/internal/events"
	"tapwar/internal/state"
	"tapwar/internal/wshub"
)

// RunTapConsumer drives the single ordered apply loop: every consumed tap
// mutates the store exactly once per delivery, then fans the result out.
// Blocks until ctx is cancelled.
func (o *Orchestrator) RunTapConsumer(ctx context.Context, src eventlog.Source) error {
	return src.Run(ctx, events.StreamTaps, o.ApplyTap)
}

// ApplyTap is the consumer handler for one tap event. Returning an error
// marks the event failed-and-skipped; malformed payloads are skipped
// silently apart from the log record.
func (o *Orchestrator) ApplyTap(ctx context.Context, key string, payload []byte) error {
	var ev events.Tap
	if err := json.Unmarshal(payload, &ev); err != nil {
		o.log.Warnw("malformed tap event", "key", key, "error", err)
		tapsSkipped.Inc()
		return nil
	}
	if ev.PlayerID == "" {
		o.log.Warnw("tap event without player id", "key", key)
		tapsSkipped.Inc()
		return nil
	}

	p, err := o.store.Get(ctx, ev.PlayerID)
	if err != nil {
		return fmt.Errorf("looking up player %s: %w", ev.PlayerID, err)
	}
	if p == nil {
		// Out-of-order join/tap race: creating from the event is the
		// sanctioned recovery path.
		team := ev.Team
		if !team.Valid() {
			active, err := o.store.ListActive(ctx)
			if err != nil {
				return fmt.Errorf("balancing for %s: %w", ev.PlayerID, err)
			}
			team = balance.Assign(balance.Counts(active))
		}
		p = &state.Player{ID: ev.PlayerID, Team: team, SessionID: ev.SessionID}
		o.log.Infow("created player from tap event", "player", p.ID, "team", p.Team)
	}

	p.PrevTapCount = p.TapCount
	p.PrevVelocity = ev.Velocity
	p.TapCount++
	p.LastTapTime = ev.Timestamp
	if p.FirstTapAt == 0 {
		p.FirstTapAt = ev.Timestamp
	}
	if err := o.store.Put(ctx, p); err != nil {
		return fmt.Errorf("persisting player %s: %w", p.ID, err)
	}
	if _, err := o.store.IncrTeamScore(ctx, p.Team); err != nil {
		return fmt.Errorf("scoring team %s: %w", p.Team, err)
	}
	if _, err := o.store.IncrTotalTaps(ctx); err != nil {
		return fmt.Errorf("counting tap: %w", err)
	}
	tapsConsumed.Inc()

	gs, err := o.store.GameState(ctx)
	if err != nil {
		return fmt.Errorf("reading game state: %w", err)
	}

	if p.TapCount%events.RankingMilestone == 0 {
		o.pub.PublishAsync(events.StreamRankings, p.ID, events.Ranking{
			PlayerID:  p.ID,
			Timestamp: ev.Timestamp,
			Team:      p.Team,
			TapCount:  p.TapCount,
		})
	}
	o.trackLead(gs, ev.Timestamp)

	// The tapper's own connections get their merged record so optimistic
	// UI state can reconcile; everyone else only the scoreboard.
	o.hub.SendToPlayer(p.ID, wshub.Outbound{Type: wshub.TypeGameUpdate, Data: wshub.GameUpdate{GameState: gs, User: p}})
	o.hub.BroadcastExceptPlayer(p.ID, wshub.Outbound{Type: wshub.TypeGameUpdate, Data: wshub.GameUpdate{GameState: gs}})
	return nil
}

// trackLead emits a team-dynamics event when the scoreboard lead flips.
// Taking the lead from a tie does not count as a flip.
func (o *Orchestrator) trackLead(gs state.GameState, ts int64) {
	var leader state.Team
	switch {
	case gs.TeamAScore > gs.TeamBScore:
		leader = state.TeamA
	case gs.TeamBScore > gs.TeamAScore:
		leader = state.TeamB
	default:
		return
	}
	if o.lastLeader != "" && o.lastLeader != leader {
		o.pub.PublishAsync(events.StreamTeams, string(leader), events.TeamDynamics{
			Kind:       events.TeamLeadChange,
			Timestamp:  ts,
			Leader:     leader,
			TeamAScore: gs.TeamAScore,
			TeamBScore: gs.TeamBScore,
		})
	}
	o.lastLeader = leader
}
