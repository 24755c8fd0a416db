package archive

import (
	"fmt"

	"tapwar/internal/events"
)

// BatchRecordTaps inserts consumed tap events in one transaction. Conflicts
// on event id are ignored: the event log is at-least-once and replays must
// not fail the batch.
func (d *DB) BatchRecordTaps(batch []events.Tap) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO tap_events (event_id, player_id, team, ts_ms, session_id, velocity, burst_count, max_burst, frenzy)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, ev := range batch {
		if _, err := stmt.Exec(ev.EventID, ev.PlayerID, string(ev.Team), ev.Timestamp, ev.SessionID,
			ev.Velocity, ev.BurstCount, ev.MaxBurst, ev.Frenzy); err != nil {
			return fmt.Errorf("recording tap in batch: %w", err)
		}
	}
	return tx.Commit()
}

// BatchRecordSessions inserts session lifecycle events in one transaction.
func (d *DB) BatchRecordSessions(batch []events.Session) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO session_events (kind, player_id, session_id, ts_ms, duration_ms, tap_count)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, ev := range batch {
		if _, err := stmt.Exec(ev.Kind, ev.PlayerID, ev.SessionID, ev.Timestamp, ev.Duration, ev.TapCount); err != nil {
			return fmt.Errorf("recording session in batch: %w", err)
		}
	}
	return tx.Commit()
}
