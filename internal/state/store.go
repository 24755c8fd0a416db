package state

import "context"

// TapHistoryLimit bounds the per-player recent tap timestamp list.
const TapHistoryLimit = 20

// Store is the authoritative key/value store for players, counters and
// sessions. Counter mutations are atomic at the key level; player records
// are whole-blob writes with last-writer-wins semantics.
type Store interface {
	// Get returns the all-time record for id, or nil if it was never created.
	Get(ctx context.Context, id string) (*Player, error)
	// Put overwrites the player in the all-time view and, when present, the
	// active view.
	Put(ctx context.Context, p *Player) error
	// Activate places the player in the active view and the all-time view.
	Activate(ctx context.Context, p *Player) error
	// RemoveActive drops the player from the active view only.
	RemoveActive(ctx context.Context, id string) error

	ListActive(ctx context.Context) ([]*Player, error)
	ListAll(ctx context.Context) ([]*Player, error)

	IncrTeamScore(ctx context.Context, team Team) (int64, error)
	IncrTotalTaps(ctx context.Context) (int64, error)

	// PushTapTime prepends ts to the player's bounded tap history.
	PushTapTime(ctx context.Context, id string, ts int64) error
	// TapTimes returns the history newest first, at most TapHistoryLimit.
	TapTimes(ctx context.Context, id string) ([]int64, error)

	PutSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, playerID string) (*Session, error)

	IncrActiveSessions(ctx context.Context, id string) (int64, error)
	DecrActiveSessions(ctx context.Context, id string) (int64, error)

	// GameState derives the aggregate scoreboard snapshot.
	GameState(ctx context.Context) (GameState, error)

	Ping(ctx context.Context) error
}
