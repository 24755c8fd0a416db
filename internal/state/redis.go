package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyActive       = "tapwar:players:active"
	keyAll          = "tapwar:players:all"
	keyTotalTaps    = "tapwar:taps:total"
	teamScorePrefix = "tapwar:score:"
	tapTimesPrefix  = "tapwar:taps:recent:"
	sessionPrefix   = "tapwar:session:"
	sessCountPrefix = "tapwar:session:count:"
)

// RedisStore implements Store on a Redis instance. Counters use Redis
// atomic increments; player blobs are JSON hash fields.
type RedisStore struct {
	rdb        *redis.Client
	sessionTTL time.Duration
	log        *zap.SugaredLogger
}

// NewClient builds a Redis client with bounded retries and timeouts. The
// same client is shared by the store and the event log.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:            addr,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		MaxRetries:      3,
		MinRetryBackoff: 50 * time.Millisecond,
		MaxRetryBackoff: 2 * time.Second,
	})
}

func NewRedisStore(rdb *redis.Client, sessionTTL time.Duration, log *zap.SugaredLogger) *RedisStore {
	return &RedisStore{rdb: rdb, sessionTTL: sessionTTL, log: log.With("component", "state")}
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Player, error) {
	raw, err := s.rdb.HGet(ctx, keyAll, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting player %s: %w", id, err)
	}
	var p Player
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decoding player %s: %w", id, err)
	}
	return &p, nil
}

func (s *RedisStore) Put(ctx context.Context, p *Player) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding player %s: %w", p.ID, err)
	}
	if err := s.rdb.HSet(ctx, keyAll, p.ID, raw).Err(); err != nil {
		return fmt.Errorf("writing player %s: %w", p.ID, err)
	}
	active, err := s.rdb.HExists(ctx, keyActive, p.ID).Result()
	if err != nil {
		return fmt.Errorf("checking active player %s: %w", p.ID, err)
	}
	if active {
		if err := s.rdb.HSet(ctx, keyActive, p.ID, raw).Err(); err != nil {
			return fmt.Errorf("writing active player %s: %w", p.ID, err)
		}
	}
	return nil
}

func (s *RedisStore) Activate(ctx context.Context, p *Player) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding player %s: %w", p.ID, err)
	}
	if err := s.rdb.HSet(ctx, keyAll, p.ID, raw).Err(); err != nil {
		return fmt.Errorf("writing player %s: %w", p.ID, err)
	}
	if err := s.rdb.HSet(ctx, keyActive, p.ID, raw).Err(); err != nil {
		return fmt.Errorf("activating player %s: %w", p.ID, err)
	}
	return nil
}

func (s *RedisStore) RemoveActive(ctx context.Context, id string) error {
	if err := s.rdb.HDel(ctx, keyActive, id).Err(); err != nil {
		return fmt.Errorf("removing active player %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) ListActive(ctx context.Context) ([]*Player, error) {
	return s.list(ctx, keyActive)
}

func (s *RedisStore) ListAll(ctx context.Context) ([]*Player, error) {
	return s.list(ctx, keyAll)
}

func (s *RedisStore) list(ctx context.Context, key string) ([]*Player, error) {
	raw, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", key, err)
	}
	players := make([]*Player, 0, len(raw))
	for id, blob := range raw {
		var p Player
		if err := json.Unmarshal([]byte(blob), &p); err != nil {
			s.log.Warnw("skipping undecodable player record", "id", id, "error", err)
			continue
		}
		players = append(players, &p)
	}
	return players, nil
}

func (s *RedisStore) IncrTeamScore(ctx context.Context, team Team) (int64, error) {
	v, err := s.rdb.Incr(ctx, teamScorePrefix+string(team)).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing team %s score: %w", team, err)
	}
	return v, nil
}

func (s *RedisStore) IncrTotalTaps(ctx context.Context) (int64, error) {
	v, err := s.rdb.Incr(ctx, keyTotalTaps).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing total taps: %w", err)
	}
	return v, nil
}

func (s *RedisStore) PushTapTime(ctx context.Context, id string, ts int64) error {
	key := tapTimesPrefix + id
	pipe := s.rdb.Pipeline()
	pipe.LPush(ctx, key, ts)
	pipe.LTrim(ctx, key, 0, TapHistoryLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pushing tap time for %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) TapTimes(ctx context.Context, id string) ([]int64, error) {
	raw, err := s.rdb.LRange(ctx, tapTimesPrefix+id, 0, TapHistoryLimit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading tap times for %s: %w", id, err)
	}
	times := make([]int64, 0, len(raw))
	for _, v := range raw {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		times = append(times, ts)
	}
	return times, nil
}

func (s *RedisStore) PutSession(ctx context.Context, sess Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session for %s: %w", sess.PlayerID, err)
	}
	if err := s.rdb.Set(ctx, sessionPrefix+sess.PlayerID, raw, s.sessionTTL).Err(); err != nil {
		return fmt.Errorf("writing session for %s: %w", sess.PlayerID, err)
	}
	return nil
}

func (s *RedisStore) GetSession(ctx context.Context, playerID string) (*Session, error) {
	raw, err := s.rdb.Get(ctx, sessionPrefix+playerID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session for %s: %w", playerID, err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("decoding session for %s: %w", playerID, err)
	}
	return &sess, nil
}

func (s *RedisStore) IncrActiveSessions(ctx context.Context, id string) (int64, error) {
	v, err := s.rdb.Incr(ctx, sessCountPrefix+id).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing sessions for %s: %w", id, err)
	}
	return v, nil
}

func (s *RedisStore) DecrActiveSessions(ctx context.Context, id string) (int64, error) {
	v, err := s.rdb.Decr(ctx, sessCountPrefix+id).Result()
	if err != nil {
		return 0, fmt.Errorf("decrementing sessions for %s: %w", id, err)
	}
	if v < 0 {
		// Counter drift from a missed join; clamp rather than go negative.
		if err := s.rdb.Set(ctx, sessCountPrefix+id, 0, 0).Err(); err != nil {
			return 0, fmt.Errorf("resetting sessions for %s: %w", id, err)
		}
		v = 0
	}
	return v, nil
}

func (s *RedisStore) GameState(ctx context.Context) (GameState, error) {
	pipe := s.rdb.Pipeline()
	aCmd := pipe.Get(ctx, teamScorePrefix+string(TeamA))
	bCmd := pipe.Get(ctx, teamScorePrefix+string(TeamB))
	totalCmd := pipe.Get(ctx, keyTotalTaps)
	activeCmd := pipe.HLen(ctx, keyActive)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return GameState{}, fmt.Errorf("reading game state: %w", err)
	}
	gs := GameState{
		TeamAScore:    counterValue(aCmd),
		TeamBScore:    counterValue(bCmd),
		TotalTaps:     counterValue(totalCmd),
		ActivePlayers: int(activeCmd.Val()),
		LastUpdate:    time.Now().UnixMilli(),
	}
	return gs, nil
}

func counterValue(cmd *redis.StringCmd) int64 {
	v, err := cmd.Int64()
	if err != nil {
		return 0
	}
	return v
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
