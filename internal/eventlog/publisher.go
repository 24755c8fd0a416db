package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Publisher appends JSON payloads to named ordered streams. The key is the
// player id; all events sharing a key land in publish order on the same
// stream, so per-player ordering holds under concurrent production.
type Publisher interface {
	Publish(ctx context.Context, stream, key string, payload any) error
	// PublishAsync is fire-and-forget for analytics side effects: failures
	// are logged, never surfaced to the caller.
	PublishAsync(stream, key string, payload any)
}

// RedisPublisher writes to Redis Streams via XADD. Transient failures ride
// the client's built-in retry/backoff.
type RedisPublisher struct {
	rdb *redis.Client
	log *zap.SugaredLogger
}

func NewRedisPublisher(rdb *redis.Client, log *zap.SugaredLogger) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, log: log.With("component", "eventlog")}
}

func (p *RedisPublisher) Publish(ctx context.Context, stream, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", stream, err)
	}
	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"key": key, "payload": raw},
	}).Err()
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", stream, err)
	}
	return nil
}

func (p *RedisPublisher) PublishAsync(stream, key string, payload any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Publish(ctx, stream, key, payload); err != nil {
			p.log.Warnw("async publish failed", "stream", stream, "key", key, "error", err)
		}
	}()
}
