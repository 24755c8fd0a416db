package eventlog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Handler processes one consumed payload. A nil return commits the message;
// an error marks it failed-and-skipped after the client's retries are spent.
type Handler func(ctx context.Context, key string, payload []byte) error

// Source is an infinite, restartable, ordered sequence of stream payloads
// with consumer-group semantics.
type Source interface {
	Run(ctx context.Context, stream string, h Handler) error
}

// RedisConsumer reads a stream through a consumer group. Messages are acked
// only after the handler returns, so delivery is at-least-once; a consumer
// crash between applying and acking can replay a message.
type RedisConsumer struct {
	rdb      *redis.Client
	group    string
	consumer string
	log      *zap.SugaredLogger
}

func NewRedisConsumer(rdb *redis.Client, group, consumer string, log *zap.SugaredLogger) *RedisConsumer {
	return &RedisConsumer{
		rdb:      rdb,
		group:    group,
		consumer: consumer,
		log:      log.With("component", "eventlog", "group", group),
	}
}

// Run blocks consuming stream until ctx is cancelled.
func (c *RedisConsumer) Run(ctx context.Context, stream string, h Handler) error {
	err := c.rdb.XGroupCreateMkStream(ctx, stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating group %s on %s: %w", c.group, stream, err)
	}

	// A run that died between read and ack leaves entries in this
	// consumer's pending list; replay those before taking new work.
	cursor := "0"
	for {
		if ctx.Err() != nil {
			return nil
		}
		res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{stream, cursor},
			Count:    32,
			Block:    5 * time.Second,
		}).Result()
		if errors.Is(err, redis.Nil) {
			cursor = ">"
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warnw("read failed, backing off", "stream", stream, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		pending := 0
		for _, str := range res {
			pending += len(str.Messages)
			for _, msg := range str.Messages {
				c.handle(ctx, stream, msg, h)
			}
		}
		if cursor != ">" {
			if pending > 0 {
				c.log.Infow("replayed pending entries", "stream", stream, "count", pending)
			} else {
				cursor = ">"
			}
		}
	}
}

func (c *RedisConsumer) handle(ctx context.Context, stream string, msg redis.XMessage, h Handler) {
	key, _ := msg.Values["key"].(string)
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		// Malformed entry: log and skip, never stall the stream.
		c.log.Warnw("malformed stream entry", "stream", stream, "id", msg.ID)
	} else if err := h(ctx, key, []byte(payload)); err != nil {
		// The store client already retried with backoff; record and move on.
		c.log.Errorw("handler failed, skipping event", "stream", stream, "id", msg.ID, "key", key, "error", err)
	}
	if err := c.rdb.XAck(ctx, stream, c.group, msg.ID).Err(); err != nil {
		c.log.Warnw("ack failed", "stream", stream, "id", msg.ID, "error", err)
	}
}
