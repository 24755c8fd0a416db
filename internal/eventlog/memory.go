package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type memoryMessage struct {
	key     string
	payload []byte
}

const memoryStreamCap = 1024

// MemoryLog is an in-process event log for tests and Redis-less runs. One
// buffered channel per stream keeps publish order; a single Run loop per
// stream preserves it on the way out.
type MemoryLog struct {
	mu      sync.Mutex
	streams map[string]chan memoryMessage
	log     *zap.SugaredLogger
}

func NewMemoryLog(log *zap.SugaredLogger) *MemoryLog {
	return &MemoryLog{
		streams: make(map[string]chan memoryMessage),
		log:     log.With("component", "eventlog"),
	}
}

func (m *MemoryLog) channel(stream string) chan memoryMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.streams[stream]
	if !ok {
		ch = make(chan memoryMessage, memoryStreamCap)
		m.streams[stream] = ch
	}
	return ch
}

func (m *MemoryLog) Publish(_ context.Context, stream, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", stream, err)
	}
	ch := m.channel(stream)
	msg := memoryMessage{key: key, payload: raw}
	select {
	case ch <- msg:
		return nil
	default:
	}
	// A stream nobody consumes fills up; evict the oldest entry so the
	// newest events survive.
	select {
	case <-ch:
		m.log.Debugw("stream full, evicting oldest", "stream", stream)
	default:
	}
	select {
	case ch <- msg:
		return nil
	default:
		return fmt.Errorf("stream %s full", stream)
	}
}

func (m *MemoryLog) PublishAsync(stream, key string, payload any) {
	if err := m.Publish(context.Background(), stream, key, payload); err != nil {
		m.log.Warnw("async publish failed", "stream", stream, "key", key, "error", err)
	}
}

// Run consumes stream until ctx is cancelled.
func (m *MemoryLog) Run(ctx context.Context, stream string, h Handler) error {
	ch := m.channel(stream)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-ch:
			if err := h(ctx, msg.key, msg.payload); err != nil {
				m.log.Errorw("handler failed, skipping event", "stream", stream, "key", msg.key, "error", err)
			}
		}
	}
}
