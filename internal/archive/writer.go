package archive

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"tapwar/internal/eventlog"
	"tapwar/internal/events"
)

const (
	bufferSize    = 1000
	batchSize     = 50
	flushInterval = 500 * time.Millisecond
)

// Sink is where flushed batches land; *DB in production.
type Sink interface {
	BatchRecordTaps(batch []events.Tap) error
	BatchRecordSessions(batch []events.Session) error
}

// Writer drains consumed tap and session events into the archive in
// batches. Buffer overflow drops events with a log record rather than
// backpressuring the consumer.
type Writer struct {
	sink     Sink
	taps     chan events.Tap
	sessions chan events.Session
	log      *zap.SugaredLogger
}

func NewWriter(sink Sink, log *zap.SugaredLogger) *Writer {
	return &Writer{
		sink:     sink,
		taps:     make(chan events.Tap, bufferSize),
		sessions: make(chan events.Session, bufferSize),
		log:      log.With("component", "archive"),
	}
}

// HandleTap is the eventlog handler for the tap-events stream.
func (w *Writer) HandleTap(_ context.Context, key string, payload []byte) error {
	var ev events.Tap
	if err := json.Unmarshal(payload, &ev); err != nil {
		w.log.Warnw("malformed tap event", "key", key, "error", err)
		return nil
	}
	select {
	case w.taps <- ev:
	default:
		w.log.Warnw("tap buffer full, dropping event", "player", ev.PlayerID)
	}
	return nil
}

// HandleSession is the eventlog handler for the session-events stream.
func (w *Writer) HandleSession(_ context.Context, key string, payload []byte) error {
	var ev events.Session
	if err := json.Unmarshal(payload, &ev); err != nil {
		w.log.Warnw("malformed session event", "key", key, "error", err)
		return nil
	}
	select {
	case w.sessions <- ev:
	default:
		w.log.Warnw("session buffer full, dropping event", "player", ev.PlayerID)
	}
	return nil
}

// Run consumes both streams under the archive group and flushes batches
// until ctx ends. Blocks.
func (w *Writer) Run(ctx context.Context, tapSrc, sessionSrc eventlog.Source) {
	go func() {
		if err := tapSrc.Run(ctx, events.StreamTaps, w.HandleTap); err != nil {
			w.log.Errorw("tap archive consumer stopped", "error", err)
		}
	}()
	go func() {
		if err := sessionSrc.Run(ctx, events.StreamSessions, w.HandleSession); err != nil {
			w.log.Errorw("session archive consumer stopped", "error", err)
		}
	}()
	w.flushLoop(ctx)
}

func (w *Writer) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	tapBatch := make([]events.Tap, 0, batchSize)
	sessionBatch := make([]events.Session, 0, batchSize)

	flushTaps := func() {
		if len(tapBatch) == 0 {
			return
		}
		if err := w.sink.BatchRecordTaps(tapBatch); err != nil {
			w.log.Errorw("tap batch write failed", "count", len(tapBatch), "error", err)
		}
		tapBatch = tapBatch[:0]
	}
	flushSessions := func() {
		if len(sessionBatch) == 0 {
			return
		}
		if err := w.sink.BatchRecordSessions(sessionBatch); err != nil {
			w.log.Errorw("session batch write failed", "count", len(sessionBatch), "error", err)
		}
		sessionBatch = sessionBatch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flushTaps()
			flushSessions()
			return
		case ev := <-w.taps:
			tapBatch = append(tapBatch, ev)
			if len(tapBatch) >= batchSize {
				flushTaps()
			}
		case ev := <-w.sessions:
			sessionBatch = append(sessionBatch, ev)
			if len(sessionBatch) >= batchSize {
				flushSessions()
			}
		case <-ticker.C:
			flushTaps()
			flushSessions()
		}
	}
}
