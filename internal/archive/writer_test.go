package archive

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"tapwar/internal/events"
)

type fakeSink struct {
	mu       sync.Mutex
	taps     []events.Tap
	sessions []events.Session
}

func (f *fakeSink) BatchRecordTaps(batch []events.Tap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taps = append(f.taps, batch...)
	return nil
}

func (f *fakeSink) BatchRecordSessions(batch []events.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, batch...)
	return nil
}

func (f *fakeSink) tapCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.taps)
}

func (f *fakeSink) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func testWriter() (*Writer, *fakeSink) {
	sink := &fakeSink{}
	return NewWriter(sink, zap.NewNop().Sugar()), sink
}

func TestHandleTap_Decodes(t *testing.T) {
	w, _ := testWriter()

	raw, _ := json.Marshal(events.Tap{EventID: "e1", PlayerID: "p1", Team: "A", Timestamp: 1000})
	if err := w.HandleTap(context.Background(), "p1", raw); err != nil {
		t.Fatalf("HandleTap error: %v", err)
	}

	select {
	case ev := <-w.taps:
		if ev.EventID != "e1" || ev.PlayerID != "p1" {
			t.Errorf("buffered event = %+v", ev)
		}
	default:
		t.Fatal("event not buffered")
	}
}

func TestHandleTap_MalformedIsSkipped(t *testing.T) {
	w, _ := testWriter()
	if err := w.HandleTap(context.Background(), "k", []byte("junk")); err != nil {
		t.Errorf("malformed payload should not error: %v", err)
	}
	select {
	case <-w.taps:
		t.Fatal("malformed event should not be buffered")
	default:
	}
}

func TestFlushLoop_FlushesOnTicker(t *testing.T) {
	w, sink := testWriter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.flushLoop(ctx)

	w.taps <- events.Tap{EventID: "e1", PlayerID: "p1"}
	w.sessions <- events.Session{Kind: events.SessionStart, PlayerID: "p1"}

	deadline := time.After(2 * time.Second)
	for sink.tapCount() < 1 || sink.sessionCount() < 1 {
		select {
		case <-deadline:
			t.Fatalf("flush did not happen: taps=%d sessions=%d", sink.tapCount(), sink.sessionCount())
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestFlushLoop_FlushesFullBatch(t *testing.T) {
	w, sink := testWriter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.flushLoop(ctx)

	for i := 0; i < batchSize; i++ {
		w.taps <- events.Tap{EventID: "e", PlayerID: "p1"}
	}

	deadline := time.After(2 * time.Second)
	for sink.tapCount() < batchSize {
		select {
		case <-deadline:
			t.Fatalf("batch flush did not happen: taps=%d", sink.tapCount())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestFlushLoop_DrainsOnShutdown(t *testing.T) {
	w, sink := testWriter()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.flushLoop(ctx)
		close(done)
	}()

	w.taps <- events.Tap{EventID: "e1", PlayerID: "p1"}
	// Give the loop a moment to pull the event into its batch.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("flush loop did not exit")
	}
	if sink.tapCount() != 1 {
		t.Errorf("taps flushed on shutdown = %d, want 1", sink.tapCount())
	}
}
