package wshub

import (
	"context"
	"time"

	"github.com/coder/websocket"
)

// Latency band labels, coarsest useful resolution for gameplay feedback.
const (
	BandExcellent = "excellent"
	BandGood      = "good"
	BandFair      = "fair"
	BandPoor      = "poor"
)

// LatencyBand classifies a round-trip time in milliseconds.
func LatencyBand(ms int64) string {
	switch {
	case ms < 50:
		return BandExcellent
	case ms < 150:
		return BandGood
	case ms < 300:
		return BandFair
	default:
		return BandPoor
	}
}

// Coordinator receives the gateway's protocol signals. Implementations must
// not block the read loop on slow work.
type Coordinator interface {
	// Connected fires once per socket, before any join.
	Connected(ctx context.Context, c *Client)
	// Join binds the connection to a player.
	Join(ctx context.Context, c *Client, data JoinData)
	// Tap scores one tap for the bound player.
	Tap(ctx context.Context, c *Client)
	// Pong reports a completed latency probe.
	Pong(ctx context.Context, c *Client, latencyMS int64)
	// Disconnect fires when the socket closes, joined or not.
	Disconnect(ctx context.Context, c *Client)
}

// Serve runs one connection to completion: register, greet, pump, probe,
// read until the socket dies, then tear down. Blocks until the connection
// closes.
func (h *Hub) Serve(ctx context.Context, c *Client, coord Coordinator, pingInterval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Register(c)
	defer func() {
		coord.Disconnect(ctx, c)
		h.Unregister(c.ConnID)
	}()

	go c.WritePump(ctx)
	go h.pingLoop(ctx, c, pingInterval)

	coord.Connected(ctx, c)

	for {
		_, raw, err := c.Conn.Read(ctx)
		if err != nil {
			return
		}
		h.dispatch(ctx, c, coord, raw)
	}
}

func (h *Hub) dispatch(ctx context.Context, c *Client, coord Coordinator, raw []byte) {
	msg, err := ParseInbound(raw)
	if err != nil {
		// Malformed or unknown frames are discarded with a record.
		h.log.Warnw("rejecting frame", "conn", c.ConnID, "error", err)
		return
	}

	switch msg.Type {
	case TypeUserJoin:
		data, err := msg.JoinPayload()
		if err != nil {
			h.log.Warnw("rejecting join", "conn", c.ConnID, "error", err)
			return
		}
		coord.Join(ctx, c, data)
	case TypeTap:
		coord.Tap(ctx, c)
	case TypePing:
		// Client-initiated probe: echo the timestamp back.
		c.Enqueue(Outbound{Type: TypePong, Timestamp: msg.Timestamp})
	case TypePong:
		// Reply to our own unsolicited ping.
		latency := time.Now().UnixMilli() - msg.Timestamp
		if latency < 0 {
			return
		}
		c.SetLatency(latency)
		coord.Pong(ctx, c, latency)
	}
}

// pingLoop sends an unsolicited ping at a fixed interval so the client can
// echo it back as a pong. Independent per connection; never touches tap or
// join processing.
func (h *Hub) pingLoop(ctx context.Context, c *Client, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Enqueue(Outbound{Type: TypePing, Timestamp: time.Now().UnixMilli()})
		}
	}
}

// CloseClient closes the underlying socket with a normal status.
func CloseClient(c *Client) {
	_ = c.Conn.Close(websocket.StatusNormalClosure, "")
}
