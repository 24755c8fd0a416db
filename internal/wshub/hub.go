package wshub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// ConnMeta is captured once at socket accept; the client cannot resend it.
type ConnMeta struct {
	UserAgent  string
	RemoteAddr string
	Language   string
}

// Client is one WebSocket connection. A connection starts anonymous and is
// bound to a player id by a successful join.
type Client struct {
	ConnID string
	Meta   ConnMeta
	Conn   *websocket.Conn
	Send   chan []byte

	mu        sync.Mutex
	playerID  string
	latencyMS int64
}

// Bind attaches the connection to a player id.
func (c *Client) Bind(playerID string) {
	c.mu.Lock()
	c.playerID = playerID
	c.mu.Unlock()
}

// PlayerID returns the bound player id, or "" while anonymous.
func (c *Client) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// SetLatency records the most recent round-trip measurement.
func (c *Client) SetLatency(ms int64) {
	c.mu.Lock()
	c.latencyMS = ms
	c.mu.Unlock()
}

// Latency returns the most recent round-trip measurement in milliseconds.
func (c *Client) Latency() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latencyMS
}

// Enqueue marshals msg onto the send channel without blocking. A full or
// closed channel drops the message.
func (c *Client) Enqueue(msg Outbound) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	return c.enqueueRaw(data)
}

func (c *Client) enqueueRaw(data []byte) (ok bool) {
	defer func() {
		// Send may be closed by Unregister racing a broadcast.
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// WritePump drains the Send channel onto the socket until the channel
// closes or the context ends.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// Hub owns every live connection in this process. It is pure transport:
// registration, lookup and non-blocking fan-out.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		log:     log.With("component", "wshub"),
	}
}

// NewClient wraps an accepted socket. The send buffer absorbs broadcast
// bursts; overflow drops rather than blocks.
func (h *Hub) NewClient(connID string, conn *websocket.Conn, meta ConnMeta) *Client {
	return &Client{
		ConnID: connID,
		Meta:   meta,
		Conn:   conn,
		Send:   make(chan []byte, 64),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ConnID] = c
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if ok {
		close(c.Send)
		delete(h.clients, connID)
	}
	h.mu.Unlock()
}

// Get returns the client for connID, or nil.
func (h *Hub) Get(connID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[connID]
}

// Count reports the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast fans msg out to every connection. Marshals once; a slow or
// closed socket is skipped, never retried.
func (h *Hub) Broadcast(msg Outbound) {
	h.BroadcastExcept("", msg)
}

// BroadcastExcept fans msg out to every connection but exceptID.
func (h *Hub) BroadcastExcept(exceptID string, msg Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Warnw("broadcast marshal failed", "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		if id == exceptID {
			continue
		}
		c.enqueueRaw(data)
	}
}

// SendToPlayer delivers msg to every connection bound to playerID (a
// player may hold several tabs). Returns the number of deliveries.
func (h *Hub) SendToPlayer(playerID string, msg Outbound) int {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.clients {
		if c.PlayerID() == playerID && c.enqueueRaw(data) {
			n++
		}
	}
	return n
}

// BroadcastExceptPlayer fans msg out to every connection not bound to
// playerID.
func (h *Hub) BroadcastExceptPlayer(playerID string, msg Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Warnw("broadcast marshal failed", "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.PlayerID() == playerID {
			continue
		}
		c.enqueueRaw(data)
	}
}

// SendTo delivers msg to one connection. Returns false when the connection
// is gone or its buffer is full.
func (h *Hub) SendTo(connID string, msg Outbound) bool {
	h.mu.RLock()
	c := h.clients[connID]
	h.mu.RUnlock()
	if c == nil {
		return false
	}
	return c.Enqueue(msg)
}
