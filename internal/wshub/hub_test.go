package wshub

import (
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"tapwar/internal/state"
)

func testHub() *Hub {
	return NewHub(zap.NewNop().Sugar())
}

func TestRegisterAndBroadcast(t *testing.T) {
	h := testHub()

	c1 := &Client{ConnID: "c1", Send: make(chan []byte, 16)}
	c2 := &Client{ConnID: "c2", Send: make(chan []byte, 16)}
	c3 := &Client{ConnID: "c3", Send: make(chan []byte, 16)}

	h.Register(c1)
	h.Register(c2)
	h.Register(c3)

	msg := Outbound{Type: TypeGameUpdate, Data: GameUpdate{
		GameState: state.GameState{TeamAScore: 5, TotalTaps: 5},
	}}
	h.BroadcastExcept("c1", msg)

	// c2 and c3 receive the update, c1 does not.
	for _, c := range []*Client{c2, c3} {
		select {
		case data := <-c.Send:
			var got struct {
				Type string     `json:"type"`
				Data GameUpdate `json:"data"`
			}
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != TypeGameUpdate || got.Data.GameState.TeamAScore != 5 {
				t.Fatalf("unexpected message: %+v", got)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("%s did not receive the broadcast", c.ConnID)
		}
	}

	select {
	case <-c1.Send:
		t.Fatal("excluded connection should not receive the broadcast")
	default:
	}
}

func TestSendTo(t *testing.T) {
	h := testHub()
	c := &Client{ConnID: "c1", Send: make(chan []byte, 16)}
	h.Register(c)

	if !h.SendTo("c1", Outbound{Type: TypePong, Timestamp: 42}) {
		t.Fatal("SendTo should succeed for a registered connection")
	}
	select {
	case data := <-c.Send:
		var got Outbound
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Type != TypePong || got.Timestamp != 42 {
			t.Fatalf("unexpected message: %+v", got)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("message not delivered")
	}

	if h.SendTo("ghost", Outbound{Type: TypePong}) {
		t.Fatal("SendTo should fail for an unknown connection")
	}
}

func TestUnregister(t *testing.T) {
	h := testHub()
	c := &Client{ConnID: "c1", Send: make(chan []byte, 16)}
	h.Register(c)

	h.Unregister("c1")
	if h.Get("c1") != nil {
		t.Fatal("client should be gone after Unregister")
	}
	if _, ok := <-c.Send; ok {
		t.Fatal("Send channel should be closed")
	}

	// Must not panic for an unknown id.
	h.Unregister("nonexistent")
}

func TestBroadcastDropsWhenFull(t *testing.T) {
	h := testHub()
	c := &Client{ConnID: "c1", Send: make(chan []byte, 1)}
	h.Register(c)

	c.Send <- []byte("filler")
	h.Broadcast(Outbound{Type: TypeGameUpdate})

	data := <-c.Send
	if string(data) != "filler" {
		t.Fatalf("expected filler, got: %s", data)
	}
	select {
	case <-c.Send:
		t.Fatal("overflow message should have been dropped")
	default:
	}
}

func TestBroadcastSkipsClosed(t *testing.T) {
	h := testHub()
	c := &Client{ConnID: "c1", Send: make(chan []byte, 16)}
	h.Register(c)
	close(c.Send)

	// Must not panic on the closed channel.
	h.Broadcast(Outbound{Type: TypeGameUpdate})
}

func TestClientBind(t *testing.T) {
	c := &Client{ConnID: "c1", Send: make(chan []byte, 1)}
	if c.PlayerID() != "" {
		t.Error("new connection should be anonymous")
	}
	c.Bind("p1")
	if c.PlayerID() != "p1" {
		t.Errorf("PlayerID = %q, want %q", c.PlayerID(), "p1")
	}
}

func TestLatencyBand(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{10, BandExcellent},
		{49, BandExcellent},
		{50, BandGood},
		{149, BandGood},
		{150, BandFair},
		{299, BandFair},
		{300, BandPoor},
		{1500, BandPoor},
	}
	for _, c := range cases {
		if got := LatencyBand(c.ms); got != c.want {
			t.Errorf("LatencyBand(%d) = %q, want %q", c.ms, got, c.want)
		}
	}
}
