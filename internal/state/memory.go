package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used for tests and for running without
// Redis. Same semantics as RedisStore, minus durability.
type MemoryStore struct {
	mu         sync.Mutex
	active     map[string]*Player
	all        map[string]*Player
	teamScores map[Team]int64
	totalTaps  int64
	tapTimes   map[string][]int64
	sessions   map[string]Session
	sessCount  map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		active:     make(map[string]*Player),
		all:        make(map[string]*Player),
		teamScores: make(map[Team]int64),
		tapTimes:   make(map[string][]int64),
		sessions:   make(map[string]Session),
		sessCount:  make(map[string]int64),
	}
}

func clone(p *Player) *Player {
	cp := *p
	return &cp
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.all[id]
	if !ok {
		return nil, nil
	}
	return clone(p), nil
}

func (s *MemoryStore) Put(_ context.Context, p *Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all[p.ID] = clone(p)
	if _, ok := s.active[p.ID]; ok {
		s.active[p.ID] = clone(p)
	}
	return nil
}

func (s *MemoryStore) Activate(_ context.Context, p *Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all[p.ID] = clone(p)
	s.active[p.ID] = clone(p)
	return nil
}

func (s *MemoryStore) RemoveActive(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, id)
	return nil
}

func (s *MemoryStore) ListActive(_ context.Context) ([]*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*Player, 0, len(s.active))
	for _, p := range s.active {
		list = append(list, clone(p))
	}
	return list, nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*Player, 0, len(s.all))
	for _, p := range s.all {
		list = append(list, clone(p))
	}
	return list, nil
}

func (s *MemoryStore) IncrTeamScore(_ context.Context, team Team) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teamScores[team]++
	return s.teamScores[team], nil
}

func (s *MemoryStore) IncrTotalTaps(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalTaps++
	return s.totalTaps, nil
}

func (s *MemoryStore) PushTapTime(_ context.Context, id string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	times := append([]int64{ts}, s.tapTimes[id]...)
	if len(times) > TapHistoryLimit {
		times = times[:TapHistoryLimit]
	}
	s.tapTimes[id] = times
	return nil
}

func (s *MemoryStore) TapTimes(_ context.Context, id string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	times := make([]int64, len(s.tapTimes[id]))
	copy(times, s.tapTimes[id])
	return times, nil
}

func (s *MemoryStore) PutSession(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.PlayerID] = sess
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, playerID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[playerID]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *MemoryStore) IncrActiveSessions(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessCount[id]++
	return s.sessCount[id], nil
}

func (s *MemoryStore) DecrActiveSessions(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessCount[id] > 0 {
		s.sessCount[id]--
	}
	return s.sessCount[id], nil
}

func (s *MemoryStore) GameState(_ context.Context) (GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return GameState{
		TeamAScore:    s.teamScores[TeamA],
		TeamBScore:    s.teamScores[TeamB],
		TotalTaps:     s.totalTaps,
		ActivePlayers: len(s.active),
		LastUpdate:    time.Now().UnixMilli(),
	}, nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}
