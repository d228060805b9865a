package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/click-arena/click-arena-backend/internal/models"
)

// MemoryStore 인메모리 Store 구현. 로컬 개발과 결정적 테스트용.
// 레코드별 버전 번호로 Redis WATCH와 같은 낙관적 충돌 감지를 흉내낸다.
type MemoryStore struct {
	mu        sync.Mutex
	players   map[string]*models.PlayerRecord
	usernames map[string]string
	matches   map[string]*models.MatchRecord
	versions  map[string]uint64 // 레코드 키 → 버전
	pending   map[string]time.Time // 도전자 ID → 도전 시각

	subMu   sync.Mutex
	subs    map[int]*memorySubscription
	nextSub int
}

// NewMemoryStore 인메모리 Store 생성
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players:   make(map[string]*models.PlayerRecord),
		usernames: make(map[string]string),
		matches:   make(map[string]*models.MatchRecord),
		versions:  make(map[string]uint64),
		pending:   make(map[string]time.Time),
		subs:      make(map[int]*memorySubscription),
	}
}

func (s *MemoryStore) CreatePlayer(ctx context.Context, p *models.PlayerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usernames[p.Username]; taken {
		return ErrUsernameTaken
	}
	s.usernames[p.Username] = p.ID
	s.players[p.ID] = p.Clone()
	s.versions[playerKey(p.ID)]++
	return nil
}

func (s *MemoryStore) DeletePlayer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return nil
	}
	delete(s.players, id)
	delete(s.usernames, p.Username)
	delete(s.pending, id)
	// 버전은 지우지 않고 올린다. 삭제 전에 읽은 트랜잭션이 충돌로 걸리도록.
	s.versions[playerKey(id)]++
	return nil
}

func (s *MemoryStore) GetPlayer(ctx context.Context, id string) (*models.PlayerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) GetPlayerByUsername(ctx context.Context, username string) (*models.PlayerRecord, error) {
	s.mu.Lock()
	id, ok := s.usernames[username]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.GetPlayer(ctx, id)
}

func (s *MemoryStore) GetMatch(ctx context.Context, id string) (*models.MatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

func (s *MemoryStore) SearchingPlayers(ctx context.Context, exclude string) ([]*models.PlayerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var players []*models.PlayerRecord
	for id, p := range s.players {
		if id == exclude || p.Status != models.StatusSearching {
			continue
		}
		players = append(players, p.Clone())
	}
	// 결정적 순서
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players, nil
}

func (s *MemoryStore) StaleChallenges(ctx context.Context, before time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, at := range s.pending {
		if at.Before(before) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) TopPlayers(ctx context.Context, limit int) ([]*models.PlayerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}

	players := make([]*models.PlayerRecord, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, p.Clone())
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].Power != players[j].Power {
			return players[i].Power > players[j].Power
		}
		return players[i].ID < players[j].ID
	})
	if len(players) > limit {
		players = players[:limit]
	}
	return players, nil
}

// Transact 낙관적 커밋: fn 실행 중 읽은 레코드의 버전을 기억했다가
// 커밋 시 다시 비교한다. 하나라도 바뀌었으면 ErrConflict.
func (s *MemoryStore) Transact(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memoryTx{
		store:   s,
		reads:   make(map[string]uint64),
		players: make(map[string]*models.PlayerRecord),
		matches: make(map[string]*models.MatchRecord),
		prev:    make(map[string]models.PlayerStatus),
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.commit()
}

type memoryTx struct {
	store *MemoryStore

	reads   map[string]uint64
	players map[string]*models.PlayerRecord
	matches map[string]*models.MatchRecord
	prev    map[string]models.PlayerStatus

	savedPlayers []*models.PlayerRecord
	savedMatches []*models.MatchRecord
	events       []Event
}

func (t *memoryTx) Player(id string) (*models.PlayerRecord, error) {
	if p, ok := t.players[id]; ok {
		return p, nil
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	p, ok := t.store.players[id]
	t.reads[playerKey(id)] = t.store.versions[playerKey(id)]
	if !ok {
		return nil, ErrNotFound
	}

	cp := p.Clone()
	t.players[id] = cp
	t.prev[id] = cp.Status
	return cp, nil
}

func (t *memoryTx) PlayerByUsername(username string) (*models.PlayerRecord, error) {
	t.store.mu.Lock()
	id, ok := t.store.usernames[username]
	t.store.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return t.Player(id)
}

func (t *memoryTx) Match(id string) (*models.MatchRecord, error) {
	if m, ok := t.matches[id]; ok {
		return m, nil
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	m, ok := t.store.matches[id]
	t.reads[matchKey(id)] = t.store.versions[matchKey(id)]
	if !ok {
		return nil, ErrNotFound
	}

	cp := m.Clone()
	t.matches[id] = cp
	return cp, nil
}

func (t *memoryTx) SavePlayer(p *models.PlayerRecord) {
	p.UpdatedAt = time.Now()
	t.savedPlayers = append(t.savedPlayers, p)
}

func (t *memoryTx) SaveMatch(m *models.MatchRecord) {
	t.savedMatches = append(t.savedMatches, m)
}

func (t *memoryTx) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}
	t.events = append(t.events, event)
}

func (t *memoryTx) commit() error {
	t.store.mu.Lock()

	for key, ver := range t.reads {
		if t.store.versions[key] != ver {
			t.store.mu.Unlock()
			return ErrConflict
		}
	}

	now := time.Now()
	for _, p := range t.savedPlayers {
		t.store.players[p.ID] = p.Clone()
		t.store.versions[playerKey(p.ID)]++

		switch {
		case p.Status == models.StatusChallenging && t.prev[p.ID] != models.StatusChallenging:
			t.store.pending[p.ID] = now
		case p.Status != models.StatusChallenging:
			delete(t.store.pending, p.ID)
		}
	}
	for _, m := range t.savedMatches {
		t.store.matches[m.ID] = m.Clone()
		t.store.versions[matchKey(m.ID)]++
	}
	t.store.mu.Unlock()

	for _, ev := range t.events {
		t.store.deliver(ev)
	}
	return nil
}

func (s *MemoryStore) deliver(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, sub := range s.subs {
		if sub.playerID != "" && sub.playerID != ev.PlayerID {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			// 느린 구독자는 이벤트를 잃는다
		}
	}
}

func (s *MemoryStore) Subscribe(ctx context.Context, playerID string) (Subscription, error) {
	return s.subscribe(playerID), nil
}

func (s *MemoryStore) SubscribeAll(ctx context.Context) (Subscription, error) {
	return s.subscribe(""), nil
}

func (s *MemoryStore) subscribe(playerID string) *memorySubscription {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++

	sub := &memorySubscription{
		store:    s,
		id:       id,
		playerID: playerID,
		events:   make(chan Event, 64),
	}
	s.subs[id] = sub
	return sub
}

func (s *MemoryStore) Close() error {
	s.subMu.Lock()
	subs := make([]*memorySubscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	return nil
}

type memorySubscription struct {
	store    *MemoryStore
	id       int
	playerID string
	events   chan Event
	once     sync.Once
}

func (s *memorySubscription) Events() <-chan Event {
	return s.events
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.store.subMu.Lock()
		defer s.store.subMu.Unlock()
		delete(s.store.subs, s.id)
		close(s.events)
	})
	return nil
}
