package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/click-arena/click-arena-backend/internal/models"
)

const (
	playerKeyPrefix   = "player:"
	usernameKeyPrefix = "username:"
	matchKeyPrefix    = "match:"
	searchingKey      = "players:searching"
	challengesKey     = "challenges:pending"
	leaderboardKey    = "leaderboard:power"
	eventChanPrefix   = "events:player:"
	eventChanPattern  = "events:player:*"
)

// RedisStore Redis 기반 Store 구현.
// WATCH/MULTI 낙관적 트랜잭션으로 다중 레코드 원자성을, Pub/Sub으로
// 푸시 알림을 제공한다. searching/challenge/leaderboard 인덱스는
// 레코드 쓰기와 같은 트랜잭션 안에서 유지된다.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore Redis 연결 및 Store 생성
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient 기존 클라이언트로 Store 생성 (테스트용)
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func playerKey(id string) string   { return playerKeyPrefix + id }
func usernameKey(u string) string  { return usernameKeyPrefix + u }
func matchKey(id string) string    { return matchKeyPrefix + id }
func eventChan(id string) string   { return eventChanPrefix + id }

// cmdErr Redis 명령 실패(연결/타임아웃)를 ErrUnavailable로 분류한다
func cmdErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

// CreatePlayer 플레이어 생성. 사용자명 인덱스를 SETNX로 선점해
// 중복 등록을 막는다.
func (s *RedisStore) CreatePlayer(ctx context.Context, p *models.PlayerRecord) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal player: %w", err)
	}

	ok, err := s.client.SetNX(ctx, usernameKey(p.Username), p.ID, 0).Result()
	if err != nil {
		return cmdErr("failed to reserve username", err)
	}
	if !ok {
		return ErrUsernameTaken
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, playerKey(p.ID), data, 0)
	pipe.ZAdd(ctx, leaderboardKey, redis.Z{Score: float64(p.Power), Member: p.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return cmdErr("failed to create player", err)
	}

	return nil
}

// DeletePlayer 레코드와 사용자명 예약, 파생 인덱스를 한 트랜잭션으로 제거
func (s *RedisStore) DeletePlayer(ctx context.Context, id string) error {
	p, err := s.GetPlayer(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, playerKey(id), usernameKey(p.Username))
	pipe.ZRem(ctx, leaderboardKey, id)
	pipe.SRem(ctx, searchingKey, id)
	pipe.ZRem(ctx, challengesKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return cmdErr("failed to delete player", err)
	}
	return nil
}

func (s *RedisStore) GetPlayer(ctx context.Context, id string) (*models.PlayerRecord, error) {
	return s.getPlayer(ctx, s.client, id)
}

func (s *RedisStore) getPlayer(ctx context.Context, c redis.Cmdable, id string) (*models.PlayerRecord, error) {
	val, err := c.Get(ctx, playerKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, cmdErr("failed to get player", err)
	}

	var p models.PlayerRecord
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player: %w", err)
	}
	return &p, nil
}

func (s *RedisStore) GetPlayerByUsername(ctx context.Context, username string) (*models.PlayerRecord, error) {
	id, err := s.client.Get(ctx, usernameKey(username)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, cmdErr("failed to resolve username", err)
	}
	return s.GetPlayer(ctx, id)
}

func (s *RedisStore) GetMatch(ctx context.Context, id string) (*models.MatchRecord, error) {
	val, err := s.client.Get(ctx, matchKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, cmdErr("failed to get match", err)
	}

	var m models.MatchRecord
	if err := json.Unmarshal([]byte(val), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match: %w", err)
	}
	return &m, nil
}

// SearchingPlayers searching 인덱스를 읽은 뒤 레코드의 status를 재검증한다.
// 인덱스가 잠깐 뒤처져도 잘못된 후보가 나가지 않도록.
func (s *RedisStore) SearchingPlayers(ctx context.Context, exclude string) ([]*models.PlayerRecord, error) {
	ids, err := s.client.SMembers(ctx, searchingKey).Result()
	if err != nil {
		return nil, cmdErr("failed to read searching set", err)
	}

	players := make([]*models.PlayerRecord, 0, len(ids))
	for _, id := range ids {
		if id == exclude {
			continue
		}
		p, err := s.GetPlayer(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if p.Status != models.StatusSearching {
			continue
		}
		players = append(players, p)
	}
	return players, nil
}

func (s *RedisStore) StaleChallenges(ctx context.Context, before time.Time) ([]string, error) {
	ids, err := s.client.ZRangeByScore(ctx, challengesKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(before.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, cmdErr("failed to read pending challenges", err)
	}
	return ids, nil
}

func (s *RedisStore) TopPlayers(ctx context.Context, limit int) ([]*models.PlayerRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	ids, err := s.client.ZRevRange(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, cmdErr("failed to read leaderboard", err)
	}

	players := make([]*models.PlayerRecord, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetPlayer(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, nil
}

// Transact WATCH 기반 낙관적 트랜잭션. fn 안에서 읽은 키가 커밋 전에
// 바뀌면 MULTI/EXEC가 무효화되고 ErrConflict를 반환한다.
func (s *RedisStore) Transact(ctx context.Context, fn func(tx Tx) error) error {
	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		tx := &redisTx{
			ctx:     ctx,
			tx:      rtx,
			players: make(map[string]*models.PlayerRecord),
			matches: make(map[string]*models.MatchRecord),
			prev:    make(map[string]models.PlayerStatus),
		}

		if err := fn(tx); err != nil {
			return err
		}

		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return tx.flush(pipe)
		})
		return err
	})

	if err == redis.TxFailedErr {
		return ErrConflict
	}
	return err
}

// redisTx 하나의 WATCH 트랜잭션 범위.
// 읽기는 즉시 WATCH를 걸고, 쓰기/발행은 커밋 시점까지 버퍼링한다.
type redisTx struct {
	ctx context.Context
	tx  *redis.Tx

	players map[string]*models.PlayerRecord // 읽은 플레이어 (읽기 캐시)
	matches map[string]*models.MatchRecord
	prev    map[string]models.PlayerStatus // 인덱스 유지용 이전 status

	savedPlayers []*models.PlayerRecord
	savedMatches []*models.MatchRecord
	events       []Event
}

func (t *redisTx) Player(id string) (*models.PlayerRecord, error) {
	if p, ok := t.players[id]; ok {
		return p, nil
	}

	key := playerKey(id)
	if err := t.tx.Watch(t.ctx, key).Err(); err != nil {
		return nil, cmdErr("failed to watch player", err)
	}

	val, err := t.tx.Get(t.ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, cmdErr("failed to get player", err)
	}

	var p models.PlayerRecord
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player: %w", err)
	}

	t.players[id] = &p
	t.prev[id] = p.Status
	return &p, nil
}

func (t *redisTx) PlayerByUsername(username string) (*models.PlayerRecord, error) {
	id, err := t.tx.Get(t.ctx, usernameKey(username)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, cmdErr("failed to resolve username", err)
	}
	return t.Player(id)
}

func (t *redisTx) Match(id string) (*models.MatchRecord, error) {
	if m, ok := t.matches[id]; ok {
		return m, nil
	}

	key := matchKey(id)
	if err := t.tx.Watch(t.ctx, key).Err(); err != nil {
		return nil, cmdErr("failed to watch match", err)
	}

	val, err := t.tx.Get(t.ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, cmdErr("failed to get match", err)
	}

	var m models.MatchRecord
	if err := json.Unmarshal([]byte(val), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match: %w", err)
	}

	t.matches[id] = &m
	return &m, nil
}

func (t *redisTx) SavePlayer(p *models.PlayerRecord) {
	p.UpdatedAt = time.Now()
	t.savedPlayers = append(t.savedPlayers, p)
}

func (t *redisTx) SaveMatch(m *models.MatchRecord) {
	t.savedMatches = append(t.savedMatches, m)
}

func (t *redisTx) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}
	t.events = append(t.events, event)
}

// flush 버퍼링된 쓰기를 MULTI 파이프라인에 싣는다.
// 레코드 본문과 파생 인덱스(searching/challenges/leaderboard),
// 이벤트 발행이 한 트랜잭션으로 적용된다.
func (t *redisTx) flush(pipe redis.Pipeliner) error {
	now := time.Now()

	for _, p := range t.savedPlayers {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal player: %w", err)
		}
		pipe.Set(t.ctx, playerKey(p.ID), data, 0)
		pipe.ZAdd(t.ctx, leaderboardKey, redis.Z{Score: float64(p.Power), Member: p.ID})

		if p.Status == models.StatusSearching {
			pipe.SAdd(t.ctx, searchingKey, p.ID)
		} else {
			pipe.SRem(t.ctx, searchingKey, p.ID)
		}

		switch {
		case p.Status == models.StatusChallenging && t.prev[p.ID] != models.StatusChallenging:
			pipe.ZAdd(t.ctx, challengesKey, redis.Z{Score: float64(now.Unix()), Member: p.ID})
		case p.Status != models.StatusChallenging:
			pipe.ZRem(t.ctx, challengesKey, p.ID)
		}
	}

	for _, m := range t.savedMatches {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal match: %w", err)
		}
		pipe.Set(t.ctx, matchKey(m.ID), data, 0)
	}

	for _, ev := range t.events {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		pipe.Publish(t.ctx, eventChan(ev.PlayerID), data)
	}

	return nil
}

// Subscribe 단일 플레이어 채널 구독
func (s *RedisStore) Subscribe(ctx context.Context, playerID string) (Subscription, error) {
	pubsub := s.client.Subscribe(ctx, eventChan(playerID))
	return newRedisSubscription(ctx, pubsub)
}

// SubscribeAll 모든 플레이어 채널 패턴 구독
func (s *RedisStore) SubscribeAll(ctx context.Context) (Subscription, error) {
	pubsub := s.client.PSubscribe(ctx, eventChanPattern)
	return newRedisSubscription(ctx, pubsub)
}

// Client 분산 락 등 스토어 밖 구성요소가 같은 연결을 쓰도록 노출
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan Event
}

func newRedisSubscription(ctx context.Context, pubsub *redis.PubSub) (*redisSubscription, error) {
	// 구독 확정 대기
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan Event, 64),
	}

	go func() {
		defer close(sub.events)
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			select {
			case sub.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}

func (s *redisSubscription) Events() <-chan Event {
	return s.events
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
