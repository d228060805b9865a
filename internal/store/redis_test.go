package store

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/click-arena/click-arena-backend/internal/models"
)

func setupRedisStore(t *testing.T) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // 테스트용 DB
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available:", err)
	}

	// 테스트 전 DB 초기화
	client.FlushDB(ctx)

	return NewRedisStoreWithClient(client)
}

func TestRedisStore_CreateAndGetPlayer(t *testing.T) {
	st := setupRedisStore(t)
	defer st.Close()
	ctx := context.Background()

	require.NoError(t, st.CreatePlayer(ctx, newPlayer("p1", "alice", 10, models.StatusOnline)))

	got, err := st.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	byName, err := st.GetPlayerByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "p1", byName.ID)

	err = st.CreatePlayer(ctx, newPlayer("p2", "alice", 10, models.StatusOnline))
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = st.GetPlayer(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_DeletePlayer(t *testing.T) {
	st := setupRedisStore(t)
	defer st.Close()
	ctx := context.Background()

	require.NoError(t, st.CreatePlayer(ctx, newPlayer("p1", "alice", 10, models.StatusOnline)))
	require.NoError(t, st.DeletePlayer(ctx, "p1"))

	_, err := st.GetPlayer(ctx, "p1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.GetPlayerByUsername(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	top, err := st.TopPlayers(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, top)

	// 사용자명 예약이 풀려 재등록 가능
	require.NoError(t, st.CreatePlayer(ctx, newPlayer("p2", "alice", 10, models.StatusOnline)))

	assert.NoError(t, st.DeletePlayer(ctx, "ghost"))
}

func TestRedisStore_TransactMultiRecord(t *testing.T) {
	st := setupRedisStore(t)
	defer st.Close()
	ctx := context.Background()

	require.NoError(t, st.CreatePlayer(ctx, newPlayer("p1", "alice", 10, models.StatusOnline)))
	require.NoError(t, st.CreatePlayer(ctx, newPlayer("p2", "bob", 20, models.StatusOnline)))

	err := st.Transact(ctx, func(tx Tx) error {
		p1, err := tx.Player("p1")
		if err != nil {
			return err
		}
		p2, err := tx.Player("p2")
		if err != nil {
			return err
		}
		p1.Power, p2.Power = p2.Power, p1.Power
		tx.SavePlayer(p1)
		tx.SavePlayer(p2)
		return nil
	})
	require.NoError(t, err)

	p1, _ := st.GetPlayer(ctx, "p1")
	p2, _ := st.GetPlayer(ctx, "p2")
	assert.Equal(t, int64(20), p1.Power)
	assert.Equal(t, int64(10), p2.Power)
}

func TestRedisStore_TransactConflict(t *testing.T) {
	st := setupRedisStore(t)
	defer st.Close()
	ctx := context.Background()

	require.NoError(t, st.CreatePlayer(ctx, newPlayer("p1", "alice", 10, models.StatusOnline)))

	// WATCH 이후 외부 쓰기 → 커밋은 충돌해야 한다
	first := true
	err := st.Transact(ctx, func(tx Tx) error {
		p, err := tx.Player("p1")
		if err != nil {
			return err
		}
		if first {
			first = false
			require.NoError(t, st.Transact(ctx, func(inner Tx) error {
				q, err := inner.Player("p1")
				if err != nil {
					return err
				}
				q.Power = 42
				inner.SavePlayer(q)
				return nil
			}))
		}
		p.Power++
		tx.SavePlayer(p)
		return nil
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRedisStore_Indexes(t *testing.T) {
	st := setupRedisStore(t)
	defer st.Close()
	ctx := context.Background()

	require.NoError(t, st.CreatePlayer(ctx, newPlayer("p1", "alice", 30, models.StatusOnline)))
	require.NoError(t, st.CreatePlayer(ctx, newPlayer("p2", "bob", 100, models.StatusOnline)))

	require.NoError(t, st.Transact(ctx, func(tx Tx) error {
		p, err := tx.Player("p1")
		if err != nil {
			return err
		}
		p.Status = models.StatusSearching
		tx.SavePlayer(p)
		return nil
	}))

	searching, err := st.SearchingPlayers(ctx, "")
	require.NoError(t, err)
	require.Len(t, searching, 1)
	assert.Equal(t, "p1", searching[0].ID)

	top, err := st.TopPlayers(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "p2", top[0].ID)

	// searching에서 빠지면 인덱스에서도 빠진다
	require.NoError(t, st.Transact(ctx, func(tx Tx) error {
		p, err := tx.Player("p1")
		if err != nil {
			return err
		}
		p.Status = models.StatusOnline
		tx.SavePlayer(p)
		return nil
	}))
	searching, err = st.SearchingPlayers(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, searching)
}

func TestRedisStore_StaleChallenges(t *testing.T) {
	st := setupRedisStore(t)
	defer st.Close()
	ctx := context.Background()

	require.NoError(t, st.CreatePlayer(ctx, newPlayer("p1", "alice", 10, models.StatusOnline)))

	require.NoError(t, st.Transact(ctx, func(tx Tx) error {
		p, err := tx.Player("p1")
		if err != nil {
			return err
		}
		p.Status = models.StatusChallenging
		p.CurrentOpponent = "p2"
		tx.SavePlayer(p)
		return nil
	}))

	stale, err := st.StaleChallenges(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, stale)

	stale, err = st.StaleChallenges(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, stale)
}

func TestRedisStore_PubSub(t *testing.T) {
	st := setupRedisStore(t)
	defer st.Close()
	ctx := context.Background()

	require.NoError(t, st.CreatePlayer(ctx, newPlayer("p1", "alice", 10, models.StatusOnline)))

	sub, err := st.Subscribe(ctx, "p1")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, st.Transact(ctx, func(tx Tx) error {
		p, err := tx.Player("p1")
		if err != nil {
			return err
		}
		p.Power = 11
		tx.SavePlayer(p)
		tx.Publish(Event{Type: EventPlayerUpdated, PlayerID: "p1"})
		return nil
	}))

	select {
	case ev := <-sub.Events():
		assert.Equal(t, EventPlayerUpdated, ev.Type)
		assert.Equal(t, "p1", ev.PlayerID)
	case <-time.After(2 * time.Second):
		t.Fatal("missing pub/sub event")
	}
}
