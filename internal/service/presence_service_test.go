package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/click-arena/click-arena-backend/internal/game"
	"github.com/click-arena/click-arena-backend/internal/models"
	"github.com/click-arena/click-arena-backend/internal/store"
)

func newTestStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedPlayer(t *testing.T, st *store.MemoryStore, id, username string, power int64, status models.PlayerStatus) {
	t.Helper()
	now := time.Now()
	err := st.CreatePlayer(context.Background(), &models.PlayerRecord{
		ID:        id,
		Username:  username,
		Status:    status,
		Power:     power,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("failed to seed player %s: %v", id, err)
	}
}

func newPresenceFixture(t *testing.T) (*store.MemoryStore, *PresenceService, *MatchService) {
	t.Helper()
	st := newTestStore(t)
	ms := NewMatchService(st, nil, game.NewSeededDice(1))
	ps := NewPresenceService(st, ms, 3)
	return st, ps, ms
}

func TestJoinQueueAlone(t *testing.T) {
	st, ps, _ := newPresenceFixture(t)
	seedPlayer(t, st, "p1", "alice", 10, models.StatusOnline)

	match, err := ps.JoinQueue(context.Background(), "p1")
	if err != nil {
		t.Fatalf("JoinQueue failed: %v", err)
	}
	if match != nil {
		t.Fatalf("expected no match with empty queue, got %s", match.ID)
	}

	p, _ := st.GetPlayer(context.Background(), "p1")
	if p.Status != models.StatusSearching {
		t.Errorf("expected status searching, got %s", p.Status)
	}
}

func TestJoinQueuePairsClosestPower(t *testing.T) {
	st, ps, _ := newPresenceFixture(t)
	seedPlayer(t, st, "p1", "alice", 100, models.StatusOnline)
	seedPlayer(t, st, "p2", "bob", 90, models.StatusSearching)
	seedPlayer(t, st, "p3", "carol", 500, models.StatusSearching)

	match, err := ps.JoinQueue(context.Background(), "p1")
	if err != nil {
		t.Fatalf("JoinQueue failed: %v", err)
	}
	if match == nil {
		t.Fatal("expected a match, got none")
	}
	if !match.HasPlayer("p2") {
		t.Errorf("expected pairing with closest power p2, match has %s and %s", match.Player1ID, match.Player2ID)
	}
	if match.Ruleset != models.RulesetStatCombat {
		t.Errorf("queue matches should use stat combat, got %s", match.Ruleset)
	}
	if match.Player1Health != models.MaxHealth || match.Player2Health != models.MaxHealth {
		t.Errorf("expected both players at max health, got %d and %d", match.Player1Health, match.Player2Health)
	}

	for _, id := range []string{"p1", "p2"} {
		p, _ := st.GetPlayer(context.Background(), id)
		if p.Status != models.StatusInMatch {
			t.Errorf("player %s: expected status in_match, got %s", id, p.Status)
		}
	}
	p3, _ := st.GetPlayer(context.Background(), "p3")
	if p3.Status != models.StatusSearching {
		t.Errorf("p3 should still be searching, got %s", p3.Status)
	}
}

func TestJoinQueueTieBreakByID(t *testing.T) {
	st, ps, _ := newPresenceFixture(t)
	seedPlayer(t, st, "p9", "alice", 100, models.StatusOnline)
	seedPlayer(t, st, "p2", "bob", 90, models.StatusSearching)
	seedPlayer(t, st, "p5", "carol", 110, models.StatusSearching)

	// 파워 차가 같으면 (둘 다 10) ID가 작은 쪽
	match, err := ps.JoinQueue(context.Background(), "p9")
	if err != nil {
		t.Fatalf("JoinQueue failed: %v", err)
	}
	if match == nil {
		t.Fatal("expected a match")
	}
	if !match.HasPlayer("p2") {
		t.Errorf("tie should break to the lowest id, match has %s and %s", match.Player1ID, match.Player2ID)
	}
}

func TestJoinQueueRejectsEngagedPlayer(t *testing.T) {
	st, ps, _ := newPresenceFixture(t)
	seedPlayer(t, st, "p1", "alice", 10, models.StatusInMatch)
	seedPlayer(t, st, "p2", "bob", 10, models.StatusChallenging)
	seedPlayer(t, st, "p3", "carol", 10, models.StatusOffline)

	if _, err := ps.JoinQueue(context.Background(), "p1"); !errors.Is(err, ErrAlreadyEngaged) {
		t.Errorf("in-match player: expected ErrAlreadyEngaged, got %v", err)
	}
	if _, err := ps.JoinQueue(context.Background(), "p2"); !errors.Is(err, ErrAlreadyEngaged) {
		t.Errorf("challenging player: expected ErrAlreadyEngaged, got %v", err)
	}
	if _, err := ps.JoinQueue(context.Background(), "p3"); !errors.Is(err, ErrPlayerOffline) {
		t.Errorf("offline player: expected ErrPlayerOffline, got %v", err)
	}
	if _, err := ps.JoinQueue(context.Background(), "ghost"); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("unknown player: expected ErrPlayerNotFound, got %v", err)
	}
}

func TestJoinQueueIdempotentWhileSearching(t *testing.T) {
	st, ps, _ := newPresenceFixture(t)
	seedPlayer(t, st, "p1", "alice", 10, models.StatusOnline)

	if _, err := ps.JoinQueue(context.Background(), "p1"); err != nil {
		t.Fatalf("first JoinQueue failed: %v", err)
	}
	if _, err := ps.JoinQueue(context.Background(), "p1"); !errors.Is(err, ErrAlreadyEngaged) {
		t.Errorf("re-join while searching: expected ErrAlreadyEngaged, got %v", err)
	}

	p, _ := st.GetPlayer(context.Background(), "p1")
	if p.Status != models.StatusSearching {
		t.Errorf("status should stay searching, got %s", p.Status)
	}
}

func TestLeaveQueue(t *testing.T) {
	st, ps, _ := newPresenceFixture(t)
	seedPlayer(t, st, "p1", "alice", 10, models.StatusOnline)

	if err := ps.LeaveQueue(context.Background(), "p1"); !errors.Is(err, ErrNotSearching) {
		t.Errorf("leave while not searching: expected ErrNotSearching, got %v", err)
	}

	if _, err := ps.JoinQueue(context.Background(), "p1"); err != nil {
		t.Fatalf("JoinQueue failed: %v", err)
	}
	if err := ps.LeaveQueue(context.Background(), "p1"); err != nil {
		t.Fatalf("LeaveQueue failed: %v", err)
	}

	p, _ := st.GetPlayer(context.Background(), "p1")
	if p.Status != models.StatusOnline {
		t.Errorf("expected status online after leaving, got %s", p.Status)
	}

	// 떠난 플레이어는 더 이상 페어링 후보가 아니다
	seedPlayer(t, st, "p2", "bob", 10, models.StatusOnline)
	match, err := ps.JoinQueue(context.Background(), "p2")
	if err != nil {
		t.Fatalf("JoinQueue failed: %v", err)
	}
	if match != nil {
		t.Errorf("expected empty queue after leave, got match %s", match.ID)
	}
}

func TestOfflineLeavesQueue(t *testing.T) {
	st, ps, _ := newPresenceFixture(t)
	seedPlayer(t, st, "p1", "alice", 10, models.StatusOnline)

	if _, err := ps.JoinQueue(context.Background(), "p1"); err != nil {
		t.Fatalf("JoinQueue failed: %v", err)
	}
	if err := ps.Offline(context.Background(), "p1"); err != nil {
		t.Fatalf("Offline failed: %v", err)
	}

	p, _ := st.GetPlayer(context.Background(), "p1")
	if p.Status != models.StatusOffline {
		t.Errorf("expected offline, got %s", p.Status)
	}

	candidates, _ := st.SearchingPlayers(context.Background(), "")
	if len(candidates) != 0 {
		t.Errorf("expected no searching players, got %d", len(candidates))
	}
}
