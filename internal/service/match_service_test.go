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

func newMatchFixture(t *testing.T) (*store.MemoryStore, *MatchService) {
	t.Helper()
	st := newTestStore(t)
	ms := NewMatchService(st, nil, game.NewSeededDice(7))
	return st, ms
}

func cellAction(cell int) models.MatchAction {
	c := cell
	return models.MatchAction{Cell: &c}
}

// 양쪽 모두 searching으로 만들어 큐 경로의 매치를 하나 연다
func startMatch(t *testing.T, st *store.MemoryStore, ms *MatchService, ruleset models.Ruleset) *models.MatchRecord {
	t.Helper()
	setStatus(t, st, "p1", models.StatusSearching)
	setStatus(t, st, "p2", models.StatusSearching)
	match, err := ms.CreateMatch(context.Background(), "p1", "p2", ruleset)
	if err != nil {
		t.Fatalf("CreateMatch failed: %v", err)
	}
	return match
}

func setStatus(t *testing.T, st *store.MemoryStore, id string, status models.PlayerStatus) {
	t.Helper()
	err := st.Transact(context.Background(), func(tx store.Tx) error {
		p, err := tx.Player(id)
		if err != nil {
			return err
		}
		p.Status = status
		tx.SavePlayer(p)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to set status of %s: %v", id, err)
	}
}

func TestCreateMatchDeterministicID(t *testing.T) {
	if models.MatchID("b", "a") != models.MatchID("a", "b") {
		t.Error("match id must not depend on argument order")
	}
}

func TestCreateMatchIdempotent(t *testing.T) {
	st, ms := newMatchFixture(t)
	seedPlayer(t, st, "p1", "alice", 10, models.StatusOnline)
	seedPlayer(t, st, "p2", "bob", 10, models.StatusOnline)

	first := startMatch(t, st, ms, models.RulesetGridGame)

	// 재시도된 생성은 진행 중인 매치를 재초기화하지 않고 돌려준다
	if _, err := ms.SubmitAction(context.Background(), first.ID, "p1", cellAction(4)); err != nil {
		t.Fatalf("SubmitAction failed: %v", err)
	}
	setStatus(t, st, "p1", models.StatusSearching)
	setStatus(t, st, "p2", models.StatusSearching)

	second, err := ms.CreateMatch(context.Background(), "p1", "p2", models.RulesetGridGame)
	if err != nil {
		t.Fatalf("repeated CreateMatch failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected same match id, got %s and %s", first.ID, second.ID)
	}
	if len(second.Moves) != 1 {
		t.Errorf("existing match state must survive a repeated create, moves=%d", len(second.Moves))
	}
}

func TestCreateMatchConflictWhenNotSearching(t *testing.T) {
	st, ms := newMatchFixture(t)
	seedPlayer(t, st, "p1", "alice", 10, models.StatusSearching)
	seedPlayer(t, st, "p2", "bob", 10, models.StatusOnline)

	_, err := ms.CreateMatch(context.Background(), "p1", "p2", models.RulesetStatCombat)
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("expected ErrConflict when a side is not searching, got %v", err)
	}
}

func TestGridGameWinReconcilesOnce(t *testing.T) {
	st, ms := newMatchFixture(t)
	seedPlayer(t, st, "p1", "alice", 100, models.StatusOnline)
	seedPlayer(t, st, "p2", "bob", 40, models.StatusOnline)

	match := startMatch(t, st, ms, models.RulesetGridGame)
	ctx := context.Background()

	// p1이 윗줄을 완성한다
	moves := []struct {
		player string
		cell   int
	}{
		{"p1", 0}, {"p2", 3}, {"p1", 1}, {"p2", 4}, {"p1", 2},
	}
	var final *models.MatchRecord
	for _, mv := range moves {
		var err error
		final, err = ms.SubmitAction(ctx, match.ID, mv.player, cellAction(mv.cell))
		if err != nil {
			t.Fatalf("move %s@%d failed: %v", mv.player, mv.cell, err)
		}
	}

	if final.State != models.MatchStateFinished {
		t.Fatalf("expected finished match, got %s", final.State)
	}
	if final.WinnerID != "p1" {
		t.Errorf("expected winner p1, got %q", final.WinnerID)
	}

	winner, _ := st.GetPlayer(ctx, "p1")
	loser, _ := st.GetPlayer(ctx, "p2")

	// powerGain = floor(패자 파워 * [0.05, 0.15))
	if final.PowerGain < 2 || final.PowerGain > 5 {
		t.Errorf("power gain out of range for loser power 40: %d", final.PowerGain)
	}
	if winner.Power != 100+final.PowerGain {
		t.Errorf("winner power: expected %d, got %d", 100+final.PowerGain, winner.Power)
	}
	if winner.Wins != 1 || winner.WinStreak != 1 || winner.HighestWinStreak != 1 {
		t.Errorf("winner stats wrong: wins=%d streak=%d highest=%d", winner.Wins, winner.WinStreak, winner.HighestWinStreak)
	}
	if loser.Power != 40 || loser.Losses != 1 || loser.WinStreak != 0 {
		t.Errorf("loser stats wrong: power=%d losses=%d streak=%d", loser.Power, loser.Losses, loser.WinStreak)
	}
	for _, p := range []*models.PlayerRecord{winner, loser} {
		if p.Status != models.StatusOnline || p.CurrentOpponent != "" {
			t.Errorf("player %s not released: status=%s", p.ID, p.Status)
		}
		if p.LastMatchAt == nil {
			t.Errorf("player %s missing lastMatchAt", p.ID)
		}
	}

	// 끝난 매치에는 더 손댈 수 없고 통계도 다시 움직이지 않는다
	if _, err := ms.SubmitAction(ctx, match.ID, "p2", cellAction(5)); !errors.Is(err, ErrMatchNotActive) {
		t.Errorf("move on finished match: expected ErrMatchNotActive, got %v", err)
	}
	if _, err := ms.Abandon(ctx, match.ID, "p2"); !errors.Is(err, ErrMatchNotActive) {
		t.Errorf("abandon on finished match: expected ErrMatchNotActive, got %v", err)
	}
	again, _ := st.GetPlayer(ctx, "p1")
	if again.Power != winner.Power || again.Wins != 1 {
		t.Errorf("stats reconciled more than once: power=%d wins=%d", again.Power, again.Wins)
	}
}

func TestGridGameTurnOrder(t *testing.T) {
	st, ms := newMatchFixture(t)
	seedPlayer(t, st, "p1", "alice", 10, models.StatusOnline)
	seedPlayer(t, st, "p2", "bob", 10, models.StatusOnline)

	match := startMatch(t, st, ms, models.RulesetGridGame)
	ctx := context.Background()

	if _, err := ms.SubmitAction(ctx, match.ID, "p2", cellAction(0)); !errors.Is(err, ErrNotYourTurn) {
		t.Errorf("expected ErrNotYourTurn for p2 opening, got %v", err)
	}
	if _, err := ms.SubmitAction(ctx, match.ID, "p1", cellAction(0)); err != nil {
		t.Fatalf("p1 opening failed: %v", err)
	}
	if _, err := ms.SubmitAction(ctx, match.ID, "p1", cellAction(1)); !errors.Is(err, ErrNotYourTurn) {
		t.Errorf("expected ErrNotYourTurn for p1 double move, got %v", err)
	}
	if _, err := ms.SubmitAction(ctx, match.ID, "p2", cellAction(0)); !errors.Is(err, game.ErrCellOccupied) {
		t.Errorf("expected ErrCellOccupied, got %v", err)
	}
	if _, err := ms.SubmitAction(ctx, match.ID, "p3", cellAction(1)); !errors.Is(err, ErrNotInMatch) {
		t.Errorf("expected ErrNotInMatch for outsider, got %v", err)
	}
	if _, err := ms.SubmitAction(ctx, match.ID, "p1", models.MatchAction{}); !errors.Is(err, ErrNotYourTurn) {
		t.Errorf("turn check comes before payload check, got %v", err)
	}
}

func TestGridGameDraw(t *testing.T) {
	st, ms := newMatchFixture(t)
	seedPlayer(t, st, "p1", "alice", 10, models.StatusOnline)
	seedPlayer(t, st, "p2", "bob", 10, models.StatusOnline)

	match := startMatch(t, st, ms, models.RulesetGridGame)
	ctx := context.Background()

	// X O X / X O O / O X X — 무승부
	moves := []struct {
		player string
		cell   int
	}{
		{"p1", 0}, {"p2", 1}, {"p1", 2}, {"p2", 4}, {"p1", 3},
		{"p2", 5}, {"p1", 7}, {"p2", 6}, {"p1", 8},
	}
	var final *models.MatchRecord
	for _, mv := range moves {
		var err error
		final, err = ms.SubmitAction(ctx, match.ID, mv.player, cellAction(mv.cell))
		if err != nil {
			t.Fatalf("move %s@%d failed: %v", mv.player, mv.cell, err)
		}
	}

	if final.State != models.MatchStateFinished || !final.Draw {
		t.Fatalf("expected finished draw, state=%s draw=%v", final.State, final.Draw)
	}
	if final.WinnerID != "" || final.PowerGain != 0 {
		t.Errorf("draw must carry no winner and no gain: winner=%q gain=%d", final.WinnerID, final.PowerGain)
	}

	for _, id := range []string{"p1", "p2"} {
		p, _ := st.GetPlayer(ctx, id)
		if p.Power != 10 || p.Wins != 0 || p.Losses != 0 {
			t.Errorf("draw must not move stats for %s: power=%d wins=%d losses=%d", id, p.Power, p.Wins, p.Losses)
		}
		if p.Status != models.StatusOnline {
			t.Errorf("player %s not released after draw: %s", id, p.Status)
		}
	}
}

func TestStatCombatRunsToCompletion(t *testing.T) {
	st, ms := newMatchFixture(t)
	seedPlayer(t, st, "p1", "alice", 1000, models.StatusOnline)
	seedPlayer(t, st, "p2", "bob", 10, models.StatusOnline)

	match := startMatch(t, st, ms, models.RulesetStatCombat)
	ctx := context.Background()

	var final *models.MatchRecord
	for i := 0; i < 200; i++ {
		m, err := ms.SubmitAction(ctx, match.ID, "p1", models.MatchAction{})
		if err != nil {
			t.Fatalf("attack %d failed: %v", i, err)
		}
		final = m
		if m.State == models.MatchStateFinished {
			break
		}
		if m.HealthOf("p1") < 0 || m.HealthOf("p2") < 0 {
			t.Fatalf("health went negative: %d / %d", m.HealthOf("p1"), m.HealthOf("p2"))
		}
	}

	if final.State != models.MatchStateFinished {
		t.Fatal("combat did not finish within bound")
	}
	if final.WinnerID != "p1" {
		t.Fatalf("overwhelming attacker should win, got winner %q", final.WinnerID)
	}
	if final.HealthOf("p2") != 0 {
		t.Errorf("loser health should rest at 0, got %d", final.HealthOf("p2"))
	}
	// 패자 파워 10 → 획득은 floor(10*[0.05,0.15)) = 0 또는 1
	if final.PowerGain < 0 || final.PowerGain > 1 {
		t.Errorf("power gain out of range: %d", final.PowerGain)
	}

	winner, _ := st.GetPlayer(ctx, "p1")
	if winner.Power != 1000+final.PowerGain || winner.Wins != 1 {
		t.Errorf("winner stats wrong: power=%d wins=%d", winner.Power, winner.Wins)
	}
	if len(final.Rounds) == 0 {
		t.Error("expected recorded combat rounds")
	}
}

func TestStatCombatHasNoTurnOrder(t *testing.T) {
	st, ms := newMatchFixture(t)
	seedPlayer(t, st, "p1", "alice", 10, models.StatusOnline)
	seedPlayer(t, st, "p2", "bob", 10, models.StatusOnline)

	match := startMatch(t, st, ms, models.RulesetStatCombat)
	ctx := context.Background()

	if _, err := ms.SubmitAction(ctx, match.ID, "p2", models.MatchAction{}); err != nil {
		t.Errorf("p2 should be able to open, got %v", err)
	}
	if _, err := ms.SubmitAction(ctx, match.ID, "p2", models.MatchAction{}); err != nil {
		t.Errorf("p2 should be able to attack twice in a row, got %v", err)
	}
	if _, err := ms.SubmitAction(ctx, match.ID, "p1", models.MatchAction{}); err != nil {
		t.Errorf("p1 attack failed: %v", err)
	}
}

func TestAbandonIsLossWithoutGain(t *testing.T) {
	st, ms := newMatchFixture(t)
	seedPlayer(t, st, "p1", "alice", 100, models.StatusOnline)
	seedPlayer(t, st, "p2", "bob", 100, models.StatusOnline)

	match := startMatch(t, st, ms, models.RulesetStatCombat)
	ctx := context.Background()

	final, err := ms.Abandon(ctx, match.ID, "p1")
	if err != nil {
		t.Fatalf("Abandon failed: %v", err)
	}
	if final.WinnerID != "p2" || final.PowerGain != 0 {
		t.Errorf("expected p2 win with zero gain, got winner=%q gain=%d", final.WinnerID, final.PowerGain)
	}

	winner, _ := st.GetPlayer(ctx, "p2")
	loser, _ := st.GetPlayer(ctx, "p1")
	if winner.Power != 100 || winner.Wins != 1 {
		t.Errorf("abandon winner: power=%d wins=%d", winner.Power, winner.Wins)
	}
	if loser.Losses != 1 || loser.WinStreak != 0 {
		t.Errorf("abandon loser: losses=%d streak=%d", loser.Losses, loser.WinStreak)
	}
	for _, p := range []*models.PlayerRecord{winner, loser} {
		if p.Status != models.StatusOnline {
			t.Errorf("player %s not released: %s", p.ID, p.Status)
		}
	}
}

func TestAbandonValidation(t *testing.T) {
	st, ms := newMatchFixture(t)
	seedPlayer(t, st, "p1", "alice", 10, models.StatusOnline)
	seedPlayer(t, st, "p2", "bob", 10, models.StatusOnline)
	seedPlayer(t, st, "p3", "carol", 10, models.StatusOnline)

	match := startMatch(t, st, ms, models.RulesetGridGame)
	ctx := context.Background()

	if _, err := ms.Abandon(ctx, "nope", "p1"); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("expected ErrMatchNotFound, got %v", err)
	}
	if _, err := ms.Abandon(ctx, match.ID, "p3"); !errors.Is(err, ErrNotInMatch) {
		t.Errorf("expected ErrNotInMatch, got %v", err)
	}
}

func TestWinStreakTracking(t *testing.T) {
	st, ms := newMatchFixture(t)
	seedPlayer(t, st, "p1", "alice", 10, models.StatusOnline)
	seedPlayer(t, st, "p2", "bob", 10, models.StatusOnline)

	ctx := context.Background()

	// p1이 두 번 이기고 한 번 진다
	for i := 0; i < 2; i++ {
		match := startMatch(t, st, ms, models.RulesetStatCombat)
		if _, err := ms.Abandon(ctx, match.ID, "p2"); err != nil {
			t.Fatalf("abandon %d failed: %v", i, err)
		}
	}
	match := startMatch(t, st, ms, models.RulesetStatCombat)
	if _, err := ms.Abandon(ctx, match.ID, "p1"); err != nil {
		t.Fatalf("final abandon failed: %v", err)
	}

	p1, _ := st.GetPlayer(ctx, "p1")
	if p1.Wins != 2 || p1.Losses != 1 {
		t.Errorf("p1 record wrong: wins=%d losses=%d", p1.Wins, p1.Losses)
	}
	if p1.WinStreak != 0 || p1.HighestWinStreak != 2 {
		t.Errorf("p1 streaks wrong: streak=%d highest=%d", p1.WinStreak, p1.HighestWinStreak)
	}
	p2, _ := st.GetPlayer(ctx, "p2")
	if p2.Wins != 1 || p2.WinStreak != 1 {
		t.Errorf("p2 record wrong: wins=%d streak=%d", p2.Wins, p2.WinStreak)
	}
}

func TestMatchEventsPublished(t *testing.T) {
	st, ms := newMatchFixture(t)
	seedPlayer(t, st, "p1", "alice", 10, models.StatusOnline)
	seedPlayer(t, st, "p2", "bob", 10, models.StatusOnline)

	ctx := context.Background()
	sub, err := st.Subscribe(ctx, "p2")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	match := startMatch(t, st, ms, models.RulesetGridGame)
	if _, err := ms.Abandon(ctx, match.ID, "p1"); err != nil {
		t.Fatalf("Abandon failed: %v", err)
	}

	seen := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for !seen[store.EventMatchCreated] || !seen[store.EventMatchFinished] {
		select {
		case ev := <-sub.Events():
			if ev.PlayerID != "p2" {
				t.Errorf("subscription leaked event for %s", ev.PlayerID)
			}
			seen[ev.Type] = true
		case <-timeout:
			t.Fatalf("missing events, saw %v", seen)
		}
	}
}
