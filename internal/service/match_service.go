package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/click-arena/click-arena-backend/internal/game"
	"github.com/click-arena/click-arena-backend/internal/models"
	"github.com/click-arena/click-arena-backend/internal/repository"
	"github.com/click-arena/click-arena-backend/internal/store"
	"github.com/click-arena/click-arena-backend/pkg/logger"
)

// MatchService 매치 레코드의 생명주기를 소유한다.
// 생성(멱등), 행동 처리, 종료 시 정확히 한 번의 통계 반영까지.
type MatchService struct {
	store   store.Store
	history *repository.HistoryRepository // nil이면 아카이브 생략
	dice    *game.Dice
}

func NewMatchService(st store.Store, history *repository.HistoryRepository, dice *game.Dice) *MatchService {
	if dice == nil {
		dice = game.NewDice()
	}
	return &MatchService{
		store:   st,
		history: history,
		dice:    dice,
	}
}

// CreateMatch 큐 페어링 경로의 매치 생성. 두 플레이어 모두 아직
// searching 상태일 때만 성공하며, 한쪽이라도 이미 다른 매치로 빠졌으면
// ErrConflict를 반환해 호출자가 후보를 다시 고르게 한다.
func (s *MatchService) CreateMatch(ctx context.Context, initiatorID, opponentID string, ruleset models.Ruleset) (*models.MatchRecord, error) {
	var match *models.MatchRecord

	err := s.store.Transact(ctx, func(tx store.Tx) error {
		initiator, err := tx.Player(initiatorID)
		if err != nil {
			return err
		}
		opponent, err := tx.Player(opponentID)
		if err != nil {
			return err
		}

		if initiator.Status != models.StatusSearching || opponent.Status != models.StatusSearching {
			// 선택과 커밋 사이에 다른 페어링이 끼어들었다
			return store.ErrConflict
		}

		match, err = s.createMatchTx(tx, initiator, opponent, ruleset)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Match created",
		"matchId", match.ID,
		"player1", match.Player1ID,
		"player2", match.Player2ID,
		"ruleset", match.Ruleset,
	)
	return match, nil
}

// createMatchTx 트랜잭션 안에서의 매치 생성. 큐 페어링과 도전 수락이
// 공유하는 단일 변이 지점이다. 같은 쌍의 활성 매치가 이미 있으면
// 재초기화하지 않고 그대로 돌려준다 (재시도된 페어링의 중복 방지).
func (s *MatchService) createMatchTx(tx store.Tx, initiator, opponent *models.PlayerRecord, ruleset models.Ruleset) (*models.MatchRecord, error) {
	if initiator.ID == opponent.ID {
		return nil, ErrInvalidInput
	}

	matchID := models.MatchID(initiator.ID, opponent.ID)

	existing, err := tx.Match(matchID)
	if err == nil && existing.State == models.MatchStateActive {
		return existing, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	match := &models.MatchRecord{
		ID:        matchID,
		Player1ID: initiator.ID,
		Player2ID: opponent.ID,
		Ruleset:   ruleset,
		State:     models.MatchStateActive,
		CreatedAt: now,
	}

	switch ruleset {
	case models.RulesetGridGame:
		match.CurrentTurn = initiator.ID
	case models.RulesetStatCombat:
		match.Player1Health = models.MaxHealth
		match.Player2Health = models.MaxHealth
	default:
		return nil, fmt.Errorf("%w: unknown ruleset %q", ErrInvalidInput, ruleset)
	}

	for _, p := range []*models.PlayerRecord{initiator, opponent} {
		p.Status = models.StatusInMatch
		p.ChallengeFrom = ""
		p.ChallengeRuleset = ""
	}
	initiator.CurrentOpponent = opponent.ID
	opponent.CurrentOpponent = initiator.ID

	tx.SaveMatch(match)
	tx.SavePlayer(initiator)
	tx.SavePlayer(opponent)
	tx.Publish(store.Event{Type: store.EventMatchCreated, PlayerID: initiator.ID, MatchID: matchID})
	tx.Publish(store.Event{Type: store.EventMatchCreated, PlayerID: opponent.ID, MatchID: matchID})

	return match, nil
}

// SubmitAction 매치에 행동 제출. GridGame은 자기 턴에만, StatCombat은
// 양쪽 모두 언제든 공격할 수 있다. 종료 조건에 도달하면 같은
// 트랜잭션에서 통계 반영까지 끝낸다.
func (s *MatchService) SubmitAction(ctx context.Context, matchID, playerID string, action models.MatchAction) (*models.MatchRecord, error) {
	var match *models.MatchRecord

	err := transactWithRetry(ctx, s.store, func(tx store.Tx) error {
		m, err := tx.Match(matchID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrMatchNotFound
		}
		if err != nil {
			return err
		}
		if !m.HasPlayer(playerID) {
			return ErrNotInMatch
		}
		if m.State != models.MatchStateActive {
			return ErrMatchNotActive
		}

		switch m.Ruleset {
		case models.RulesetGridGame:
			err = s.applyGridMove(tx, m, playerID, action)
		case models.RulesetStatCombat:
			err = s.applyCombatAttack(tx, m, playerID)
		default:
			err = fmt.Errorf("%w: unknown ruleset %q", ErrInvalidInput, m.Ruleset)
		}
		if err != nil {
			return err
		}

		match = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.archiveIfFinished(match)
	return match, nil
}

// applyGridMove 그리드 게임 수 처리
func (s *MatchService) applyGridMove(tx store.Tx, m *models.MatchRecord, playerID string, action models.MatchAction) error {
	if m.CurrentTurn != playerID {
		return ErrNotYourTurn
	}
	if action.Cell == nil {
		return fmt.Errorf("%w: cell is required", ErrInvalidInput)
	}

	mark := m.MarkOf(playerID)
	board, outcome, err := game.ApplyMove(m.Board, *action.Cell, mark)
	if err != nil {
		return err
	}

	m.Board = board
	m.Moves = append(m.Moves, models.Move{
		PlayerID: playerID,
		Cell:     *action.Cell,
		Mark:     mark,
		PlayedAt: time.Now(),
	})
	m.CurrentTurn = m.Opponent(playerID)

	if !outcome.Terminal {
		tx.SaveMatch(m)
		s.publishUpdate(tx, m, store.EventMatchUpdated)
		return nil
	}

	if outcome.Draw {
		return s.finishTx(tx, m, "", 0)
	}

	winnerID := m.PlayerByMark(outcome.WinningMark)
	loser, err := tx.Player(m.Opponent(winnerID))
	if err != nil {
		return err
	}
	return s.finishTx(tx, m, winnerID, game.VictoryPowerGain(loser.Power, s.dice))
}

// applyCombatAttack 스탯 전투 공격 처리. 턴 제한 없음.
func (s *MatchService) applyCombatAttack(tx store.Tx, m *models.MatchRecord, attackerID string) error {
	defenderID := m.Opponent(attackerID)

	attacker, err := tx.Player(attackerID)
	if err != nil {
		return err
	}
	defender, err := tx.Player(defenderID)
	if err != nil {
		return err
	}

	res := game.ResolveCombatRound(
		attacker.Power, defender.Power,
		m.HealthOf(attackerID), m.HealthOf(defenderID),
		s.dice,
	)

	m.SetHealth(attackerID, res.AttackerHealth)
	m.SetHealth(defenderID, res.DefenderHealth)
	m.Rounds = append(m.Rounds, models.CombatRound{
		AttackerID:    attackerID,
		Damage:        res.Damage,
		CounterDamage: res.CounterDamage,
		Events:        res.Events,
		FoughtAt:      time.Now(),
	})

	switch {
	case res.DefenderDown:
		return s.finishTx(tx, m, attackerID, game.VictoryPowerGain(defender.Power, s.dice))
	case res.AttackerDown:
		// 반격으로 진 쪽의 매치는 파워 획득 없이 끝난다
		return s.finishTx(tx, m, defenderID, 0)
	default:
		tx.SaveMatch(m)
		s.publishUpdate(tx, m, store.EventMatchUpdated)
		return nil
	}
}

// Abandon 매치 포기. 포기한 쪽의 즉시 패배로 처리하며 승자의
// powerGain은 0이다. 상대가 접속해 있지 않아도 항상 동작한다.
func (s *MatchService) Abandon(ctx context.Context, matchID, playerID string) (*models.MatchRecord, error) {
	var match *models.MatchRecord

	err := transactWithRetry(ctx, s.store, func(tx store.Tx) error {
		m, err := tx.Match(matchID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrMatchNotFound
		}
		if err != nil {
			return err
		}
		if !m.HasPlayer(playerID) {
			return ErrNotInMatch
		}
		if m.State != models.MatchStateActive {
			return ErrMatchNotActive
		}

		if err := s.finishTx(tx, m, m.Opponent(playerID), 0); err != nil {
			return err
		}
		match = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Match abandoned",
		"matchId", match.ID,
		"byPlayer", playerID,
		"winner", match.WinnerID,
	)
	s.archiveIfFinished(match)
	return match, nil
}

// finishTx 매치 종료와 통계 반영. 매치가 active일 때만 도달하므로
// (트랜잭션 선행 조건) 반영은 매치당 정확히 한 번 실행된다.
// winnerID가 비어 있으면 무승부이며 통계는 움직이지 않는다.
func (s *MatchService) finishTx(tx store.Tx, m *models.MatchRecord, winnerID string, powerGain int64) error {
	now := time.Now()
	m.State = models.MatchStateFinished
	m.WinnerID = winnerID
	m.Draw = winnerID == ""
	m.PowerGain = powerGain
	m.FinishedAt = &now

	p1, err := tx.Player(m.Player1ID)
	if err != nil {
		return err
	}
	p2, err := tx.Player(m.Player2ID)
	if err != nil {
		return err
	}

	if winnerID != "" {
		winner, loser := p1, p2
		if winnerID == p2.ID {
			winner, loser = p2, p1
		}

		winner.Power += powerGain
		winner.Wins++
		winner.WinStreak++
		if winner.WinStreak > winner.HighestWinStreak {
			winner.HighestWinStreak = winner.WinStreak
		}

		loser.Losses++
		loser.WinStreak = 0
	}

	for _, p := range []*models.PlayerRecord{p1, p2} {
		p.Status = models.StatusOnline
		p.CurrentOpponent = ""
		t := now
		p.LastMatchAt = &t
		tx.SavePlayer(p)
	}

	tx.SaveMatch(m)
	tx.Publish(store.Event{Type: store.EventMatchFinished, PlayerID: p1.ID, MatchID: m.ID})
	tx.Publish(store.Event{Type: store.EventMatchFinished, PlayerID: p2.ID, MatchID: m.ID})
	return nil
}

func (s *MatchService) publishUpdate(tx store.Tx, m *models.MatchRecord, eventType string) {
	tx.Publish(store.Event{Type: eventType, PlayerID: m.Player1ID, MatchID: m.ID})
	tx.Publish(store.Event{Type: eventType, PlayerID: m.Player2ID, MatchID: m.ID})
}

// archiveIfFinished 완료된 매치를 히스토리 저장소에 기록 (best-effort).
// INSERT가 매치 ID에 멱등이라 재시도돼도 중복 기록은 없다.
func (s *MatchService) archiveIfFinished(m *models.MatchRecord) {
	if s.history == nil || m == nil || m.State != models.MatchStateFinished {
		return
	}
	if err := s.history.Archive(m); err != nil {
		logger.Error("Failed to archive match", "matchId", m.ID, "error", err)
	}
}

// GetByID 매치 조회
func (s *MatchService) GetByID(ctx context.Context, id string) (*models.MatchRecord, error) {
	m, err := s.store.GetMatch(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}
