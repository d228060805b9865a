package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/click-arena/click-arena-backend/internal/models"
	"github.com/click-arena/click-arena-backend/internal/repository"
	"github.com/click-arena/click-arena-backend/internal/store"
)

// PlayerService 플레이어 조회, 클릭 적립, 리더보드
type PlayerService struct {
	store   store.Store
	history *repository.HistoryRepository // nil이면 히스토리 비활성
}

func NewPlayerService(st store.Store, history *repository.HistoryRepository) *PlayerService {
	return &PlayerService{
		store:   st,
		history: history,
	}
}

// GetByID ID로 플레이어 조회
func (s *PlayerService) GetByID(ctx context.Context, id string) (*models.PlayerRecord, error) {
	p, err := s.store.GetPlayer(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

// GetByUsername 사용자명으로 플레이어 조회
func (s *PlayerService) GetByUsername(ctx context.Context, username string) (*models.PlayerRecord, error) {
	p, err := s.store.GetPlayerByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

// AddClicks 클릭 배치를 파워로 적립. 핸들러 쪽 바인딩이 배치 크기를
// 제한하므로 여기서는 양수인지만 본다.
func (s *PlayerService) AddClicks(ctx context.Context, playerID string, count int) (*models.PlayerRecord, error) {
	if count <= 0 {
		return nil, ErrInvalidInput
	}

	var player *models.PlayerRecord
	err := transactWithRetry(ctx, s.store, func(tx store.Tx) error {
		p, err := tx.Player(playerID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrPlayerNotFound
		}
		if err != nil {
			return err
		}

		p.Power += int64(count)
		tx.SavePlayer(p)
		tx.Publish(store.Event{Type: store.EventPlayerUpdated, PlayerID: p.ID})
		player = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return player, nil
}

// Leaderboard 파워 내림차순 상위 플레이어
func (s *PlayerService) Leaderboard(ctx context.Context, limit int) ([]*models.PlayerRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	players, err := s.store.TopPlayers(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return players, nil
}

// MatchHistory 플레이어의 완료된 매치 기록
func (s *PlayerService) MatchHistory(ctx context.Context, playerID string, limit int) ([]*repository.MatchHistoryEntry, error) {
	if s.history == nil {
		return nil, nil
	}

	entries, err := s.history.FindByPlayerID(playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load match history: %w", err)
	}
	return entries, nil
}
