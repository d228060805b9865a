package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/click-arena/click-arena-backend/internal/models"
	"github.com/click-arena/click-arena-backend/internal/store"
	"github.com/click-arena/click-arena-backend/pkg/logger"
)

// AccountRepository 계정 영속화 계약. Postgres 구현은 internal/repository.
type AccountRepository interface {
	Create(id, username, passwordHash string) (*models.Account, error)
	FindByUsername(username string) (*models.Account, error)
}

// AccountService 계정(인증)과 라이브 플레이어 레코드의 생성을 묶는다.
// 계정은 Postgres, 플레이어 상태는 라이브 스토어에 산다.
type AccountService struct {
	accountRepo AccountRepository
	store       store.Store
}

func NewAccountService(accountRepo AccountRepository, st store.Store) *AccountService {
	return &AccountService{
		accountRepo: accountRepo,
		store:       st,
	}
}

// Register 새 계정 등록과 동시에 시작 파워를 가진 플레이어 레코드 생성
func (s *AccountService) Register(ctx context.Context, username, password string) (*models.PlayerRecord, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	existing, err := s.accountRepo.FindByUsername(username)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing username: %w", err)
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	passwordHash, err := models.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id := uuid.New().String()
	now := time.Now()
	player := &models.PlayerRecord{
		ID:        id,
		Username:  username,
		Status:    models.StatusOffline,
		Power:     models.StartingPower,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// 라이브 스토어의 사용자명 인덱스가 최종 중복 판정을 맡는다
	if err := s.store.CreatePlayer(ctx, player); err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create player record: %w", err)
	}

	if _, err := s.accountRepo.Create(id, username, passwordHash); err != nil {
		// 계정이 저장되지 못했으면 플레이어 레코드와 사용자명 예약을 되돌린다.
		// 여기서 실패하면 사용자명이 계정 없이 묶인 채 남는다.
		if derr := s.store.DeletePlayer(ctx, id); derr != nil {
			logger.Error("Failed to roll back player record", "playerId", id, "username", username, "error", derr)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	logger.Info("Player registered", "playerId", id, "username", username)
	return player, nil
}

// Login 로그인. 성공하면 플레이어를 online으로 표시한다.
func (s *AccountService) Login(ctx context.Context, username, password string) (*models.PlayerRecord, error) {
	account, err := s.accountRepo.FindByUsername(username)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}
	if !account.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	var player *models.PlayerRecord
	err = transactWithRetry(ctx, s.store, func(tx store.Tx) error {
		p, err := tx.Player(account.ID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrPlayerNotFound
		}
		if err != nil {
			return err
		}
		if p.Status == models.StatusOffline {
			p.Status = models.StatusOnline
			tx.SavePlayer(p)
			tx.Publish(store.Event{Type: store.EventPlayerUpdated, PlayerID: p.ID})
		}
		player = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Player logged in", "playerId", player.ID, "username", username)
	return player, nil
}
