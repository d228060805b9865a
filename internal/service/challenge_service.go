package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/click-arena/click-arena-backend/internal/models"
	"github.com/click-arena/click-arena-backend/internal/store"
	"github.com/click-arena/click-arena-backend/pkg/distributed"
)

const challengeSweepLockKey = "locks:challenge-sweep"

// ChallengeService 1:1 도전의 수명 주기를 담당한다. 도전은
// 양쪽 레코드에 걸쳐 원자적으로 걸리고, 수락/거절/취소/만료는
// 모두 같은 트랜잭션 경계 안에서 풀린다.
type ChallengeService struct {
	store        store.Store
	matchService *MatchService
	lockManager  *distributed.RedisLockManager
	logger       *zap.Logger
	timeout      time.Duration
	interval     time.Duration
	stopChan     chan struct{}
	wg           sync.WaitGroup
	running      bool
	mu           sync.Mutex
}

func NewChallengeService(
	st store.Store,
	matchService *MatchService,
	lockManager *distributed.RedisLockManager,
	timeout time.Duration,
	sweepInterval time.Duration,
) *ChallengeService {
	logger, _ := zap.NewProduction()

	return &ChallengeService{
		store:        st,
		matchService: matchService,
		lockManager:  lockManager,
		logger:       logger,
		timeout:      timeout,
		interval:     sweepInterval,
		stopChan:     make(chan struct{}),
	}
}

// Challenge 대상에게 도전장을 건다. 양쪽 모두 idle이어야 하며,
// 하나의 트랜잭션으로 도전자는 challenging, 대상에는 challengeFrom이
// 기록된다.
func (s *ChallengeService) Challenge(ctx context.Context, fromID, toUsername string, ruleset models.Ruleset) error {
	if ruleset == "" {
		ruleset = models.RulesetGridGame
	}
	if ruleset != models.RulesetGridGame && ruleset != models.RulesetStatCombat {
		return ErrInvalidInput
	}

	err := transactWithRetry(ctx, s.store, func(tx store.Tx) error {
		from, err := tx.Player(fromID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrPlayerNotFound
		}
		if err != nil {
			return err
		}
		if from.Status == models.StatusOffline {
			return ErrPlayerOffline
		}
		if !from.Idle() {
			return ErrAlreadyEngaged
		}

		to, err := tx.PlayerByUsername(toUsername)
		if errors.Is(err, store.ErrNotFound) {
			return ErrTargetNotFound
		}
		if err != nil {
			return err
		}
		if to.ID == from.ID {
			return ErrSelfChallenge
		}
		if to.Status == models.StatusOffline || !to.Idle() {
			return ErrTargetBusy
		}

		from.Status = models.StatusChallenging
		from.CurrentOpponent = to.ID
		from.ChallengeRuleset = ruleset
		to.ChallengeFrom = from.ID

		tx.SavePlayer(from)
		tx.SavePlayer(to)
		tx.Publish(store.Event{Type: store.EventPlayerUpdated, PlayerID: from.ID})
		tx.Publish(store.Event{Type: store.EventChallengeReceived, PlayerID: to.ID})
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Challenge issued",
		zap.String("from", fromID),
		zap.String("toUsername", toUsername),
		zap.String("ruleset", string(ruleset)))
	return nil
}

// Accept 받은 도전을 수락하고 도전자가 고른 룰셋으로 매치를 만든다.
// 도전 해제와 매치 생성이 한 트랜잭션이다.
func (s *ChallengeService) Accept(ctx context.Context, toID string) (*models.MatchRecord, error) {
	var match *models.MatchRecord

	err := transactWithRetry(ctx, s.store, func(tx store.Tx) error {
		match = nil

		to, err := tx.Player(toID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrPlayerNotFound
		}
		if err != nil {
			return err
		}
		if to.ChallengeFrom == "" {
			return ErrNoPendingChallenge
		}

		from, err := tx.Player(to.ChallengeFrom)
		if errors.Is(err, store.ErrNotFound) {
			// 도전자 레코드가 사라짐 — 도전만 걷어낸다
			to.ChallengeFrom = ""
			tx.SavePlayer(to)
			tx.Publish(store.Event{Type: store.EventChallengeCleared, PlayerID: to.ID})
			return ErrNoPendingChallenge
		}
		if err != nil {
			return err
		}
		if from.Status != models.StatusChallenging || from.CurrentOpponent != to.ID {
			// 도전자가 이미 취소했거나 다른 데 가버림
			to.ChallengeFrom = ""
			tx.SavePlayer(to)
			tx.Publish(store.Event{Type: store.EventChallengeCleared, PlayerID: to.ID})
			return ErrNoPendingChallenge
		}

		ruleset := from.ChallengeRuleset
		if ruleset == "" {
			ruleset = models.RulesetGridGame
		}

		match, err = s.matchService.createMatchTx(tx, from, to, ruleset)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Challenge accepted",
		zap.String("player", toID),
		zap.String("matchId", match.ID))
	return match, nil
}

// Decline 받은 도전을 거절한다. 도전자는 online으로 돌아간다.
func (s *ChallengeService) Decline(ctx context.Context, toID string) error {
	err := transactWithRetry(ctx, s.store, func(tx store.Tx) error {
		to, err := tx.Player(toID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrPlayerNotFound
		}
		if err != nil {
			return err
		}
		if to.ChallengeFrom == "" {
			return ErrNoPendingChallenge
		}

		fromID := to.ChallengeFrom
		to.ChallengeFrom = ""
		tx.SavePlayer(to)
		tx.Publish(store.Event{Type: store.EventChallengeCleared, PlayerID: to.ID})

		from, err := tx.Player(fromID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if from.Status == models.StatusChallenging && from.CurrentOpponent == to.ID {
			releaseChallenger(from)
			tx.SavePlayer(from)
			tx.Publish(store.Event{Type: store.EventChallengeCleared, PlayerID: from.ID})
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Challenge declined", zap.String("player", toID))
	return nil
}

// Cancel 자신이 건 도전을 거둔다.
func (s *ChallengeService) Cancel(ctx context.Context, fromID string) error {
	err := transactWithRetry(ctx, s.store, func(tx store.Tx) error {
		from, err := tx.Player(fromID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrPlayerNotFound
		}
		if err != nil {
			return err
		}
		if from.Status != models.StatusChallenging {
			return ErrNoPendingChallenge
		}

		toID := from.CurrentOpponent
		releaseChallenger(from)
		tx.SavePlayer(from)
		tx.Publish(store.Event{Type: store.EventPlayerUpdated, PlayerID: from.ID})

		to, err := tx.Player(toID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if to.ChallengeFrom == from.ID {
			to.ChallengeFrom = ""
			tx.SavePlayer(to)
			tx.Publish(store.Event{Type: store.EventChallengeCleared, PlayerID: to.ID})
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Challenge cancelled", zap.String("player", fromID))
	return nil
}

// Start 만료 스위퍼 시작
func (s *ChallengeService) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting ChallengeService sweeper",
		zap.Duration("timeout", s.timeout),
		zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.sweepLoop()
}

// Stop 만료 스위퍼 중지
func (s *ChallengeService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping ChallengeService sweeper")
	close(s.stopChan)
	s.wg.Wait()
	s.logger.Info("ChallengeService sweeper stopped")
}

func (s *ChallengeService) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runSweep()
		case <-s.stopChan:
			return
		}
	}
}

// runSweep timeout보다 오래 걸려 있는 도전들을 만료시킨다.
// 여러 인스턴스가 돌 때를 대비해 분산 락으로 한 번에 하나만 쓸게 한다.
func (s *ChallengeService) runSweep() {
	ctx := context.Background()

	if s.lockManager != nil {
		lock, err := s.lockManager.AcquireLock(ctx, challengeSweepLockKey, uuid.New().String(), s.interval)
		if errors.Is(err, distributed.ErrLockNotAcquired) {
			return
		}
		if err != nil {
			s.logger.Error("Failed to acquire sweep lock", zap.Error(err))
			return
		}
		defer lock.Release(ctx)
	}

	stale, err := s.store.StaleChallenges(ctx, time.Now().Add(-s.timeout))
	if err != nil {
		s.logger.Error("Failed to list stale challenges", zap.Error(err))
		return
	}

	for _, challengerID := range stale {
		if err := s.Expire(ctx, challengerID); err != nil {
			s.logger.Error("Failed to expire challenge",
				zap.String("challenger", challengerID),
				zap.Error(err))
		}
	}
}

// Expire 만료된 도전 하나를 해제한다. 스위프 사이에 수락/취소됐으면
// 조용히 아무 것도 하지 않는다.
func (s *ChallengeService) Expire(ctx context.Context, challengerID string) error {
	var expired bool

	err := transactWithRetry(ctx, s.store, func(tx store.Tx) error {
		expired = false

		from, err := tx.Player(challengerID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if from.Status != models.StatusChallenging {
			return nil
		}

		toID := from.CurrentOpponent
		releaseChallenger(from)
		tx.SavePlayer(from)
		tx.Publish(store.Event{Type: store.EventChallengeExpired, PlayerID: from.ID})
		expired = true

		to, err := tx.Player(toID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if to.ChallengeFrom == from.ID {
			to.ChallengeFrom = ""
			tx.SavePlayer(to)
			tx.Publish(store.Event{Type: store.EventChallengeExpired, PlayerID: to.ID})
		}
		return nil
	})
	if err != nil {
		return err
	}

	if expired {
		s.logger.Info("Challenge expired", zap.String("challenger", challengerID))
	}
	return nil
}

// releaseChallenger 도전자 쪽 도전 상태를 걷어낸다.
func releaseChallenger(from *models.PlayerRecord) {
	from.Status = models.StatusOnline
	from.CurrentOpponent = ""
	from.ChallengeRuleset = ""
}
