package service

import (
	"context"
	"errors"
	"sort"

	"github.com/click-arena/click-arena-backend/internal/models"
	"github.com/click-arena/click-arena-backend/internal/store"
	"github.com/click-arena/click-arena-backend/pkg/logger"
)

// PresenceService 플레이어의 매칭 상태와 열린 큐를 관리한다.
// 페어링은 joinQueue마다 수행되며, 후보가 커밋 전에 다른 쪽에
// 선점당하면 선택부터 다시 시도한다.
type PresenceService struct {
	store        store.Store
	matchService *MatchService
	pairRetries  int
}

func NewPresenceService(st store.Store, matchService *MatchService, pairRetries int) *PresenceService {
	if pairRetries <= 0 {
		pairRetries = 3
	}
	return &PresenceService{
		store:        st,
		matchService: matchService,
		pairRetries:  pairRetries,
	}
}

// Online 플레이어를 접속 상태로 표시. 진행 중인 매치/도전 상태는
// 건드리지 않는다.
func (s *PresenceService) Online(ctx context.Context, playerID string) error {
	return transactWithRetry(ctx, s.store, func(tx store.Tx) error {
		p, err := tx.Player(playerID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrPlayerNotFound
		}
		if err != nil {
			return err
		}
		if p.Status != models.StatusOffline {
			return nil
		}
		p.Status = models.StatusOnline
		tx.SavePlayer(p)
		tx.Publish(store.Event{Type: store.EventPlayerUpdated, PlayerID: p.ID})
		return nil
	})
}

// Offline 플레이어를 오프라인으로 표시. searching이면 큐에서도 빠진다.
// 매치나 도전이 걸려 있으면 명시적 취소/포기 경로를 써야 한다.
func (s *PresenceService) Offline(ctx context.Context, playerID string) error {
	return transactWithRetry(ctx, s.store, func(tx store.Tx) error {
		p, err := tx.Player(playerID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrPlayerNotFound
		}
		if err != nil {
			return err
		}
		if p.Status != models.StatusOnline && p.Status != models.StatusSearching {
			return ErrAlreadyEngaged
		}
		p.Status = models.StatusOffline
		tx.SavePlayer(p)
		tx.Publish(store.Event{Type: store.EventPlayerUpdated, PlayerID: p.ID})
		return nil
	})
}

// JoinQueue 열린 큐 참가. 참가 직후 대기 중인 상대를 찾아보고,
// 찾으면 생성된 매치를 반환한다 (없으면 nil — searching 유지).
func (s *PresenceService) JoinQueue(ctx context.Context, playerID string) (*models.MatchRecord, error) {
	err := transactWithRetry(ctx, s.store, func(tx store.Tx) error {
		p, err := tx.Player(playerID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrPlayerNotFound
		}
		if err != nil {
			return err
		}
		if p.Status == models.StatusOffline {
			return ErrPlayerOffline
		}
		if !p.Idle() {
			return ErrAlreadyEngaged
		}

		p.Status = models.StatusSearching
		tx.SavePlayer(p)
		tx.Publish(store.Event{Type: store.EventPlayerUpdated, PlayerID: p.ID})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Player joined queue", "playerId", playerID)
	return s.tryPair(ctx, playerID)
}

// LeaveQueue 큐 이탈. searching에서만 허용된다.
func (s *PresenceService) LeaveQueue(ctx context.Context, playerID string) error {
	err := transactWithRetry(ctx, s.store, func(tx store.Tx) error {
		p, err := tx.Player(playerID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrPlayerNotFound
		}
		if err != nil {
			return err
		}
		if p.Status != models.StatusSearching {
			return ErrNotSearching
		}
		p.Status = models.StatusOnline
		tx.SavePlayer(p)
		tx.Publish(store.Event{Type: store.EventPlayerUpdated, PlayerID: p.ID})
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Player left queue", "playerId", playerID)
	return nil
}

// tryPair searching 후보 중 파워가 가장 가까운 상대를 골라 매치를
// 시도한다. 커밋이 충돌하면 (후보가 이미 짝지어짐) 후보 선택부터
// 다시, 상한까지.
func (s *PresenceService) tryPair(ctx context.Context, playerID string) (*models.MatchRecord, error) {
	for attempt := 0; attempt < s.pairRetries; attempt++ {
		me, err := s.store.GetPlayer(ctx, playerID)
		if err != nil {
			return nil, err
		}
		if me.Status != models.StatusSearching {
			// 다른 쪽 joinQueue가 먼저 우리를 짝지었다
			return s.currentMatch(ctx, me)
		}

		candidates, err := s.store.SearchingPlayers(ctx, playerID)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, nil
		}

		candidate := closestByPower(me, candidates)

		match, err := s.matchService.CreateMatch(ctx, playerID, candidate.ID, models.RulesetStatCombat)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		logger.Info("Players paired from queue",
			"player", playerID,
			"opponent", candidate.ID,
			"powerGap", absInt64(me.Power-candidate.Power),
		)
		return match, nil
	}

	// 재시도 소진 — searching으로 남아 다음 참가자를 기다린다
	return nil, nil
}

func (s *PresenceService) currentMatch(ctx context.Context, p *models.PlayerRecord) (*models.MatchRecord, error) {
	if p.CurrentOpponent == "" {
		return nil, nil
	}
	m, err := s.store.GetMatch(ctx, models.MatchID(p.ID, p.CurrentOpponent))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return m, err
}

// closestByPower 파워 차가 가장 작은 후보, 동률이면 ID가 가장 작은
// 후보. 시드 없는 난수를 쓰지 않으므로 테스트에서 재현 가능하다.
func closestByPower(me *models.PlayerRecord, candidates []*models.PlayerRecord) *models.PlayerRecord {
	sort.Slice(candidates, func(i, j int) bool {
		di := absInt64(candidates[i].Power - me.Power)
		dj := absInt64(candidates[j].Power - me.Power)
		if di != dj {
			return di < dj
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0]
}

func absInt64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
