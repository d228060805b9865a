package store

import (
	"context"
	"errors"
	"time"

	"github.com/click-arena/click-arena-backend/internal/models"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrConflict      = errors.New("transaction conflict")
	ErrUsernameTaken = errors.New("username already taken")
	ErrUnavailable   = errors.New("store unavailable")
)

// 변경 이벤트 타입
const (
	EventPlayerUpdated     = "player_updated"
	EventChallengeReceived = "challenge_received"
	EventChallengeCleared  = "challenge_cleared"
	EventChallengeExpired  = "challenge_expired"
	EventMatchCreated      = "match_created"
	EventMatchUpdated      = "match_updated"
	EventMatchFinished     = "match_finished"
)

// Event 레코드 변경 푸시 알림. 항상 특정 플레이어를 대상으로 한다.
type Event struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	PlayerID string    `json:"playerId"`
	MatchID  string    `json:"matchId,omitempty"`
	At       time.Time `json:"at"`
}

// Tx 단일 트랜잭션의 일관된 뷰. 읽은 레코드가 커밋 전에 다른
// 트랜잭션에 의해 변경되면 커밋은 ErrConflict로 실패한다.
// 쓰기와 이벤트 발행은 커밋 시점에 전부 적용되거나 전부 버려진다.
type Tx interface {
	Player(id string) (*models.PlayerRecord, error)
	PlayerByUsername(username string) (*models.PlayerRecord, error)
	Match(id string) (*models.MatchRecord, error)
	SavePlayer(p *models.PlayerRecord)
	SaveMatch(m *models.MatchRecord)
	Publish(event Event)
}

// Subscription 변경 이벤트 스트림
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Store PlayerRecord/MatchRecord 저장소 계약.
// 조건부 다중 레코드 트랜잭션과 푸시 알림을 제공해야 한다.
type Store interface {
	// CreatePlayer 신규 플레이어 생성. 사용자명 인덱스도 함께 등록한다.
	CreatePlayer(ctx context.Context, p *models.PlayerRecord) error

	// DeletePlayer 플레이어 레코드와 사용자명 예약, 파생 인덱스를 제거한다.
	// 등록이 중간에 실패했을 때의 보상 경로. 없는 ID는 no-op.
	DeletePlayer(ctx context.Context, id string) error

	GetPlayer(ctx context.Context, id string) (*models.PlayerRecord, error)
	GetPlayerByUsername(ctx context.Context, username string) (*models.PlayerRecord, error)
	GetMatch(ctx context.Context, id string) (*models.MatchRecord, error)

	// SearchingPlayers status가 searching인 플레이어 목록 (exclude 제외)
	SearchingPlayers(ctx context.Context, exclude string) ([]*models.PlayerRecord, error)

	// StaleChallenges before 이전에 도전을 건 뒤 응답이 없는 도전자 ID 목록
	StaleChallenges(ctx context.Context, before time.Time) ([]string, error)

	// TopPlayers 파워 내림차순 상위 플레이어
	TopPlayers(ctx context.Context, limit int) ([]*models.PlayerRecord, error)

	// Transact 낙관적 동시성의 원자적 read-modify-write.
	// 선행 조건이 깨지면 ErrConflict를 반환하며 호출자가 재시도한다.
	Transact(ctx context.Context, fn func(tx Tx) error) error

	// Subscribe 특정 플레이어 대상 이벤트 구독
	Subscribe(ctx context.Context, playerID string) (Subscription, error)

	// SubscribeAll 모든 플레이어 이벤트 구독 (푸시 브리지용)
	SubscribeAll(ctx context.Context) (Subscription, error)

	Close() error
}
