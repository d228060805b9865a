package models

import (
	"sort"
	"strings"
	"time"
)

type Ruleset string

const (
	RulesetGridGame   Ruleset = "grid_game"
	RulesetStatCombat Ruleset = "stat_combat"
)

type MatchState string

const (
	MatchStateActive   MatchState = "active"
	MatchStateFinished MatchState = "finished"
)

// Mark 그리드 게임의 셀 마크
type Mark string

const (
	MarkEmpty Mark = ""
	MarkX     Mark = "X"
	MarkO     Mark = "O"
)

// Board 3x3 그리드 (인덱스 0-8, 행 우선)
type Board [9]Mark

// MaxHealth 스탯 전투 시작 체력
const MaxHealth = 100

type Move struct {
	PlayerID string    `json:"playerId"`
	Cell     int       `json:"cell"`
	Mark     Mark      `json:"mark"`
	PlayedAt time.Time `json:"playedAt"`
}

type CombatRound struct {
	AttackerID    string    `json:"attackerId"`
	Damage        int       `json:"damage"`
	CounterDamage int       `json:"counterDamage"`
	Events        []string  `json:"events,omitempty"`
	FoughtAt      time.Time `json:"foughtAt"`
}

// MatchRecord 진행 중이거나 완료된 매치의 영속 레코드.
// State가 finished가 된 이후에는 불변이다.
type MatchRecord struct {
	ID        string     `json:"id"`
	Player1ID string     `json:"player1Id"`
	Player2ID string     `json:"player2Id"`
	Ruleset   Ruleset    `json:"ruleset"`
	State     MatchState `json:"state"`

	// GridGame 전용
	Board       Board  `json:"board,omitempty"`
	CurrentTurn string `json:"currentTurn,omitempty"`
	Moves       []Move `json:"moves,omitempty"`

	// StatCombat 전용
	Player1Health int           `json:"player1Health,omitempty"`
	Player2Health int           `json:"player2Health,omitempty"`
	Rounds        []CombatRound `json:"rounds,omitempty"`

	WinnerID   string     `json:"winnerId,omitempty"`
	Draw       bool       `json:"draw"`
	PowerGain  int64      `json:"powerGain"`
	CreatedAt  time.Time  `json:"createdAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// MatchID 두 참가자 ID로부터 결정적 매치 ID 생성.
// 정렬 후 결합하므로 호출 순서와 무관하게 같은 쌍은 같은 ID를 갖는다.
func MatchID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// HasPlayer 해당 플레이어가 이 매치의 참가자인지 확인
func (m *MatchRecord) HasPlayer(playerID string) bool {
	return m.Player1ID == playerID || m.Player2ID == playerID
}

// Opponent 상대 플레이어 ID 반환
func (m *MatchRecord) Opponent(playerID string) string {
	if m.Player1ID == playerID {
		return m.Player2ID
	}
	return m.Player1ID
}

// MarkOf 플레이어에게 배정된 마크 (선공 X, 후공 O)
func (m *MatchRecord) MarkOf(playerID string) Mark {
	if m.Player1ID == playerID {
		return MarkX
	}
	return MarkO
}

// PlayerByMark 마크가 배정된 플레이어 ID
func (m *MatchRecord) PlayerByMark(mark Mark) string {
	if mark == MarkX {
		return m.Player1ID
	}
	return m.Player2ID
}

// HealthOf 플레이어의 현재 체력
func (m *MatchRecord) HealthOf(playerID string) int {
	if m.Player1ID == playerID {
		return m.Player1Health
	}
	return m.Player2Health
}

// SetHealth 플레이어의 체력 갱신
func (m *MatchRecord) SetHealth(playerID string, health int) {
	if m.Player1ID == playerID {
		m.Player1Health = health
	} else {
		m.Player2Health = health
	}
}

// Clone 레코드 복사본 반환
func (m *MatchRecord) Clone() *MatchRecord {
	cp := *m
	if m.Moves != nil {
		cp.Moves = make([]Move, len(m.Moves))
		copy(cp.Moves, m.Moves)
	}
	if m.Rounds != nil {
		cp.Rounds = make([]CombatRound, len(m.Rounds))
		copy(cp.Rounds, m.Rounds)
	}
	if m.FinishedAt != nil {
		t := *m.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}

// MatchAction 매치에 제출되는 단일 행동.
// GridGame은 Cell이 필수, StatCombat은 행동 자체가 공격이다.
type MatchAction struct {
	Cell *int `json:"cell,omitempty"`
}

type SubmitActionRequest struct {
	Cell *int `json:"cell"`
}

type ChallengeRequest struct {
	Username string  `json:"username" binding:"required"`
	Ruleset  Ruleset `json:"ruleset"`
}
