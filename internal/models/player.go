package models

import "time"

type PlayerStatus string

const (
	StatusOnline      PlayerStatus = "online"
	StatusSearching   PlayerStatus = "searching"
	StatusChallenging PlayerStatus = "challenging"
	StatusInMatch     PlayerStatus = "in_match"
	StatusOffline     PlayerStatus = "offline"
)

// StartingPower 신규 플레이어의 시작 파워
const StartingPower int64 = 10

// PlayerRecord 플레이어별 영속 상태 (status가 유일한 기준, 파생 필드 없음)
type PlayerRecord struct {
	ID               string       `json:"id"`
	Username         string       `json:"username"`
	Status           PlayerStatus `json:"status"`
	CurrentOpponent  string       `json:"currentOpponent,omitempty"`
	ChallengeFrom    string       `json:"challengeFrom,omitempty"`
	ChallengeRuleset Ruleset      `json:"challengeRuleset,omitempty"`
	Power            int64        `json:"power"`
	Wins             int          `json:"wins"`
	Losses           int          `json:"losses"`
	WinStreak        int          `json:"winStreak"`
	HighestWinStreak int          `json:"highestWinStreak"`
	LastMatchAt      *time.Time   `json:"lastMatchAt,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// Idle 큐 참가나 도전이 가능한 상태인지 확인
func (p *PlayerRecord) Idle() bool {
	return p.Status == StatusOnline && p.CurrentOpponent == "" && p.ChallengeFrom == ""
}

// Clone 레코드 복사본 반환
func (p *PlayerRecord) Clone() *PlayerRecord {
	cp := *p
	if p.LastMatchAt != nil {
		t := *p.LastMatchAt
		cp.LastMatchAt = &t
	}
	return &cp
}

type AddClicksRequest struct {
	Count int `json:"count" binding:"required,min=1,max=1000"`
}
