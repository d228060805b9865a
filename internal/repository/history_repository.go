package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/click-arena/click-arena-backend/internal/models"
	"github.com/click-arena/click-arena-backend/pkg/database"
)

// MatchHistoryEntry 완료된 매치의 영구 기록 한 줄
type MatchHistoryEntry struct {
	MatchID    string         `json:"matchId"`
	Player1ID  string         `json:"player1Id"`
	Player2ID  string         `json:"player2Id"`
	Ruleset    models.Ruleset `json:"ruleset"`
	WinnerID   string         `json:"winnerId,omitempty"`
	Draw       bool           `json:"draw"`
	PowerGain  int64          `json:"powerGain"`
	CreatedAt  time.Time      `json:"createdAt"`
	FinishedAt time.Time      `json:"finishedAt"`
}

type HistoryRepository struct {
	db *database.DB
}

func NewHistoryRepository(db *database.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Archive 완료된 매치를 히스토리에 기록. 매치 ID가 PK라 같은 매치가
// 두 번 들어와도 한 줄만 남는다.
func (r *HistoryRepository) Archive(m *models.MatchRecord) error {
	if m.FinishedAt == nil {
		return fmt.Errorf("match %s is not finished", m.ID)
	}

	detail, err := json.Marshal(struct {
		Moves  []models.Move        `json:"moves,omitempty"`
		Rounds []models.CombatRound `json:"rounds,omitempty"`
	}{m.Moves, m.Rounds})
	if err != nil {
		return fmt.Errorf("failed to marshal match detail: %w", err)
	}

	query := `
		INSERT INTO match_history (id, player1_id, player2_id, ruleset, winner_id, draw, power_gain, detail, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = r.db.Exec(query,
		m.ID,
		m.Player1ID,
		m.Player2ID,
		string(m.Ruleset),
		m.WinnerID,
		m.Draw,
		m.PowerGain,
		detail,
		m.CreatedAt,
		*m.FinishedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to archive match: %w", err)
	}

	return nil
}

// FindByPlayerID 플레이어가 치른 매치 기록 (최근순)
func (r *HistoryRepository) FindByPlayerID(playerID string, limit int) ([]*MatchHistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, player1_id, player2_id, ruleset, winner_id, draw, power_gain, created_at, finished_at
		FROM match_history
		WHERE player1_id = $1 OR player2_id = $1
		ORDER BY finished_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query match history: %w", err)
	}
	defer rows.Close()

	var entries []*MatchHistoryEntry
	for rows.Next() {
		entry := &MatchHistoryEntry{}
		var ruleset string
		err := rows.Scan(
			&entry.MatchID,
			&entry.Player1ID,
			&entry.Player2ID,
			&ruleset,
			&entry.WinnerID,
			&entry.Draw,
			&entry.PowerGain,
			&entry.CreatedAt,
			&entry.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match history row: %w", err)
		}
		entry.Ruleset = models.Ruleset(ruleset)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate match history: %w", err)
	}

	return entries, nil
}
