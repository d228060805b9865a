package game

import (
	"testing"

	"github.com/click-arena/click-arena-backend/internal/models"
)

func TestApplyMove_RejectsOccupiedCell(t *testing.T) {
	var board models.Board
	board[4] = models.MarkX

	_, _, err := ApplyMove(board, 4, models.MarkO)
	if err != ErrCellOccupied {
		t.Errorf("ApplyMove on occupied cell: got %v, want ErrCellOccupied", err)
	}
}

func TestApplyMove_RejectsInvalidCell(t *testing.T) {
	var board models.Board

	for _, cell := range []int{-1, 9, 100} {
		if _, _, err := ApplyMove(board, cell, models.MarkX); err != ErrInvalidCell {
			t.Errorf("ApplyMove(%d): got %v, want ErrInvalidCell", cell, err)
		}
	}
}

func TestApplyMove_DetectsAllWinLines(t *testing.T) {
	lines := [8][3]int{
		{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
		{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
		{0, 4, 8}, {2, 4, 6},
	}

	for _, line := range lines {
		var board models.Board
		board[line[0]] = models.MarkX
		board[line[1]] = models.MarkX

		board, outcome, err := ApplyMove(board, line[2], models.MarkX)
		if err != nil {
			t.Fatalf("line %v: unexpected error %v", line, err)
		}
		if !outcome.Terminal || outcome.WinningMark != models.MarkX {
			t.Errorf("line %v: got outcome %+v, want X win", line, outcome)
		}
		if outcome.Draw {
			t.Errorf("line %v: win reported as draw", line)
		}
		_ = board
	}
}

func TestApplyMove_Draw(t *testing.T) {
	// X O X
	// X O O
	// O X _   마지막 수로 무승부
	board := models.Board{
		models.MarkX, models.MarkO, models.MarkX,
		models.MarkX, models.MarkO, models.MarkO,
		models.MarkO, models.MarkX, models.MarkEmpty,
	}

	_, outcome, err := ApplyMove(board, 8, models.MarkX)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Terminal || !outcome.Draw {
		t.Errorf("full board with no line: got %+v, want draw", outcome)
	}
	if outcome.WinningMark != models.MarkEmpty {
		t.Errorf("draw should have no winning mark, got %q", outcome.WinningMark)
	}
}

func TestApplyMove_NonTerminalMidGame(t *testing.T) {
	var board models.Board

	board, outcome, err := ApplyMove(board, 0, models.MarkX)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Terminal {
		t.Errorf("single move should not be terminal: %+v", outcome)
	}
	if board[0] != models.MarkX {
		t.Errorf("board[0] = %q, want X", board[0])
	}
}

func TestApplyMove_TerminalBoardsAreExclusive(t *testing.T) {
	// 모든 종료 보드는 {X승, O승, 무승부} 중 정확히 하나여야 한다.
	boards := []models.Board{
		{models.MarkX, models.MarkX, models.MarkX, models.MarkO, models.MarkO, models.MarkEmpty, models.MarkEmpty, models.MarkEmpty, models.MarkEmpty},
		{models.MarkO, models.MarkO, models.MarkO, models.MarkX, models.MarkX, models.MarkEmpty, models.MarkX, models.MarkEmpty, models.MarkEmpty},
		{models.MarkX, models.MarkO, models.MarkX, models.MarkX, models.MarkO, models.MarkO, models.MarkO, models.MarkX, models.MarkX},
	}

	for i, board := range boards {
		winner := WinningMark(board)
		draw := winner == models.MarkEmpty && BoardFull(board)

		outcomes := 0
		if winner == models.MarkX {
			outcomes++
		}
		if winner == models.MarkO {
			outcomes++
		}
		if draw {
			outcomes++
		}
		if outcomes != 1 {
			t.Errorf("board %d: got %d outcomes, want exactly 1 (winner=%q draw=%v)", i, outcomes, winner, draw)
		}
	}
}
