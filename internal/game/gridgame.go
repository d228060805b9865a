package game

import (
	"errors"

	"github.com/click-arena/click-arena-backend/internal/models"
)

var (
	ErrInvalidCell  = errors.New("cell index out of range")
	ErrCellOccupied = errors.New("cell already occupied")
)

// winLines 3행, 3열, 2대각선
var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// MoveOutcome 수 적용 결과
type MoveOutcome struct {
	Terminal    bool
	WinningMark models.Mark // 승리 라인이 없으면 MarkEmpty
	Draw        bool
}

// ApplyMove 보드에 수를 적용하고 종료 여부를 판정한다.
// 이미 채워진 셀이면 ErrCellOccupied. 호출자가 검사했더라도 재검증한다.
func ApplyMove(board models.Board, cell int, mark models.Mark) (models.Board, MoveOutcome, error) {
	if cell < 0 || cell >= len(board) {
		return board, MoveOutcome{}, ErrInvalidCell
	}
	if board[cell] != models.MarkEmpty {
		return board, MoveOutcome{}, ErrCellOccupied
	}

	board[cell] = mark

	if winner := WinningMark(board); winner != models.MarkEmpty {
		return board, MoveOutcome{Terminal: true, WinningMark: winner}, nil
	}
	if BoardFull(board) {
		return board, MoveOutcome{Terminal: true, Draw: true}, nil
	}
	return board, MoveOutcome{}, nil
}

// WinningMark 8개 라인 중 한 마크로 채워진 라인의 마크 반환
func WinningMark(board models.Board) models.Mark {
	for _, line := range winLines {
		m := board[line[0]]
		if m != models.MarkEmpty && board[line[1]] == m && board[line[2]] == m {
			return m
		}
	}
	return models.MarkEmpty
}

// BoardFull 빈 셀이 없는지 확인
func BoardFull(board models.Board) bool {
	for _, m := range board {
		if m == models.MarkEmpty {
			return false
		}
	}
	return true
}
