package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/click-arena/click-arena-backend/internal/game"
	"github.com/click-arena/click-arena-backend/internal/models"
	"github.com/click-arena/click-arena-backend/internal/service"
)

type MatchHandler struct {
	matchService *service.MatchService
}

func NewMatchHandler(matchService *service.MatchService) *MatchHandler {
	return &MatchHandler{
		matchService: matchService,
	}
}

// GetMatch 매치 조회
func (h *MatchHandler) GetMatch(c *gin.Context) {
	matchID := c.Param("id")

	match, err := h.matchService.GetByID(c.Request.Context(), matchID)
	if err != nil {
		if errors.Is(err, service.ErrMatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
			return
		}
		serverError(c, err, "Failed to get match", "matchId", matchID)
		return
	}

	c.JSON(http.StatusOK, match)
}

// SubmitAction 매치에 행동 제출 (그리드 수 또는 전투 공격)
func (h *MatchHandler) SubmitAction(c *gin.Context) {
	playerID := c.GetString("playerId")
	matchID := c.Param("id")

	var req models.SubmitActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	match, err := h.matchService.SubmitAction(c.Request.Context(), matchID, playerID, models.MatchAction{Cell: req.Cell})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMatchNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
		case errors.Is(err, service.ErrNotInMatch):
			c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this match"})
		case errors.Is(err, service.ErrMatchNotActive):
			c.JSON(http.StatusConflict, gin.H{"error": "Match is not active"})
		case errors.Is(err, service.ErrNotYourTurn):
			c.JSON(http.StatusConflict, gin.H{"error": "Not your turn"})
		case errors.Is(err, game.ErrInvalidCell), errors.Is(err, game.ErrCellOccupied), errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			serverError(c, err, "Failed to submit action", "matchId", matchID, "playerId", playerID)
		}
		return
	}

	c.JSON(http.StatusOK, match)
}

// AbandonMatch 매치 포기 (즉시 패배)
func (h *MatchHandler) AbandonMatch(c *gin.Context) {
	playerID := c.GetString("playerId")
	matchID := c.Param("id")

	match, err := h.matchService.Abandon(c.Request.Context(), matchID, playerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMatchNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
		case errors.Is(err, service.ErrNotInMatch):
			c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant of this match"})
		case errors.Is(err, service.ErrMatchNotActive):
			c.JSON(http.StatusConflict, gin.H{"error": "Match is not active"})
		default:
			serverError(c, err, "Failed to abandon match", "matchId", matchID, "playerId", playerID)
		}
		return
	}

	c.JSON(http.StatusOK, match)
}
