package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/click-arena/click-arena-backend/internal/models"
	"github.com/click-arena/click-arena-backend/internal/service"
)

type ChallengeHandler struct {
	challengeService *service.ChallengeService
}

func NewChallengeHandler(challengeService *service.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
	}
}

// CreateChallenge 다른 플레이어에게 도전
func (h *ChallengeHandler) CreateChallenge(c *gin.Context) {
	playerID := c.GetString("playerId")

	var req models.ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.challengeService.Challenge(c.Request.Context(), playerID, req.Username, req.Ruleset)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTargetNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Target player not found"})
		case errors.Is(err, service.ErrSelfChallenge):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot challenge yourself"})
		case errors.Is(err, service.ErrTargetBusy):
			c.JSON(http.StatusConflict, gin.H{"error": "Target player is not available"})
		case errors.Is(err, service.ErrAlreadyEngaged):
			c.JSON(http.StatusConflict, gin.H{"error": "Already queued, challenging or in a match"})
		case errors.Is(err, service.ErrPlayerOffline):
			c.JSON(http.StatusConflict, gin.H{"error": "Player is offline"})
		case errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown ruleset"})
		case errors.Is(err, service.ErrPlayerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
		default:
			serverError(c, err, "Failed to create challenge", "playerId", playerID)
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "challenging"})
}

// AcceptChallenge 받은 도전 수락 → 매치 시작
func (h *ChallengeHandler) AcceptChallenge(c *gin.Context) {
	playerID := c.GetString("playerId")

	match, err := h.challengeService.Accept(c.Request.Context(), playerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoPendingChallenge):
			c.JSON(http.StatusConflict, gin.H{"error": "No pending challenge"})
		case errors.Is(err, service.ErrPlayerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
		default:
			serverError(c, err, "Failed to accept challenge", "playerId", playerID)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"match": match})
}

// DeclineChallenge 받은 도전 거절
func (h *ChallengeHandler) DeclineChallenge(c *gin.Context) {
	playerID := c.GetString("playerId")

	if err := h.challengeService.Decline(c.Request.Context(), playerID); err != nil {
		switch {
		case errors.Is(err, service.ErrNoPendingChallenge):
			c.JSON(http.StatusConflict, gin.H{"error": "No pending challenge"})
		case errors.Is(err, service.ErrPlayerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
		default:
			serverError(c, err, "Failed to decline challenge", "playerId", playerID)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "declined"})
}

// CancelChallenge 내가 건 도전 취소
func (h *ChallengeHandler) CancelChallenge(c *gin.Context) {
	playerID := c.GetString("playerId")

	if err := h.challengeService.Cancel(c.Request.Context(), playerID); err != nil {
		switch {
		case errors.Is(err, service.ErrNoPendingChallenge):
			c.JSON(http.StatusConflict, gin.H{"error": "No pending challenge"})
		case errors.Is(err, service.ErrPlayerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
		default:
			serverError(c, err, "Failed to cancel challenge", "playerId", playerID)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}
