package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/click-arena/click-arena-backend/internal/service"
)

type QueueHandler struct {
	presenceService *service.PresenceService
}

func NewQueueHandler(presenceService *service.PresenceService) *QueueHandler {
	return &QueueHandler{
		presenceService: presenceService,
	}
}

// JoinQueue 열린 큐 참가. 바로 짝이 잡히면 매치를 함께 돌려준다.
func (h *QueueHandler) JoinQueue(c *gin.Context) {
	playerID := c.GetString("playerId")

	match, err := h.presenceService.JoinQueue(c.Request.Context(), playerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyEngaged):
			c.JSON(http.StatusConflict, gin.H{"error": "Already queued, challenging or in a match"})
		case errors.Is(err, service.ErrPlayerOffline):
			c.JSON(http.StatusConflict, gin.H{"error": "Player is offline"})
		case errors.Is(err, service.ErrPlayerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
		default:
			serverError(c, err, "Failed to join queue", "playerId", playerID)
		}
		return
	}

	if match != nil {
		c.JSON(http.StatusOK, gin.H{
			"status": "matched",
			"match":  match,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "searching"})
}

// LeaveQueue 큐 이탈
func (h *QueueHandler) LeaveQueue(c *gin.Context) {
	playerID := c.GetString("playerId")

	if err := h.presenceService.LeaveQueue(c.Request.Context(), playerID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotSearching):
			c.JSON(http.StatusConflict, gin.H{"error": "Not in the queue"})
		case errors.Is(err, service.ErrPlayerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
		default:
			serverError(c, err, "Failed to leave queue", "playerId", playerID)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "online"})
}
