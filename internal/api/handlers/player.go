package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/click-arena/click-arena-backend/internal/models"
	"github.com/click-arena/click-arena-backend/internal/service"
)

type PlayerHandler struct {
	playerService   *service.PlayerService
	presenceService *service.PresenceService
}

func NewPlayerHandler(playerService *service.PlayerService, presenceService *service.PresenceService) *PlayerHandler {
	return &PlayerHandler{
		playerService:   playerService,
		presenceService: presenceService,
	}
}

// GetCurrentPlayer 내 플레이어 상태 조회
func (h *PlayerHandler) GetCurrentPlayer(c *gin.Context) {
	playerID := c.GetString("playerId")

	player, err := h.playerService.GetByID(c.Request.Context(), playerID)
	if err != nil {
		if errors.Is(err, service.ErrPlayerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
			return
		}
		serverError(c, err, "Failed to get player", "playerId", playerID)
		return
	}

	c.JSON(http.StatusOK, player)
}

// GetPlayerByUsername 다른 플레이어 조회 (공개 프로필)
func (h *PlayerHandler) GetPlayerByUsername(c *gin.Context) {
	username := c.Param("username")

	player, err := h.playerService.GetByUsername(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, service.ErrPlayerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
			return
		}
		serverError(c, err, "Failed to get player", "username", username)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":               player.ID,
		"username":         player.Username,
		"status":           player.Status,
		"power":            player.Power,
		"wins":             player.Wins,
		"losses":           player.Losses,
		"highestWinStreak": player.HighestWinStreak,
	})
}

// AddClicks 클릭 배치를 파워로 적립
func (h *PlayerHandler) AddClicks(c *gin.Context) {
	playerID := c.GetString("playerId")

	var req models.AddClicksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	player, err := h.playerService.AddClicks(c.Request.Context(), playerID, req.Count)
	if err != nil {
		if errors.Is(err, service.ErrPlayerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
			return
		}
		serverError(c, err, "Failed to add clicks", "playerId", playerID)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"power": player.Power,
	})
}

// GetMatchHistory 내 매치 기록
func (h *PlayerHandler) GetMatchHistory(c *gin.Context) {
	playerID := c.GetString("playerId")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	entries, err := h.playerService.MatchHistory(c.Request.Context(), playerID, limit)
	if err != nil {
		serverError(c, err, "Failed to get match history", "playerId", playerID)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"matches": entries,
		"count":   len(entries),
	})
}

// Logout 플레이어를 오프라인으로 표시
func (h *PlayerHandler) Logout(c *gin.Context) {
	playerID := c.GetString("playerId")

	if err := h.presenceService.Offline(c.Request.Context(), playerID); err != nil {
		if errors.Is(err, service.ErrAlreadyEngaged) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Resolve the active challenge or match before logging out",
			})
			return
		}
		if errors.Is(err, service.ErrPlayerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
			return
		}
		serverError(c, err, "Failed to logout", "playerId", playerID)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "offline"})
}
