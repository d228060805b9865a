package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/click-arena/click-arena-backend/internal/service"
)

type LeaderboardHandler struct {
	playerService *service.PlayerService
}

func NewLeaderboardHandler(playerService *service.PlayerService) *LeaderboardHandler {
	return &LeaderboardHandler{
		playerService: playerService,
	}
}

// GetLeaderboard 파워 상위 플레이어 목록
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	players, err := h.playerService.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		serverError(c, err, "Failed to get leaderboard")
		return
	}

	entries := make([]gin.H, 0, len(players))
	for i, p := range players {
		entries = append(entries, gin.H{
			"rank":             i + 1,
			"id":               p.ID,
			"username":         p.Username,
			"power":            p.Power,
			"wins":             p.Wins,
			"losses":           p.Losses,
			"highestWinStreak": p.HighestWinStreak,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard": entries,
		"count":       len(entries),
	})
}
