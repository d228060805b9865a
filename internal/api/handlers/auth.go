package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/click-arena/click-arena-backend/internal/config"
	"github.com/click-arena/click-arena-backend/internal/models"
	"github.com/click-arena/click-arena-backend/internal/service"
	jwtutil "github.com/click-arena/click-arena-backend/pkg/jwt"
	"github.com/click-arena/click-arena-backend/pkg/logger"
)

type AuthHandler struct {
	accountService *service.AccountService
	jwtManager     *jwtutil.JWTManager
}

func NewAuthHandler(accountService *service.AccountService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		accountService: accountService,
		jwtManager:     jwtutil.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration),
	}
}

type AuthResponse struct {
	Token  string               `json:"token"`
	Player *models.PlayerRecord `json:"player"`
}

// Register 회원가입
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	player, err := h.accountService.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Username already taken",
			})
			return
		}
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid username or password",
			})
			return
		}

		serverError(c, err, "Failed to register")
		return
	}

	token, err := h.jwtManager.Generate(player.ID, player.Username)
	if err != nil {
		logger.Error("Failed to generate token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to generate token",
		})
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{
		Token:  token,
		Player: player,
	})
}

// Login 로그인
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	player, err := h.accountService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid username or password",
			})
			return
		}

		serverError(c, err, "Failed to login")
		return
	}

	token, err := h.jwtManager.Generate(player.ID, player.Username)
	if err != nil {
		logger.Error("Failed to generate token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to generate token",
		})
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		Token:  token,
		Player: player,
	})
}
