package api

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/click-arena/click-arena-backend/internal/api/handlers"
	"github.com/click-arena/click-arena-backend/internal/api/middleware"
	"github.com/click-arena/click-arena-backend/internal/config"
	"github.com/click-arena/click-arena-backend/internal/game"
	"github.com/click-arena/click-arena-backend/internal/repository"
	"github.com/click-arena/click-arena-backend/internal/service"
	"github.com/click-arena/click-arena-backend/internal/store"
	"github.com/click-arena/click-arena-backend/internal/websocket"
	"github.com/click-arena/click-arena-backend/pkg/database"
	"github.com/click-arena/click-arena-backend/pkg/distributed"
	"github.com/click-arena/click-arena-backend/pkg/logger"
	"github.com/click-arena/click-arena-backend/pkg/ratelimit"
)

// Cleanup 라우터가 시작한 백그라운드 구성요소 정리 함수
type Cleanup func()

// SetupRouter API 라우터 설정. redisClient는 분산 락 용도로,
// 단일 인스턴스(메모리 스토어) 실행에서는 nil이어도 된다.
func SetupRouter(cfg *config.Config, db *database.DB, st store.Store, redisClient *redis.Client) (*gin.Engine, Cleanup) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Repository 초기화
	accountRepo := repository.NewAccountRepository(db)
	historyRepo := repository.NewHistoryRepository(db)

	// Service 초기화
	dice := game.NewDice()
	matchService := service.NewMatchService(st, historyRepo, dice)
	presenceService := service.NewPresenceService(st, matchService, cfg.PairRetries)
	accountService := service.NewAccountService(accountRepo, st)
	playerService := service.NewPlayerService(st, historyRepo)

	// 도전 만료 스위퍼. 다중 인스턴스에서는 Redis 락으로 조율한다.
	var lockManager *distributed.RedisLockManager
	if redisClient != nil {
		lockManager = distributed.NewRedisLockManager(redisClient)
	}
	challengeService := service.NewChallengeService(
		st,
		matchService,
		lockManager,
		cfg.ChallengeTimeout,
		cfg.ChallengeSweepInterval,
	)
	challengeService.Start()
	logger.Info("ChallengeService sweeper started",
		"timeout", cfg.ChallengeTimeout,
		"interval", cfg.ChallengeSweepInterval)

	// Rate Limit. Redis가 있으면 인스턴스 간 버킷을 공유하고,
	// 없으면 (단일 인스턴스 실행) 프로세스 내 토큰 버킷으로 돌아간다.
	clickLimit := middleware.ClickRateLimit()
	actionLimit := middleware.MatchActionRateLimit()
	authLimit := middleware.AuthRateLimit()
	if redisClient != nil {
		limiter := ratelimit.NewRedisRateLimiterWithClient(redisClient)
		clickLimit = middleware.RedisClickRateLimit(limiter)
		actionLimit = middleware.RedisMatchActionRateLimit(limiter)
		authLimit = middleware.RedisAuthRateLimit(limiter)
	}

	// WebSocket Hub 초기화 및 시작
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// 스토어 이벤트 → WebSocket 브리지
	bridge := websocket.NewBridge(st, wsHub)
	if err := bridge.Start(); err != nil {
		logger.Error("Failed to start event bridge", "error", err)
	}

	// Handler 초기화
	authHandler := handlers.NewAuthHandler(accountService, cfg)
	playerHandler := handlers.NewPlayerHandler(playerService, presenceService)
	queueHandler := handlers.NewQueueHandler(presenceService)
	challengeHandler := handlers.NewChallengeHandler(challengeService)
	matchHandler := handlers.NewMatchHandler(matchService)
	leaderboardHandler := handlers.NewLeaderboardHandler(playerService)
	wsHandler := handlers.NewWebSocketHandler(wsHub)

	// Health check
	router.GET("/health", handlers.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	v1.Use(middleware.GeneralAPIRateLimit())
	{
		// WebSocket endpoint
		v1.GET("/ws", middleware.Auth(cfg), wsHandler.HandleWebSocket)

		// Auth routes
		auth := v1.Group("/auth")
		auth.Use(authLimit)
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// Player routes
		players := v1.Group("/players")
		{
			players.GET("/:username", playerHandler.GetPlayerByUsername)

			me := players.Group("/me")
			me.Use(middleware.Auth(cfg))
			{
				me.GET("", playerHandler.GetCurrentPlayer)
				me.POST("/clicks", clickLimit, playerHandler.AddClicks)
				me.GET("/matches", playerHandler.GetMatchHistory)
				me.POST("/logout", playerHandler.Logout)
			}
		}

		// Queue routes
		queue := v1.Group("/queue")
		queue.Use(middleware.Auth(cfg))
		{
			queue.POST("/join", queueHandler.JoinQueue)
			queue.POST("/leave", queueHandler.LeaveQueue)
		}

		// Challenge routes
		challenges := v1.Group("/challenges")
		challenges.Use(middleware.Auth(cfg))
		{
			challenges.POST("", challengeHandler.CreateChallenge)
			challenges.POST("/accept", challengeHandler.AcceptChallenge)
			challenges.POST("/decline", challengeHandler.DeclineChallenge)
			challenges.POST("/cancel", challengeHandler.CancelChallenge)
		}

		// Match routes
		matches := v1.Group("/matches")
		{
			matches.GET("/:id", matchHandler.GetMatch)
			matches.POST("/:id/actions", middleware.Auth(cfg), actionLimit, matchHandler.SubmitAction)
			matches.POST("/:id/abandon", middleware.Auth(cfg), matchHandler.AbandonMatch)
		}

		// Leaderboard routes
		v1.GET("/leaderboard", leaderboardHandler.GetLeaderboard)
	}

	cleanup := func() {
		challengeService.Stop()
		bridge.Stop()
	}
	return router, cleanup
}
