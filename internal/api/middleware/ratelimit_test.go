package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/click-arena/click-arena-backend/pkg/ratelimit"
)

func limitedRouter(t *testing.T, limit gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.POST("/clicks", func(c *gin.Context) {
		c.Set("playerId", "p1")
		c.Next()
	}, limit, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestRateLimitMiddleware_EnforcesBucket(t *testing.T) {
	router := limitedRouter(t, RateLimitMiddleware(RateLimitConfig{
		Capacity:   3,
		RefillRate: 1,
		KeyFunc:    PlayerKeyFunc,
	}))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/clicks", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d, want 200", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/clicks", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("request past capacity: status %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}
}

func TestRateLimitMiddleware_RequiresPlayerKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/clicks", RateLimitMiddleware(RateLimitConfig{
		Capacity:   3,
		RefillRate: 1,
		KeyFunc:    PlayerKeyFunc,
	}), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/clicks", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated request: status %d, want 401", w.Code)
	}
}

func TestRedisRateLimitMiddleware_SharedWindow(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis server not available: %v", err)
	}
	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})
	client.FlushDB(ctx)

	limiter := ratelimit.NewRedisRateLimiterWithClient(client)
	limit := RedisRateLimitMiddleware(RedisRateLimitConfig{
		Limiter: limiter,
		Limit:   3,
		Window:  time.Minute,
		KeyFunc: PlayerKeyFunc,
	})

	// 같은 리미터를 쓰는 두 라우터 = 두 인스턴스. 윈도우는 Redis에서 공유된다.
	a := limitedRouter(t, limit)
	b := limitedRouter(t, limit)

	for i, router := range []*gin.Engine{a, b, a} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/clicks", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d, want 200", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	b.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/clicks", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("request past shared limit: status %d, want 429", w.Code)
	}
}
