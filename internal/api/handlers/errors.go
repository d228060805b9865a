package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/click-arena/click-arena-backend/internal/store"
	"github.com/click-arena/click-arena-backend/pkg/logger"
)

// serverError 재시도 한도를 넘긴 동시성 충돌은 409, 스토어 장애는 503,
// 그 외는 500으로 응답한다. 409/503은 클라이언트가 재시도할 수 있다.
func serverError(c *gin.Context, err error, message string, keysAndValues ...interface{}) {
	if errors.Is(err, store.ErrConflict) {
		c.Header("Retry-After", "1")
		c.JSON(http.StatusConflict, gin.H{"error": "Concurrent update conflict, retry the request"})
		return
	}
	if errors.Is(err, store.ErrUnavailable) {
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
		return
	}

	logger.Error(message, append(keysAndValues, "error", err)...)
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}
