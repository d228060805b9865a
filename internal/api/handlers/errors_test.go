package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/click-arena/click-arena-backend/internal/store"
)

func TestServerError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		retryable  bool
	}{
		{"conflict past retry bound", fmt.Errorf("join queue: %w", store.ErrConflict), http.StatusConflict, true},
		{"store unavailable", fmt.Errorf("failed to get player: %w", store.ErrUnavailable), http.StatusServiceUnavailable, true},
		{"unexpected error", errors.New("boom"), http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

			serverError(c, tt.err, "Failed to do the thing")

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.retryable && w.Header().Get("Retry-After") == "" {
				t.Error("retryable error missing Retry-After header")
			}
			if !tt.retryable && w.Header().Get("Retry-After") != "" {
				t.Error("non-retryable error should not set Retry-After")
			}
		})
	}
}
