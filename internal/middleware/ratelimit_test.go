package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Handler(t *testing.T) {
	rl := NewRateLimiter(time.Minute, 2)
	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// A different client has its own bucket.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter_Refill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(time.Minute, 2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	now = now.Add(30 * time.Second)
	assert.True(t, rl.Allow("a"))
}

func TestRateLimiter_Sweep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(time.Minute, 10)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(rateLimiterExpiry / 2)
	rl.Allow("b")
	now = now.Add(rateLimiterExpiry/2 + time.Second)

	rl.Sweep()
	assert.Equal(t, 1, rl.Len())
}
