package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestLocalRateLimiter_TokenBucket(t *testing.T) {
	rl := NewLocalRateLimiter(RateLimitConfig{RequestsPerSecond: 2, BurstSize: 3})
	defer rl.Stop()

	now := time.Now()
	for i := 0; i < 3; i++ {
		assert.True(t, rl.allowAt("ip", now), "burst request %d", i)
	}
	assert.False(t, rl.allowAt("ip", now))

	// other keys have their own bucket
	assert.True(t, rl.allowAt("other", now))

	// 500ms at 2 rps refills one token
	assert.True(t, rl.allowAt("ip", now.Add(500*time.Millisecond)))
	assert.False(t, rl.allowAt("ip", now.Add(500*time.Millisecond)))

	allowed, rejected := rl.GetStats()
	assert.Equal(t, uint64(5), allowed)
	assert.Equal(t, uint64(2), rejected)
}

func TestRateLimiterMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2}))
	router.POST("/api/v1/webhooks/razorpay", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", w.Header().Get("Retry-After"))
			assert.Contains(t, w.Body.String(), "TOO_MANY_REQUESTS")
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterMiddleware_KeyFunc(t *testing.T) {
	tests := []struct {
		name    string
		keyFunc func(c *gin.Context) string
		want    []int
	}{
		{"client IP shares one bucket", nil, []int{http.StatusOK, http.StatusTooManyRequests}},
		{"route and client IP", RouteClientKey, []int{http.StatusOK, http.StatusOK}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(RateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, KeyFunc: tt.keyFunc}))
			router.POST("/api/v1/webhooks/stripe", func(c *gin.Context) { c.Status(http.StatusOK) })
			router.POST("/api/v1/webhooks/razorpay", func(c *gin.Context) { c.Status(http.StatusOK) })

			codes := make([]int, 0, 2)
			for _, path := range []string{"/api/v1/webhooks/stripe", "/api/v1/webhooks/razorpay"} {
				req := httptest.NewRequest(http.MethodPost, path, nil)
				req.RemoteAddr = "198.51.100.7:4000"
				w := httptest.NewRecorder()
				router.ServeHTTP(w, req)
				codes = append(codes, w.Code)
			}
			assert.Equal(t, tt.want, codes)
		})
	}
}

func TestRateLimiterMiddleware_Disabled(t *testing.T) {
	router := gin.New()
	router.Use(RateLimiter(RateLimitConfig{}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-abc")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-abc", w.Body.String())
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(Recovery())
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}
