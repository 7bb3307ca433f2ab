package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type checkFunc func(ctx context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_Ready(t *testing.T) {
	ok := checkFunc(func(context.Context) error { return nil })
	down := checkFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") })

	tests := []struct {
		name       string
		checks     map[string]HealthChecker
		wantStatus int
	}{
		{name: "all healthy", checks: map[string]HealthChecker{"postgres": ok, "redis": ok}, wantStatus: http.StatusOK},
		{name: "redis down", checks: map[string]HealthChecker{"postgres": ok, "redis": down}, wantStatus: http.StatusServiceUnavailable},
		{name: "optional dependency absent", checks: map[string]HealthChecker{"postgres": ok, "redis": nil}, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("test", tt.checks)
			r := gin.New()
			r.GET("/ready", h.Ready)
			r.GET("/health", h.Health)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, tt.wantStatus, w.Code)

			w = httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}
