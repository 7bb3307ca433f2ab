package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig lists the browser origins allowed to call the JSON API.
// "*" or an empty list allows any origin; the origin is still echoed so cookies work.
type CORSConfig struct {
	AllowOrigins []string
	MaxAge       time.Duration
}

// DefaultCORSConfig allows origins with a one day preflight cache
func DefaultCORSConfig(origins []string) CORSConfig {
	return CORSConfig{AllowOrigins: origins, MaxAge: 24 * time.Hour}
}

// CORS answers preflight requests and rejects origins outside the allow list with 403
func CORS(config CORSConfig) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", HeaderRequestID},
		ExposeHeaders:    []string{HeaderRequestID, "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           config.MaxAge,
	}
	if len(config.AllowOrigins) == 0 || slices.Contains(config.AllowOrigins, "*") {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = config.AllowOrigins
	}
	return cors.New(cfg)
}
