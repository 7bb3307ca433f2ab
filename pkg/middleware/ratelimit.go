package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	pkgredis "github.com/prohmpiriya/eventdesk/pkg/redis"
	"github.com/prohmpiriya/eventdesk/pkg/response"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerSecond per key (0 = unlimited)
	RequestsPerSecond int
	// BurstSize is the token bucket capacity
	BurstSize int
	// RedisClient switches to the distributed limiter when set
	RedisClient *pkgredis.Client
	KeyPrefix   string
	// KeyFunc defaults to the client IP
	KeyFunc         func(c *gin.Context) string
	CleanupInterval time.Duration
	EntryTTL        time.Duration
}

// DefaultRateLimitConfig returns the webhook route defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		BurstSize:         100,
		KeyPrefix:         "ratelimit:",
		CleanupInterval:   time.Minute,
		EntryTTL:          time.Minute,
	}
}

type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

// LocalRateLimiter implements in-memory token bucket rate limiting
type LocalRateLimiter struct {
	config   RateLimitConfig
	entries  sync.Map
	stop     chan struct{}
	stopOnce sync.Once

	totalAllowed  atomic.Uint64
	totalRejected atomic.Uint64
}

// NewLocalRateLimiter creates a limiter and starts its cleanup goroutine
func NewLocalRateLimiter(config RateLimitConfig) *LocalRateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}
	if config.EntryTTL <= 0 {
		config.EntryTTL = time.Minute
	}
	rl := &LocalRateLimiter{
		config: config,
		stop:   make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow takes one token for key if available
func (rl *LocalRateLimiter) Allow(key string) bool {
	return rl.allowAt(key, time.Now())
}

func (rl *LocalRateLimiter) allowAt(key string, now time.Time) bool {
	entry, _ := rl.entries.LoadOrStore(key, &rateLimitEntry{
		tokens:     float64(rl.config.BurstSize),
		lastUpdate: now,
	})
	e := entry.(*rateLimitEntry)

	e.mu.Lock()
	defer e.mu.Unlock()

	elapsed := now.Sub(e.lastUpdate).Seconds()
	if elapsed > 0 {
		e.tokens = min(float64(rl.config.BurstSize), e.tokens+elapsed*float64(rl.config.RequestsPerSecond))
		e.lastUpdate = now
	}

	if e.tokens >= 1 {
		e.tokens--
		rl.totalAllowed.Add(1)
		return true
	}

	rl.totalRejected.Add(1)
	return false
}

// GetStats returns allowed and rejected totals
func (rl *LocalRateLimiter) GetStats() (allowed, rejected uint64) {
	return rl.totalAllowed.Load(), rl.totalRejected.Load()
}

func (rl *LocalRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-rl.config.EntryTTL)
			rl.entries.Range(func(key, value any) bool {
				e := value.(*rateLimitEntry)
				e.mu.Lock()
				if e.lastUpdate.Before(cutoff) {
					rl.entries.Delete(key)
				}
				e.mu.Unlock()
				return true
			})
		case <-rl.stop:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *LocalRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

const tokenBucketScript = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call("HMGET", key, "tokens", "last_update")
local tokens = tonumber(data[1]) or burst
local last_update = tonumber(data[2]) or now

tokens = math.min(burst, tokens + math.max(0, now - last_update) * rate)

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end
redis.call("HSET", key, "tokens", tokens, "last_update", now)
redis.call("EXPIRE", key, 60)
return {allowed, math.floor(tokens)}
`

// RedisRateLimiter implements a token bucket shared across instances
type RedisRateLimiter struct {
	config RateLimitConfig
}

// NewRedisRateLimiter creates a Redis-backed limiter
func NewRedisRateLimiter(config RateLimitConfig) *RedisRateLimiter {
	return &RedisRateLimiter{config: config}
}

// Allow takes one token for key. It returns the remaining tokens.
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	now := float64(time.Now().UnixNano()) / 1e9

	values, err := rl.config.RedisClient.Eval(ctx, tokenBucketScript,
		[]string{rl.config.KeyPrefix + key},
		rl.config.RequestsPerSecond,
		rl.config.BurstSize,
		now,
	).Slice()
	if err != nil {
		return false, 0, err
	}
	if len(values) < 2 {
		return false, 0, fmt.Errorf("unexpected result length %d", len(values))
	}

	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	return allowed == 1, int(remaining), nil
}

// RouteClientKey buckets requests per route template and client IP
func RouteClientKey(c *gin.Context) string {
	return c.FullPath() + "|" + c.ClientIP()
}

// RateLimiter creates a rate limiting middleware
func RateLimiter(config RateLimitConfig) gin.HandlerFunc {
	if config.RequestsPerSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if config.BurstSize <= 0 {
		config.BurstSize = config.RequestsPerSecond
	}
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}

	var localLimiter *LocalRateLimiter
	var redisLimiter *RedisRateLimiter
	if config.RedisClient != nil {
		redisLimiter = NewRedisRateLimiter(config)
	} else {
		localLimiter = NewLocalRateLimiter(config)
	}

	return func(c *gin.Context) {
		key := keyFunc(c)

		var allowed bool
		remaining := config.BurstSize - 1

		if redisLimiter != nil {
			var err error
			allowed, remaining, err = redisLimiter.Allow(c.Request.Context(), key)
			if err != nil {
				// fail open
				allowed = true
			}
		} else {
			allowed = localLimiter.Allow(key)
		}
		if !allowed {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerSecond))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.TooManyRequests("Rate limit exceeded. Please retry after 1 second(s)."))
			return
		}

		c.Next()
	}
}
