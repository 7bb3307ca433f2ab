package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prohmpiriya/eventdesk/pkg/config"
	"github.com/redis/go-redis/extra/redisotel/v9"
	goredis "github.com/redis/go-redis/v9"
)

// Nil is returned by reads of missing keys
const Nil = goredis.Nil

// Config holds Redis connection settings
type Config struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a config for a local Redis
func DefaultConfig() *Config {
	return &Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// FromAppConfig builds a Config from the application config
func FromAppConfig(c *config.RedisConfig) *Config {
	cfg := DefaultConfig()
	cfg.Host = c.Host
	cfg.Port = c.Port
	cfg.Password = c.Password
	cfg.DB = c.DB
	if c.PoolSize > 0 {
		cfg.PoolSize = c.PoolSize
	}
	if c.MinIdleConns > 0 {
		cfg.MinIdleConns = c.MinIdleConns
	}
	if c.DialTimeout > 0 {
		cfg.DialTimeout = c.DialTimeout
	}
	if c.ReadTimeout > 0 {
		cfg.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		cfg.WriteTimeout = c.WriteTimeout
	}
	return cfg
}

// Addr returns host:port
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Client wraps go-redis with named Lua scripts
type Client struct {
	*goredis.Client

	mu      sync.RWMutex
	scripts map[string]string // name -> source
	shas    map[string]string // name -> sha1
}

// NewClient connects and pings Redis
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr(), err)
	}
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("instrument redis tracing: %w", err)
	}

	return &Client{
		Client:  rdb,
		scripts: make(map[string]string),
		shas:    make(map[string]string),
	}, nil
}

// HealthCheck pings Redis with a short timeout
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// LoadScript registers a Lua script under name and loads it into the server cache
func (c *Client) LoadScript(ctx context.Context, name, script string) (string, error) {
	sha, err := c.ScriptLoad(ctx, script).Result()
	if err != nil {
		return "", fmt.Errorf("load script %s: %w", name, err)
	}

	c.mu.Lock()
	c.scripts[name] = script
	c.shas[name] = sha
	c.mu.Unlock()

	return sha, nil
}

// EvalShaByName runs a registered script, reloading it when the server lost its cache
func (c *Client) EvalShaByName(ctx context.Context, name string, keys []string, args ...any) *goredis.Cmd {
	c.mu.RLock()
	sha, okSha := c.shas[name]
	script, okScript := c.scripts[name]
	c.mu.RUnlock()

	if !okSha || !okScript {
		cmd := goredis.NewCmd(ctx)
		cmd.SetErr(fmt.Errorf("script %q not loaded", name))
		return cmd
	}

	cmd := c.EvalSha(ctx, sha, keys, args...)
	if err := cmd.Err(); err != nil && strings.HasPrefix(err.Error(), "NOSCRIPT") {
		return c.Eval(ctx, script, keys, args...)
	}
	return cmd
}

// AcquireLock sets key to token only if absent. It reports whether the lock was taken.
func (c *Client) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := c.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return ok, nil
}

const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`

// ReleaseLock deletes key only when it still holds token
func (c *Client) ReleaseLock(ctx context.Context, key, token string) error {
	err := c.Eval(ctx, releaseLockScript, []string{key}, token).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}
