package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prohmpiriya/eventdesk/pkg/logger"
	"github.com/prohmpiriya/eventdesk/pkg/telemetry"
	"go.uber.org/zap"
)

// AuditAction is what a mutating request did, e.g. "create", "void", "refund"
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
)

const contextKeyAuditMetadata = "audit_metadata"

// AuditEntry is one row of the audit trail
type AuditEntry struct {
	ID           string         `json:"id"`
	TenantID     *string        `json:"tenant_id,omitempty"`
	UserID       *string        `json:"user_id,omitempty"`
	UserEmail    string         `json:"user_email,omitempty"`
	UserRole     string         `json:"user_role,omitempty"`
	Action       AuditAction    `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   *string        `json:"resource_id,omitempty"`
	StatusCode   int            `json:"status_code"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	TraceID      string         `json:"trace_id,omitempty"`
	Request      map[string]any `json:"request,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditWriter persists batches of audit entries
type AuditWriter interface {
	WriteAuditEntries(ctx context.Context, entries []*AuditEntry) error
}

// AuditConfig holds configuration for the audit middleware
type AuditConfig struct {
	Writer        AuditWriter
	BufferSize    int
	FlushInterval time.Duration
	BatchSize     int
	// SkipPrefixes are request path prefixes never audited
	SkipPrefixes []string
	// CaptureBody stores JSON request bodies up to MaxBodySize with Sensitive keys redacted
	CaptureBody bool
	MaxBodySize int64
	Sensitive   []string
}

// DefaultAuditConfig returns default configuration
func DefaultAuditConfig(writer AuditWriter) *AuditConfig {
	return &AuditConfig{
		Writer:        writer,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
		BatchSize:     100,
		SkipPrefixes:  []string{"/health", "/ready", "/api/v1/webhooks/", "/api/v1/auth/login"},
		CaptureBody:   true,
		MaxBodySize:   10 << 10,
		Sensitive:     []string{"password", "token", "secret", "api_key", "card", "signature"},
	}
}

// AuditLogger buffers entries and writes them in batches from one goroutine.
// A full buffer drops entries instead of blocking requests.
type AuditLogger struct {
	config  *AuditConfig
	entries chan *AuditEntry
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

// NewAuditLogger creates a new audit logger and starts its writer
func NewAuditLogger(config *AuditConfig) *AuditLogger {
	def := DefaultAuditConfig(config.Writer)
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = def.FlushInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}

	al := &AuditLogger{
		config:  config,
		entries: make(chan *AuditEntry, config.BufferSize),
		done:    make(chan struct{}),
	}
	go al.run()
	return al
}

// Log queues an entry
func (al *AuditLogger) Log(entry *AuditEntry) {
	select {
	case al.entries <- entry:
	default:
		if n := al.dropped.Add(1); n%100 == 1 {
			logger.Warn("audit buffer full, dropping entries", zap.Uint64("dropped_total", n))
		}
	}
}

// Dropped returns the number of entries lost to a full buffer
func (al *AuditLogger) Dropped() uint64 {
	return al.dropped.Load()
}

// Close writes whatever is queued and stops the writer. Safe to call twice.
func (al *AuditLogger) Close() error {
	al.once.Do(func() {
		close(al.entries)
		<-al.done
	})
	return nil
}

func (al *AuditLogger) run() {
	defer close(al.done)

	ticker := time.NewTicker(al.config.FlushInterval)
	defer ticker.Stop()

	var batch []*AuditEntry
	flush := func() {
		if len(batch) > 0 {
			al.write(batch)
			batch = nil
		}
	}

	for {
		select {
		case entry, ok := <-al.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= al.config.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (al *AuditLogger) write(entries []*AuditEntry) {
	if al.config.Writer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := al.config.Writer.WriteAuditEntries(ctx, entries); err != nil {
		logger.Error("failed to write audit entries", zap.Int("count", len(entries)), zap.Error(err))
	}
}

// AuditMiddleware records every mutating request after its handler has run.
// Action and resource come from the matched route, e.g. POST /api/v1/invoices/:id/void
// is ("void", "invoice", :id).
func AuditMiddleware(al *AuditLogger) gin.HandlerFunc {
	cfg := al.config
	return func(c *gin.Context) {
		if !isMutating(c.Request.Method) || hasAnyPrefix(c.Request.URL.Path, cfg.SkipPrefixes) {
			c.Next()
			return
		}

		var body map[string]any
		if cfg.CaptureBody && c.Request.Body != nil {
			body = captureJSONBody(c, cfg.MaxBodySize, cfg.Sensitive)
		}
		started := time.Now().UTC()

		c.Next()

		action, resource := routeAction(c.Request.Method, c.FullPath())
		entry := &AuditEntry{
			ID:           uuid.New().String(),
			Action:       action,
			ResourceType: resource,
			StatusCode:   c.Writer.Status(),
			IPAddress:    c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
			RequestID:    GetRequestID(c),
			Request:      body,
			CreatedAt:    started,
		}
		if id := c.Param("id"); id != "" {
			entry.ResourceID = &id
		}
		if v, ok := GetUserID(c); ok && v != "" {
			entry.UserID = &v
		}
		if v, ok := GetTenantID(c); ok && v != "" {
			entry.TenantID = &v
		}
		entry.UserEmail, _ = GetEmail(c)
		entry.UserRole, _ = GetRole(c)
		if md, ok := c.Get(contextKeyAuditMetadata); ok {
			entry.Metadata, _ = md.(map[string]any)
		}
		entry.TraceID = telemetry.TraceID(c.Request.Context())

		al.Log(entry)
	}
}

// AddAuditMetadata attaches a key to the audit entry of the current request
func AddAuditMetadata(c *gin.Context, key string, value any) {
	md, _ := c.Get(contextKeyAuditMetadata)
	m, ok := md.(map[string]any)
	if !ok {
		m = make(map[string]any)
		c.Set(contextKeyAuditMetadata, m)
	}
	m[key] = value
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// routeAction derives (action, resource type) from a gin route template.
// The resource is the first segment after the API version, singularised; the
// action is the last static segment after it, or the HTTP verb's CRUD action.
func routeAction(method, route string) (AuditAction, string) {
	if route == "" {
		return AuditAction(strings.ToLower(method)), "unknown"
	}
	var segs []string
	for _, s := range strings.Split(strings.Trim(route, "/"), "/") {
		if s == "api" || (len(s) > 1 && s[0] == 'v' && strings.Trim(s[1:], "0123456789") == "") {
			continue
		}
		segs = append(segs, s)
	}
	if len(segs) == 0 {
		return AuditAction(strings.ToLower(method)), "unknown"
	}

	resource := singular(strings.ReplaceAll(segs[0], "-", "_"))
	for i := len(segs) - 1; i > 0; i-- {
		if !strings.HasPrefix(segs[i], ":") && !strings.HasPrefix(segs[i], "*") {
			return AuditAction(strings.ReplaceAll(segs[i], "-", "_")), resource
		}
	}

	switch method {
	case http.MethodPost:
		return AuditActionCreate, resource
	case http.MethodDelete:
		return AuditActionDelete, resource
	default:
		return AuditActionUpdate, resource
	}
}

func singular(s string) string {
	switch {
	case strings.HasSuffix(s, "ies"):
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "ss"):
		return s
	case strings.HasSuffix(s, "s"):
		return s[:len(s)-1]
	}
	return s
}

// captureJSONBody reads up to limit bytes, restores the body for the handler
// and returns the decoded object with sensitive keys redacted
func captureJSONBody(c *gin.Context, limit int64, sensitive []string) map[string]any {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, limit))
	if err != nil || len(raw) == 0 {
		return nil
	}
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), c.Request.Body))

	var body map[string]any
	if json.Unmarshal(raw, &body) != nil {
		return nil
	}
	return redact(body, sensitive)
}

func redact(data map[string]any, sensitive []string) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		key := strings.ToLower(k)
		hidden := false
		for _, s := range sensitive {
			if strings.Contains(key, s) {
				hidden = true
				break
			}
		}
		switch nested := v.(type) {
		case map[string]any:
			if !hidden {
				v = redact(nested, sensitive)
			}
		}
		if hidden {
			v = "[REDACTED]"
		}
		out[k] = v
	}
	return out
}
