// Package logger wraps zap with a process-wide logger and context correlation:
// trace and span IDs from OpenTelemetry plus the request, tenant, user and
// webhook identifiers carried on the context.
package logger

import (
	"context"
	"os"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ContextKey is the type for context keys read by WithContext
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	TenantIDKey  ContextKey = "tenant_id"
	UserIDKey    ContextKey = "user_id"
	// GatewayKey and WebhookEventKey tag everything logged while a webhook is reconciled
	GatewayKey      ContextKey = "gateway"
	WebhookEventKey ContextKey = "webhook_event_id"
)

var contextKeys = []ContextKey{RequestIDKey, TenantIDKey, UserIDKey, GatewayKey, WebhookEventKey}

// Logger wraps zap.Logger with context-aware helpers
type Logger struct {
	*zap.Logger
}

var (
	globalLogger *Logger
	globalLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	globalMu     sync.RWMutex
)

// Config holds logger configuration
type Config struct {
	Level       string // debug, info, warn, error
	ServiceName string
	Version     string
	Development bool   // console encoder when true, JSON otherwise
	OutputPath  string // stdout, stderr, or file path
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *Config {
	return &Config{Level: "info", ServiceName: "eventdesk", OutputPath: "stdout"}
}

func parseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil || l < zapcore.DebugLevel || l > zapcore.ErrorLevel {
		return zapcore.InfoLevel
	}
	return l
}

func openOutput(path string) (zapcore.WriteSyncer, error) {
	switch path {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return zapcore.AddSync(f), nil
}

func build(cfg *Config, level zapcore.LevelEnabler) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out, err := openOutput(cfg.OutputPath)
	if err != nil {
		return nil, err
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder

	var encoder zapcore.Encoder
	if cfg.Development {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(enc)
	} else {
		encoder = zapcore.NewJSONEncoder(enc)
	}

	base := []zap.Field{zap.String("service", cfg.ServiceName)}
	if cfg.Version != "" {
		base = append(base, zap.String("version", cfg.Version))
	}

	z := zap.New(zapcore.NewCore(encoder, out, level),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	).With(base...)
	return &Logger{Logger: z}, nil
}

// New creates a standalone Logger at cfg.Level
func New(cfg *Config) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg != nil {
		level = parseLevel(cfg.Level)
	}
	return build(cfg, level)
}

// Init replaces the global logger. Its level can later be changed with SetLevel.
func Init(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	globalLevel.SetLevel(parseLevel(cfg.Level))
	l, err := build(cfg, globalLevel)
	if err != nil {
		return err
	}
	SetGlobal(l)
	return nil
}

// SetLevel changes the global logger's level at runtime
func SetLevel(level string) {
	globalLevel.SetLevel(parseLevel(level))
}

// SetGlobal replaces the global logger, mainly for tests
func SetGlobal(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Get returns the global logger, initializing a default one on first use
func Get() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}
	_ = Init(DefaultConfig())
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// ContextWith stores a correlation value for WithContext to pick up
func ContextWith(ctx context.Context, key ContextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

// WithContext returns a logger carrying the trace and correlation fields found on ctx
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	var fields []zap.Field
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			fields = append(fields, zap.String(string(key), v))
		}
	}
	if len(fields) == 0 {
		return l
	}
	return &Logger{Logger: l.Logger.With(fields...)}
}

// Named returns a child logger tagged with a component
func (l *Logger) Named(component string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("component", component))}
}

func Debug(msg string, fields ...zap.Field) { Get().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { Get().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Get().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Get().Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { Get().Fatal(msg, fields...) }

func DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	Get().WithContext(ctx).Debug(msg, fields...)
}

func InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	Get().WithContext(ctx).Info(msg, fields...)
}

func WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	Get().WithContext(ctx).Warn(msg, fields...)
}

func ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	Get().WithContext(ctx).Error(msg, fields...)
}

// WithContext is the global logger with ctx's correlation fields
func WithContext(ctx context.Context) *Logger {
	return Get().WithContext(ctx)
}

// Sync flushes buffered entries
func Sync() error {
	return Get().Sync()
}
