package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"unknown": zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestWithContext_AddsKnownKeys(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &Logger{Logger: zap.New(core)}

	ctx := ContextWith(context.Background(), RequestIDKey, "req-1")
	ctx = ContextWith(ctx, TenantIDKey, "tenant-1")
	ctx = ContextWith(ctx, GatewayKey, "stripe")
	ctx = ContextWith(ctx, WebhookEventKey, "evt_123")
	ctx = ContextWith(ctx, UserIDKey, "")

	l.WithContext(ctx).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "tenant-1", fields["tenant_id"])
	assert.Equal(t, "stripe", fields["gateway"])
	assert.Equal(t, "evt_123", fields["webhook_event_id"])
	assert.NotContains(t, fields, "user_id")
}

func TestWithContext_NoFieldsReturnsSameLogger(t *testing.T) {
	l := NewNop()
	assert.Same(t, l, l.WithContext(context.Background()))
}

func TestNew_Development(t *testing.T) {
	l, err := New(&Config{Level: "debug", ServiceName: "svc", Development: true, OutputPath: "stderr"})
	require.NoError(t, err)
	assert.NotNil(t, l.Named("component"))
}

func TestInit_SetLevel(t *testing.T) {
	prev := Get()
	defer SetGlobal(prev)

	require.NoError(t, Init(&Config{Level: "warn", OutputPath: "stderr"}))
	assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))

	SetLevel("debug")
	assert.True(t, Get().Core().Enabled(zapcore.DebugLevel))
	SetLevel("info")
}
