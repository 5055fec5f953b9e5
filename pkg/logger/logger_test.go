package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appctx "coldledger/internal/core/context"
)

func observed(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &Logger{zap.New(core).Sugar()}, logs
}

func TestPackageFunctionsUseContextLogger(t *testing.T) {
	l, logs := observed(zapcore.DebugLevel)
	ctx := WithLogger(context.Background(), l)
	ctx = appctx.WithTrace(ctx, &appctx.TraceContext{TraceID: "t-9", RequestID: "r-9"})
	ctx = appctx.WithActor(ctx, "clerk")

	Info(ctx, "lot adjusted", "lot_no", "PH20241201-001")
	Warn(ctx, "fifo allocation shortfall")

	entries := logs.All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "lot adjusted", entries[0].Message)
	assert.Equal(t, "PH20241201-001", fields["lot_no"])
	assert.Equal(t, "t-9", fields["trace_id"])
	assert.Equal(t, "r-9", fields["request_id"])
	assert.Equal(t, "clerk", fields["actor_id"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestLevelFilters(t *testing.T) {
	l, logs := observed(zapcore.InfoLevel)
	ctx := WithLogger(context.Background(), l)

	Debug(ctx, "memory transaction rolled back")
	Error(ctx, "recompute failed")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "recompute failed", logs.All()[0].Message)
	assert.NotContains(t, logs.All()[0].ContextMap(), "trace_id")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "verbose"})
	assert.Error(t, err)

	l, err := New(Config{Level: "warn", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.False(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
}
