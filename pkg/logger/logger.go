// Package logger is the zap-backed structured logger. Domain code logs through
// the package-level functions, which pick the logger stored on the context and
// tag each entry with the request and actor behind it.
package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appctx "coldledger/internal/core/context"
)

// DefaultService names the process in every entry unless Config.Service overrides it.
const DefaultService = "coldledger"

// Logger wraps zap.SugaredLogger with context-aware logging.
type Logger struct {
	*zap.SugaredLogger
}

type loggerKey struct{}

// Config holds logger configuration.
type Config struct {
	Level       string // debug, info, warn, error; blank means info
	Development bool   // console encoding with colour levels
	OutputPaths []string
	Service     string
}

// New builds a logger. An unknown level is an error so a typo in
// LOG_LEVEL does not silently change verbosity.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}
	service := cfg.Service
	if service == "" {
		service = DefaultService
	}
	zc.InitialFields = map[string]any{"service": service}

	z, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{z.Sugar()}, nil
}

var (
	defaultOnce   sync.Once
	defaultLogger *Logger
)

// Default is the info-level stdout logger used when no logger is on the context.
func Default() *Logger {
	defaultOnce.Do(func() {
		l, err := New(Config{OutputPaths: []string{"stdout"}})
		if err != nil {
			l = &Logger{zap.NewNop().Sugar()}
		}
		defaultLogger = l
	})
	return defaultLogger
}

// WithContext adds trace and actor info from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	kv := appctx.LogFields(ctx)
	if len(kv) == 0 {
		return l
	}
	return &Logger{l.SugaredLogger.With(kv...)}
}

// WithLogger adds Logger to context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns Logger from context or default logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return l.WithContext(ctx)
	}
	return Default().WithContext(ctx)
}

// logAt reports the caller of the package-level function, two frames up.
func logAt(ctx context.Context, lvl zapcore.Level, msg string, keysAndValues []any) {
	FromContext(ctx).WithOptions(zap.AddCallerSkip(2)).Logw(lvl, msg, keysAndValues...)
}

// Debug logs at debug level from context.
func Debug(ctx context.Context, msg string, keysAndValues ...any) {
	logAt(ctx, zapcore.DebugLevel, msg, keysAndValues)
}

// Info logs at info level from context.
func Info(ctx context.Context, msg string, keysAndValues ...any) {
	logAt(ctx, zapcore.InfoLevel, msg, keysAndValues)
}

// Warn logs at warn level from context.
func Warn(ctx context.Context, msg string, keysAndValues ...any) {
	logAt(ctx, zapcore.WarnLevel, msg, keysAndValues)
}

// Error logs at error level from context.
func Error(ctx context.Context, msg string, keysAndValues ...any) {
	logAt(ctx, zapcore.ErrorLevel, msg, keysAndValues)
}
