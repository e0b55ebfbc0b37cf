package logger

import (
	"context"
	"sync"
)

// LoggerContext accumulates structured fields over the course of an
// operation so later log calls carry everything learned so far. It is safe
// for concurrent use.
type LoggerContext struct {
	mu  sync.Mutex
	log *Logger
}

// NewLoggerContext wraps a logger for incremental field accumulation.
func NewLoggerContext(log *Logger) *LoggerContext { return &LoggerContext{log: log} }

// Add appends key-value pairs that will be included in all subsequent log
// calls on this context.
func (lc *LoggerContext) Add(args ...any) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.log = lc.log.With(args...)
}

func (lc *LoggerContext) current() *Logger {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.log
}

// Debug logs at LevelDebug with the accumulated fields.
func (lc *LoggerContext) Debug(ctx context.Context, msg string, args ...any) {
	lc.current().Debug(ctx, msg, args...)
}

// Info logs at LevelInfo with the accumulated fields.
func (lc *LoggerContext) Info(ctx context.Context, msg string, args ...any) {
	lc.current().Info(ctx, msg, args...)
}

// Warn logs at LevelWarn with the accumulated fields.
func (lc *LoggerContext) Warn(ctx context.Context, msg string, args ...any) {
	lc.current().Warn(ctx, msg, args...)
}

// Error logs at LevelError with the accumulated fields.
func (lc *LoggerContext) Error(ctx context.Context, msg string, args ...any) {
	lc.current().Error(ctx, msg, args...)
}
