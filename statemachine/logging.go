package statemachine

import (
	"context"
	"log/slog"
	"time"

	"github.com/amp-labs/fsm/logger"
)

// Logger provides logging hooks for machine execution.
type Logger interface {
	Initialized(ctx context.Context, state string)
	TransitionStarted(ctx context.Context, from, message string)
	TransitionCommitted(ctx context.Context, from, to, message string, duration time.Duration)
	TransitionRejected(ctx context.Context, from, message string, err error)
	TransitionFailed(ctx context.Context, from, message string, err error)
}

// DefaultLogger implements Logger using slog. When no slog.Logger is given it
// uses the context-aware logger from the logger package.
type DefaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger creates a new default logger. l may be nil.
func NewDefaultLogger(l *slog.Logger) *DefaultLogger {
	return &DefaultLogger{logger: l}
}

func (l *DefaultLogger) get(ctx context.Context) *slog.Logger {
	if l.logger != nil {
		return l.logger
	}

	return logger.Get(ctx)
}

func (l *DefaultLogger) Initialized(ctx context.Context, state string) {
	l.get(ctx).InfoContext(ctx, "State machine initialized", "state", state)
}

func (l *DefaultLogger) TransitionStarted(ctx context.Context, from, message string) {
	l.get(ctx).DebugContext(ctx, "Transition started",
		"from", from,
		"message", message,
	)
}

func (l *DefaultLogger) TransitionCommitted(ctx context.Context, from, to, message string, duration time.Duration) {
	l.get(ctx).InfoContext(ctx, "Transition committed",
		"from", from,
		"to", to,
		"message", message,
		"duration_ms", duration.Milliseconds(),
	)
}

func (l *DefaultLogger) TransitionRejected(ctx context.Context, from, message string, err error) {
	l.get(ctx).WarnContext(ctx, "Transition rejected",
		"from", from,
		"message", message,
		"error", err,
	)
}

func (l *DefaultLogger) TransitionFailed(ctx context.Context, from, message string, err error) {
	l.get(ctx).ErrorContext(ctx, "Transition failed",
		"from", from,
		"message", message,
		"error", err,
	)
}
