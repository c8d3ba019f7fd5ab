package labelgo

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/labelgo/label"
)

// Logger wraps slog.Logger with labelgo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithSource adds a source field (file path or blob name) to the logger.
func (l *Logger) WithSource(source string) *Logger {
	return &Logger{
		Logger: l.Logger.With("source", source),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogLoad logs a dataset load.
func (l *Logger) LogLoad(ctx context.Context, source string, count int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"source", source,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "load completed",
			"source", source,
			"labels", count,
			"duration", duration,
		)
	}
}

// LogQuery logs a range query.
func (l *Logger) LogQuery(ctx context.Context, box label.BBox, t float64, results int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"bbox", box.String(),
			"t", t,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"bbox", box.String(),
			"t", t,
			"results", results,
			"duration", duration,
		)
	}
}

// LogClose logs handle shutdown.
func (l *Logger) LogClose(ctx context.Context) {
	l.DebugContext(ctx, "handle closed")
}
