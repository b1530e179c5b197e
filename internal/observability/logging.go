// Package observability provides the structured logging and metrics
// registration shared across meao's packages.
//
// Grounded on internal/observability/logging.go's slog wrapper with
// context-correlated fields and log/secret redaction, narrowed from its
// channel/request-ID correlation axes to the session/turn/phase axes
// spec.md §4.1 names, and with redaction delegated to
// internal/secrets.Detector.RedactDefault instead of a second, separate
// regex table — one secret pattern registry for the whole process rather
// than the teacher's own logger maintaining its own DefaultRedactPatterns
// list in parallel with internal/tools/security's.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/haasonsaas/meao/internal/secrets"
)

// Logger wraps slog with session/turn/phase correlation and secret
// redaction applied to every logged string.
type Logger struct {
	logger   *slog.Logger
	detector *secrets.Detector
}

// LogConfig configures a Logger.
type LogConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json" or "text"
	Output io.Writer
}

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	turnKey      contextKey = "turn"
	phaseKey     contextKey = "phase"
)

// NewLogger constructs a Logger, defaulting to JSON-on-stdout at info
// level, matching internal/observability/logging.go's NewLogger defaults.
func NewLogger(cfg LogConfig, detector *secrets.Detector) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if detector == nil {
		detector = secrets.New()
	}

	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}

	return &Logger{logger: slog.New(handler), detector: detector}
}

// WithSession returns a Logger pinning session_id/turn/phase fields onto
// every subsequent log record, so orchestrator.ProcessMessage's state
// transitions can be traced per spec.md §4.1 without re-specifying these
// fields at every call site.
func (l *Logger) WithSession(sessionID string, turn int, phase string) *Logger {
	return &Logger{
		logger: l.logger.With(
			slog.String(string(sessionIDKey), sessionID),
			slog.Int(string(turnKey), turn),
			slog.String(string(phaseKey), phase),
		),
		detector: l.detector,
	}
}

// Debug logs a debug-level message, redacting secrets from msg and any
// string-valued args first.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args...)
}

// Info logs an info-level message.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args...)
}

// Warn logs a warning-level message.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

// Error logs an error-level message.
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args...)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	msg = l.detector.RedactDefault(msg)
	redacted := make([]any, len(args))
	for i, a := range args {
		redacted[i] = l.redactValue(a)
	}
	l.logger.Log(ctx, level, msg, redacted...)
}

func (l *Logger) redactValue(v any) any {
	switch val := v.(type) {
	case string:
		return l.detector.RedactDefault(val)
	case error:
		return l.detector.RedactDefault(val.Error())
	default:
		return v
	}
}
