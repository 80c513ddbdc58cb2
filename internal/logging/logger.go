// Package logging provides the structured logger every mpwizard component
// receives. Records go through log/slog as text or JSON.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a slog level.
type LogLevel = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError

	levelOff = slog.LevelError + 100
)

// ParseLevel maps a config string to a LogLevel. Unknown values fall back
// to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	}

	return LevelInfo
}

// Logger is the logging interface components depend on. Fields are
// alternating keys and values. Warn and Error take the error being
// reported, which may be nil.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...interface{})
	Info(ctx context.Context, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
	Error(ctx context.Context, err error, msg string, fields ...interface{})

	With(fields ...interface{}) Logger
	WithComponent(component string) Logger
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level     LogLevel
	Format    string // "json" or "text"
	Output    io.Writer
	AddSource bool
	Component string
}

// MPLogger implements Logger on top of log/slog.
type MPLogger struct {
	base      *slog.Logger
	component string
}

// NewLogger creates a logger. A nil config logs text at info level to
// stderr.
func NewLogger(config *LoggerConfig) *MPLogger {
	if config == nil {
		config = &LoggerConfig{Level: LevelInfo}
	}
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: config.Level, AddSource: config.AddSource}

	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if config.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	}

	return &MPLogger{base: slog.New(handler), component: config.Component}
}

// Discard returns a logger that drops every record.
func Discard() *MPLogger {
	return &MPLogger{
		base: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: levelOff})),
	}
}

func (l *MPLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.emit(ctx, LevelDebug, nil, msg, fields)
}

func (l *MPLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.emit(ctx, LevelInfo, nil, msg, fields)
}

func (l *MPLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.emit(ctx, LevelWarn, err, msg, fields)
}

func (l *MPLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.emit(ctx, LevelError, err, msg, fields)
}

// With returns a logger that adds fields to every record. The receiver is
// unchanged.
func (l *MPLogger) With(fields ...interface{}) Logger {
	return &MPLogger{base: l.base.With(fields...), component: l.component}
}

// WithComponent returns a logger that tags records with component,
// replacing any previous tag.
func (l *MPLogger) WithComponent(component string) Logger {
	return &MPLogger{base: l.base, component: component}
}

func (l *MPLogger) emit(ctx context.Context, level LogLevel, err error, msg string, fields []interface{}) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.base.Enabled(ctx, level) {
		return
	}

	args := make([]interface{}, 0, len(fields)+4)
	if l.component != "" {
		args = append(args, "component", l.component)
	}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	args = append(args, fields...)

	l.base.Log(ctx, level, msg, args...)
}

// SanitizeForLog strips control characters from user-supplied strings so
// that one log record stays on one line.
func SanitizeForLog(data string) string {
	const maxLen = 200

	out := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}

		return r
	}, data)
	if len(out) > maxLen {
		out = out[:maxLen] + "..."
	}

	return out
}

// PerfLogger records how long an operation took.
type PerfLogger struct {
	logger    Logger
	operation string
	start     time.Time
}

// StartOperation begins timing an operation.
func StartOperation(logger Logger, operation string) *PerfLogger {
	return &PerfLogger{logger: logger, operation: operation, start: time.Now()}
}

// End logs the operation duration at debug level.
func (p *PerfLogger) End(ctx context.Context, fields ...interface{}) {
	fields = append(fields, "operation", p.operation, "duration", time.Since(p.start))
	p.logger.Debug(ctx, "Operation completed", fields...)
}
