package logger_i

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/akolanti/StudyMentor/internal/config"
)

type Logger struct {
	inner *slog.Logger
}

var level = new(slog.LevelVar)

func Init() {
	options := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if config.IS_PROD {
		level.Set(config.LOG_LEVEL_PROD)
		handler = slog.NewJSONHandler(os.Stdout, options)
	} else {
		level.Set(slog.LevelDebug)
		handler = slog.NewTextHandler(os.Stdout, options)
	}
	slog.SetDefault(slog.New(handler))
}

// SetLevel accepts debug, info, warn or error. Anything else is ignored.
func SetLevel(name string) {
	switch strings.ToLower(name) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}
}

func NewLogger(section string) *Logger {
	return &Logger{
		inner: slog.Default().With("component", section),
	}
}

func (l *Logger) Info(msg string, args ...any) {
	l.inner.Info(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.inner.Error(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.inner.Warn(msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.inner.Debug(msg, args...)
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		inner: l.inner.With(args...),
	}
}

// WithTrace attaches the request trace id when the context carries one.
func (l *Logger) WithTrace(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	if trace, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok && trace != "" {
		return l.With("traceId", trace)
	}
	return l
}
