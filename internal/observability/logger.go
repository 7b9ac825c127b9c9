package observability

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
)

var level = new(slog.LevelVar)

// basic global logger, JSON to stdout.
var logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

func Logger() *slog.Logger {
	return logger
}

// SetLevel accepts debug, info, warn or error. Unknown values mean info.
func SetLevel(s string) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// WithFields returns a logger with additional fields.
func WithFields(kv ...any) *slog.Logger {
	return logger.With(kv...)
}

// WithRequestID stores a request_id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// LoggerFromContext adds request_id if present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	reqID := RequestID(ctx)
	if reqID == "" {
		return logger
	}
	return logger.With("request_id", reqID)
}
