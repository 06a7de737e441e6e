// Package log builds the slog loggers handed to gitdash components.
//
// Components never reach for a global logger. They accept a *slog.Logger
// through their options and fall back to Nop, so nothing is written unless
// the caller opts in
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

// ContextKey is the type of context keys set by this package
type ContextKey string

// CorrelationIDKey carries the id of the command a log line belongs to
const CorrelationIDKey ContextKey = "correlation_id"

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New creates a logger writing to w in the given format at the given level
func New(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Nop returns a logger that discards everything
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrNop returns l, or a discarding logger when l is nil
func OrNop(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// ParseLevel maps a level name to a slog.Level. Unknown names yield Info
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenFile opens path for appending debug output
func OpenFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open log file %s", path)
	}
	return f, nil
}

// WithCorrelationID adds a correlation ID to the context
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// CorrelationID extracts the correlation ID from context
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns l annotated with the correlation ID carried by ctx, if any
func Ctx(ctx context.Context, l *slog.Logger) *slog.Logger {
	l = OrNop(l)
	if id := CorrelationID(ctx); id != "" {
		return l.With(string(CorrelationIDKey), id)
	}
	return l
}
