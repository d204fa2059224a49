// Package appctx carries the request-scoped logger through a context.
package appctx

import (
	"context"
	"log/slog"

	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/logutil"
)

type loggerKey struct{}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// LoggerFromContext returns the logger from the context (if present).
func LoggerFromContext(ctx context.Context) (*slog.Logger, bool) {
	l, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	return l, ok && l != nil
}

// LoggerOr returns the request logger, or fallback when the request did not
// pass through the request logger middleware. A nil fallback yields a
// discarding logger.
func LoggerOr(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := LoggerFromContext(ctx); ok {
		return l
	}
	return logutil.NoopIfNil(fallback)
}
