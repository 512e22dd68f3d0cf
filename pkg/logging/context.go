package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey struct{}

// WithLogger stores logger in ctx. A nil logger stores the default.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return Default()
	}
	if logger, ok := ctx.Value(contextKey{}).(*zerolog.Logger); ok && logger != nil {
		return logger
	}
	return Default()
}

// WithBatch tags the context logger with the partition being processed.
func WithBatch(ctx context.Context, city, typ string) context.Context {
	l := FromContext(ctx).With().Str("city", city).Str("type", typ).Logger()
	return WithLogger(ctx, &l)
}

// WithSource tags the context logger with a source document url.
func WithSource(ctx context.Context, url string) context.Context {
	return withStr(ctx, "source_url", url)
}

// WithOperation tags the context logger with a command or operation name.
func WithOperation(ctx context.Context, operation string) context.Context {
	return withStr(ctx, "operation", operation)
}

func withStr(ctx context.Context, key, value string) context.Context {
	l := FromContext(ctx).With().Str(key, value).Logger()
	return WithLogger(ctx, &l)
}
