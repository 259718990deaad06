package logger

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// Into returns a copy of ctx carrying l. A nil logger leaves ctx untouched.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, l)
}

// FromOr returns the logger carried by ctx, or fallback.
func FromOr(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return l
	}
	return fallback
}

// From is FromOr with the process logger as fallback.
func From(ctx context.Context) *slog.Logger {
	if l := FromOr(ctx, nil); l != nil {
		return l
	}
	return LoggerWrapper()
}

// With attaches args to the carried logger, e.g. the trace and staff ids the
// HTTP middleware resolves for a request.
func With(ctx context.Context, args ...any) context.Context {
	return Into(ctx, From(ctx).With(args...))
}
