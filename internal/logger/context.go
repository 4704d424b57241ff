package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// ContextWithCollection annotates the context logger with the namespace an
// operation works on. An empty collection names a whole database.
func ContextWithCollection(ctx context.Context, database, collection string) context.Context {
	fields := []zap.Field{zap.String("database", database)}
	if collection != "" {
		fields = append(fields, zap.String("collection", collection))
	}
	return ContextWithLogger(ctx, FromContext(ctx).With(fields...))
}

// FromContext returns the request logger, or a no-op logger outside a request.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}
