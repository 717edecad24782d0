package contextx

import (
	"context"

	"github.com/google/uuid"
)

// WithRequestID returns a derived context that carries the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the request ID stored in ctx.
// It returns an empty string when no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// EnsureRequestID returns ctx carrying a request ID, preferring one already
// present in ctx, then incoming, then a fresh UUID.
func EnsureRequestID(ctx context.Context, incoming string) (context.Context, string) {
	if id := RequestIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := incoming
	if id == "" || len(id) > 128 {
		id = uuid.NewString()
	}
	return WithRequestID(ctx, id), id
}
