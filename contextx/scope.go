package contextx

import (
	"context"

	"github.com/Keksclan/linkSquirrel/reqscope"
)

// WithRequestScope returns a derived context that carries s. Transports call
// it once per inbound request.
func WithRequestScope(ctx context.Context, s *reqscope.Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}

// RequestScopeFromContext returns the request scope stored in ctx, or nil
// when the call is not bound to a request.
func RequestScopeFromContext(ctx context.Context) *reqscope.Scope {
	s, _ := ctx.Value(scopeKey).(*reqscope.Scope)
	return s
}
