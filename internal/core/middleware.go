package core

import (
	"cmp"
	"slices"

	"google.golang.org/grpc"
)

// middleware is a unary interceptor with a deterministic execution order.
// Lower Order values run first.
type middleware struct {
	Unary grpc.UnaryServerInterceptor
	Order int
}

// MiddlewareBuilder collects middleware entries and produces a sorted
// interceptor slice ready for chaining.
type MiddlewareBuilder struct {
	entries []middleware
}

// Add registers an interceptor with the given order. A nil interceptor is
// ignored.
func (b *MiddlewareBuilder) Add(order int, unary grpc.UnaryServerInterceptor) {
	if unary == nil {
		return
	}
	b.entries = append(b.entries, middleware{Unary: unary, Order: order})
}

// Len reports how many interceptors have been added.
func (b *MiddlewareBuilder) Len() int { return len(b.entries) }

// Build sorts the collected middleware by Order (stable) and returns the
// interceptors outermost first.
func (b *MiddlewareBuilder) Build() []grpc.UnaryServerInterceptor {
	slices.SortStableFunc(b.entries, func(a, c middleware) int {
		return cmp.Compare(a.Order, c.Order)
	})

	unary := make([]grpc.UnaryServerInterceptor, 0, len(b.entries))
	for _, m := range b.entries {
		unary = append(unary, m.Unary)
	}
	return unary
}
