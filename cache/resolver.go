package cache

import (
	"context"

	"github.com/Keksclan/linkSquirrel/contextx"
	"github.com/Keksclan/linkSquirrel/reqscope"
)

// Resolver is the read entry point for one namespace. A lookup runs at most
// once per request and key (request scope), is answered by the memory tier
// when possible, and otherwise by the revalidating tier, whose found values
// are written back into the memory tier. Not-found outcomes are never stored
// in the memory tier.
//
// The request scope is taken from the context (contextx.WithRequestScope);
// without one every call resolves independently.
type Resolver[V any] struct {
	ns    Namespace
	local Local[V]
	reval *Revalidating[V]
}

// NewResolver composes local and reval. Both must serve the same namespace.
func NewResolver[V any](local Local[V], reval *Revalidating[V]) *Resolver[V] {
	return &Resolver[V]{ns: reval.ns, local: local, reval: reval}
}

// Namespace returns the namespace served by r.
func (r *Resolver[V]) Namespace() Namespace { return r.ns }

// Invalidate expires every revalidating entry of the namespace. The memory
// tier is left to age out within its own TTL.
func (r *Resolver[V]) Invalidate(ctx context.Context) error {
	return r.reval.Invalidate(ctx)
}

// Get resolves key. found is false when no record exists; err carries
// persistence failures unchanged.
func (r *Resolver[V]) Get(ctx context.Context, key string) (V, bool, error) {
	scope := contextx.RequestScopeFromContext(ctx)
	if scope != nil {
		lookupsTotal.WithLabelValues(string(r.ns), tierScope, "lookup").Inc()
	}
	return reqscope.Memoize(ctx, scope, string(r.ns)+"\x00"+key, func() (V, bool, error) {
		return r.resolve(ctx, key)
	})
}

func (r *Resolver[V]) resolve(ctx context.Context, key string) (V, bool, error) {
	if v, ok := r.local.Get(key); ok {
		lookupsTotal.WithLabelValues(string(r.ns), tierMemory, "hit").Inc()
		return v, true, nil
	}
	lookupsTotal.WithLabelValues(string(r.ns), tierMemory, "miss").Inc()

	v, found, err := r.reval.Resolve(ctx, key)
	if err != nil || !found {
		return v, false, err
	}
	r.local.Set(key, v, 0)
	return v, true, nil
}
