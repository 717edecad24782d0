// Package cache implements the layered read path used to serve public
// link-in-bio records: a bounded in-process memory tier in front of a
// tag-invalidated revalidating tier in front of the persistence accessor,
// composed by [Resolver] together with the per-request memoizer from
// package reqscope.
package cache

import (
	"context"
	"time"
)

// Namespace partitions the key space by resource type. Two namespaces never
// share entries even when the literal key strings collide.
type Namespace string

// Default TTLs of the observed deployment.
const (
	DefaultMemoryTTL     = 300 * time.Second
	DefaultSweepInterval = 60 * time.Second
	DefaultRevalidateTTL = 60 * time.Second
)

// Local is the contract of the process memory tier. Get never blocks on I/O
// and reports a missing or expired key as a miss. Set overwrites any existing
// entry and restarts its expiry clock; a zero TTL selects the tier default.
//
// Values are stored and returned by reference. Callers must treat them as
// immutable.
type Local[V any] interface {
	Get(key string) (V, bool)
	Set(key string, val V, ttl time.Duration)
}

// Fetcher loads a record from the persistence accessor. found is false when
// the key does not correspond to any record; err is reserved for failures.
type Fetcher[V any] interface {
	Fetch(ctx context.Context, key string) (val V, found bool, err error)
}

// FetchFunc adapts a plain function to [Fetcher].
type FetchFunc[V any] func(ctx context.Context, key string) (V, bool, error)

// Fetch calls f.
func (f FetchFunc[V]) Fetch(ctx context.Context, key string) (V, bool, error) {
	return f(ctx, key)
}
