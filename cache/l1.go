package cache

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// L1 is an alternative memory tier backed by ristretto. Every entry has a
// cost of 1, so maxEntries bounds the entry count, but overflow is resolved
// by ristretto's TinyLFU admission rather than by insertion order: a new key
// may be rejected in favour of hotter ones.
type L1[V any] struct {
	ns         Namespace
	rc         *ristretto.Cache[string, V]
	defaultTTL time.Duration
}

// NewL1 creates a ristretto-backed memory tier for ns.
func NewL1[V any](ns Namespace, maxEntries int64, ttl time.Duration) (*L1[V], error) {
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}
	rc, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: max(maxEntries*10, 1000),
		MaxCost:     maxEntries,
		BufferItems: 64,
		OnEvict: func(*ristretto.Item[V]) {
			memoryEvictions.WithLabelValues(string(ns), "policy").Inc()
		},
	})
	if err != nil {
		return nil, err
	}
	return &L1[V]{ns: ns, rc: rc, defaultTTL: ttl}, nil
}

// Namespace returns the namespace this tier serves.
func (l *L1[V]) Namespace() Namespace { return l.ns }

// TTL returns the default time-to-live.
func (l *L1[V]) TTL() time.Duration { return l.defaultTTL }

// Get retrieves a value by key. Ristretto checks expiry on read, so an
// expired entry is reported as a miss.
func (l *L1[V]) Get(key string) (V, bool) {
	return l.rc.Get(key)
}

// Set stores val under key. A zero TTL selects the tier default.
func (l *L1[V]) Set(key string, val V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = l.defaultTTL
	}
	l.rc.SetWithTTL(key, val, 1, ttl)
	l.rc.Wait()
}

// Close releases the ristretto goroutines.
func (l *L1[V]) Close() {
	l.rc.Close()
}
