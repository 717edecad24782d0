package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Memory is the process memory tier. It bounds the number of entries and
// evicts the oldest entry by insertion order when full. Expired entries are
// dropped lazily on read and by a periodic sweep started with [Memory.Start].
//
// Memory is safe for concurrent use. Concurrent Set calls for the same key are
// last-write-wins.
type Memory[V any] struct {
	ns         Namespace
	maxEntries int
	defaultTTL time.Duration
	sweepEvery time.Duration

	mu      sync.Mutex
	entries map[string]*memoryEntry[V]
	order   *list.List // insertion order, front is oldest

	stopOnce sync.Once
	stop     chan struct{}

	nowFunc func() time.Time // for testing; defaults to time.Now
}

type memoryEntry[V any] struct {
	key      string
	value    V
	storedAt time.Time
	ttl      time.Duration
	elem     *list.Element
}

func (e *memoryEntry[V]) expired(now time.Time) bool {
	return now.Sub(e.storedAt) >= e.ttl
}

// MemoryOption configures a [Memory].
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	maxEntries int
	ttl        time.Duration
	sweepEvery time.Duration
}

// WithMaxEntries bounds the number of entries. Values < 1 are ignored.
func WithMaxEntries(n int) MemoryOption {
	return func(c *memoryConfig) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithTTL sets the default time-to-live used when Set receives a zero TTL.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithSweepInterval sets how often the background sweep removes expired
// entries.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		if d > 0 {
			c.sweepEvery = d
		}
	}
}

// NewMemory creates a memory tier for ns. Without options it holds at most
// 10,000 entries for [DefaultMemoryTTL] and sweeps every
// [DefaultSweepInterval].
func NewMemory[V any](ns Namespace, opts ...MemoryOption) *Memory[V] {
	cfg := memoryConfig{
		maxEntries: 10_000,
		ttl:        DefaultMemoryTTL,
		sweepEvery: DefaultSweepInterval,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Memory[V]{
		ns:         ns,
		maxEntries: cfg.maxEntries,
		defaultTTL: cfg.ttl,
		sweepEvery: cfg.sweepEvery,
		entries:    make(map[string]*memoryEntry[V]),
		order:      list.New(),
		stop:       make(chan struct{}),
		nowFunc:    time.Now,
	}
}

// Namespace returns the namespace this tier serves.
func (m *Memory[V]) Namespace() Namespace { return m.ns }

// TTL returns the default time-to-live.
func (m *Memory[V]) TTL() time.Duration { return m.defaultTTL }

// Get returns the value stored under key. An entry whose TTL has elapsed is
// removed and reported as a miss even if the sweep has not run yet.
func (m *Memory[V]) Get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	e, ok := m.entries[key]
	if !ok {
		return zero, false
	}
	if e.expired(m.now()) {
		m.remove(e)
		memoryEvictions.WithLabelValues(string(m.ns), "expired").Inc()
		return zero, false
	}
	return e.value, true
}

// Set stores val under key. An existing entry is overwritten in place and
// keeps its insertion slot; a new entry evicts the oldest one when the tier
// is full.
func (m *Memory[V]) Set(key string, val V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.entries[key]; ok {
		e.value = val
		e.storedAt = now
		e.ttl = ttl
		return
	}

	for len(m.entries) >= m.maxEntries {
		oldest := m.order.Front()
		if oldest == nil {
			break
		}
		m.remove(oldest.Value.(*memoryEntry[V]))
		memoryEvictions.WithLabelValues(string(m.ns), "capacity").Inc()
	}

	e := &memoryEntry[V]{key: key, value: val, storedAt: now, ttl: ttl}
	e.elem = m.order.PushBack(e)
	m.entries[key] = e
	memoryEntries.WithLabelValues(string(m.ns)).Set(float64(len(m.entries)))
}

// Delete removes key if present.
func (m *Memory[V]) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		m.remove(e)
	}
}

// Len returns the number of stored entries, including expired ones the sweep
// has not collected yet.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep removes every expired entry and returns how many were removed.
func (m *Memory[V]) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for el := m.order.Front(); el != nil; {
		next := el.Next()
		if e := el.Value.(*memoryEntry[V]); e.expired(now) {
			m.remove(e)
			removed++
		}
		el = next
	}
	if removed > 0 {
		memoryEvictions.WithLabelValues(string(m.ns), "expired").Add(float64(removed))
	}
	return removed
}

// Start runs the periodic sweep until ctx is done or Close is called. It
// returns immediately.
func (m *Memory[V]) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}

// Close stops a running sweep. It is safe to call more than once and on a
// tier that was never started.
func (m *Memory[V]) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// remove must be called with m.mu held.
func (m *Memory[V]) remove(e *memoryEntry[V]) {
	m.order.Remove(e.elem)
	delete(m.entries, e.key)
	memoryEntries.WithLabelValues(string(m.ns)).Set(float64(len(m.entries)))
}

func (m *Memory[V]) now() time.Time {
	if m.nowFunc != nil {
		return m.nowFunc()
	}
	return time.Now()
}
