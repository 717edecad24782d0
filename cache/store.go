package cache

import (
	"context"
	"sync"
	"time"
)

// Store persists revalidating-tier entries and per-tag generation counters.
// Entries are opaque byte strings; a tag's generation starts at zero and only
// grows.
type Store interface {
	// Load returns the entry stored under key together with the current
	// generation of tag. found is false when no unexpired entry exists.
	Load(ctx context.Context, key, tag string) (raw []byte, found bool, gen uint64, err error)

	// Save stores raw under key. The store may drop it once ttl elapses.
	Save(ctx context.Context, key string, raw []byte, ttl time.Duration) error

	// Bump advances the generation of tag and returns the new value.
	Bump(ctx context.Context, tag string) (uint64, error)
}

// LocalStore is an in-process [Store]. It does not survive restarts and is
// not shared between replicas; use [RedisStore] for that. Expired entries are
// dropped on read and by a periodic sweep started with [LocalStore.Start].
type LocalStore struct {
	mu      sync.Mutex
	entries map[string]localItem
	gens    map[string]uint64

	sweepEvery time.Duration
	stopOnce   sync.Once
	stop       chan struct{}

	nowFunc func() time.Time // for testing; defaults to time.Now
}

type localItem struct {
	raw       []byte
	expiresAt time.Time
}

// LocalStoreOption configures a [LocalStore].
type LocalStoreOption func(*LocalStore)

// WithStoreSweepInterval sets how often [LocalStore.Start] removes expired
// entries. Non-positive values keep [DefaultSweepInterval].
func WithStoreSweepInterval(d time.Duration) LocalStoreOption {
	return func(s *LocalStore) {
		if d > 0 {
			s.sweepEvery = d
		}
	}
}

// NewLocalStore creates an empty in-process store.
func NewLocalStore(opts ...LocalStoreOption) *LocalStore {
	s := &LocalStore{
		entries:    make(map[string]localItem),
		gens:       make(map[string]uint64),
		sweepEvery: DefaultSweepInterval,
		stop:       make(chan struct{}),
		nowFunc:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Len reports the number of entries held, expired or not.
func (s *LocalStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes every expired entry and returns how many were removed. Tag
// generations are kept.
func (s *LocalStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, it := range s.entries {
		if !now.Before(it.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Start runs the periodic sweep until ctx is done or Close is called. It
// returns immediately.
func (s *LocalStore) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Close stops a running sweep. It is safe to call more than once.
func (s *LocalStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Load implements [Store].
func (s *LocalStore) Load(_ context.Context, key, tag string) ([]byte, bool, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen := s.gens[tag]
	it, ok := s.entries[key]
	if !ok {
		return nil, false, gen, nil
	}
	if !s.now().Before(it.expiresAt) {
		delete(s.entries, key)
		return nil, false, gen, nil
	}
	return it.raw, true, gen, nil
}

// Save implements [Store].
func (s *LocalStore) Save(_ context.Context, key string, raw []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = localItem{raw: raw, expiresAt: s.now().Add(ttl)}
	return nil
}

// Bump implements [Store].
func (s *LocalStore) Bump(_ context.Context, tag string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[tag]++
	return s.gens[tag], nil
}

func (s *LocalStore) now() time.Time {
	if s.nowFunc != nil {
		return s.nowFunc()
	}
	return time.Now()
}
