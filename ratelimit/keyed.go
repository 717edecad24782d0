package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultIdleTimeout is how long a key's bucket survives without traffic.
const DefaultIdleTimeout = 3 * time.Minute

type keyedEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Keyed holds one token bucket per key, typically a client IP. Idle buckets
// are dropped by a background sweep started with Start. A nil Keyed allows
// everything.
type Keyed struct {
	rps   rate.Limit
	burst int
	idle  time.Duration

	mu      sync.Mutex
	entries map[string]*keyedEntry

	stopOnce sync.Once
	stop     chan struct{}
	nowFunc  func() time.Time
}

// NewKeyed creates a Keyed limiter that grants each key rps requests per
// second with the given burst. It returns nil when rps is not positive.
func NewKeyed(rps float64, burst int) *Keyed {
	if rps <= 0 {
		return nil
	}
	return &Keyed{
		rps:     rate.Limit(rps),
		burst:   max(burst, 1),
		idle:    DefaultIdleTimeout,
		entries: make(map[string]*keyedEntry),
		stop:    make(chan struct{}),
		nowFunc: time.Now,
	}
}

// Allow reports whether a request for key may proceed.
func (k *Keyed) Allow(key string) bool {
	if k == nil {
		return true
	}
	now := k.nowFunc()

	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{lim: rate.NewLimiter(k.rps, k.burst)}
		k.entries[key] = e
	}
	e.lastSeen = now
	k.mu.Unlock()

	return e.lim.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	if k == nil {
		return 0
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// Sweep drops buckets idle for longer than the idle timeout.
func (k *Keyed) Sweep() {
	if k == nil {
		return
	}
	cutoff := k.nowFunc().Add(-k.idle)
	k.mu.Lock()
	for key, e := range k.entries {
		if e.lastSeen.Before(cutoff) {
			delete(k.entries, key)
		}
	}
	k.mu.Unlock()
}

// Start runs Sweep every interval until Stop is called.
func (k *Keyed) Start(interval time.Duration) {
	if k == nil {
		return
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				k.Sweep()
			case <-k.stop:
				return
			}
		}
	}()
}

// Stop ends the background sweep. It is safe to call more than once.
func (k *Keyed) Stop() {
	if k == nil {
		return
	}
	k.stopOnce.Do(func() { close(k.stop) })
}
