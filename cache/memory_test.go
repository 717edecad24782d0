package cache

import (
	"sync"
	"testing"
	"time"
)

type page struct {
	Name string `json:"name"`
}

// testClock is a manually advanced clock shared by the tiers under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestMemory(t *testing.T, clock *testClock, opts ...MemoryOption) *Memory[*page] {
	t.Helper()
	m := NewMemory[*page]("profile", opts...)
	m.nowFunc = clock.Now
	t.Cleanup(m.Close)
	return m
}

func TestMemory_GetSet(t *testing.T) {
	m := newTestMemory(t, newTestClock())

	if _, ok := m.Get("alice"); ok {
		t.Fatal("expected miss")
	}

	p := &page{Name: "alice"}
	m.Set("alice", p, 0)

	got, ok := m.Get("alice")
	if !ok {
		t.Fatal("expected hit")
	}
	// Values are shared, not copied.
	if got != p {
		t.Fatalf("got %p, want the stored pointer %p", got, p)
	}
}

func TestMemory_ExpiredEntryIsAbsentBeforeSweep(t *testing.T) {
	clock := newTestClock()
	m := newTestMemory(t, clock, WithTTL(10*time.Second))

	m.Set("alice", &page{Name: "alice"}, 0)
	clock.Advance(9 * time.Second)
	if _, ok := m.Get("alice"); !ok {
		t.Fatal("expected hit before TTL")
	}

	clock.Advance(time.Second)
	if _, ok := m.Get("alice"); ok {
		t.Fatal("expected miss once TTL elapsed")
	}
	if n := m.Len(); n != 0 {
		t.Fatalf("expected lazy removal, Len() = %d", n)
	}
}

func TestMemory_SetResetsExpiry(t *testing.T) {
	clock := newTestClock()
	m := newTestMemory(t, clock, WithTTL(10*time.Second))

	m.Set("alice", &page{Name: "v1"}, 0)
	clock.Advance(8 * time.Second)
	m.Set("alice", &page{Name: "v2"}, 0)
	clock.Advance(8 * time.Second)

	got, ok := m.Get("alice")
	if !ok {
		t.Fatal("expected hit: second Set should restart the clock")
	}
	if got.Name != "v2" {
		t.Fatalf("got %q, want %q", got.Name, "v2")
	}
}

func TestMemory_ExplicitTTLOverridesDefault(t *testing.T) {
	clock := newTestClock()
	m := newTestMemory(t, clock, WithTTL(time.Hour))

	m.Set("short", &page{}, time.Second)
	clock.Advance(2 * time.Second)
	if _, ok := m.Get("short"); ok {
		t.Fatal("expected explicit TTL to apply")
	}
}

func TestMemory_Sweep(t *testing.T) {
	clock := newTestClock()
	m := newTestMemory(t, clock, WithTTL(time.Minute))

	m.Set("a", &page{}, 5*time.Second)
	m.Set("b", &page{}, 5*time.Second)
	m.Set("c", &page{}, 0)

	clock.Advance(6 * time.Second)
	if n := m.Sweep(); n != 2 {
		t.Fatalf("Sweep() removed %d, want 2", n)
	}
	if n := m.Len(); n != 1 {
		t.Fatalf("Len() = %d, want 1", n)
	}
	if _, ok := m.Get("c"); !ok {
		t.Fatal("expected c to survive the sweep")
	}
}

func TestMemory_StartSweepsPeriodically(t *testing.T) {
	clock := newTestClock()
	m := newTestMemory(t, clock, WithTTL(time.Second), WithSweepInterval(5*time.Millisecond))
	m.Start(t.Context())

	m.Set("a", &page{}, 0)
	clock.Advance(2 * time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for m.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("background sweep did not remove the expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemory_CapacityEvictsOldestInserted(t *testing.T) {
	m := newTestMemory(t, newTestClock(), WithMaxEntries(2))

	m.Set("a", &page{Name: "a"}, 0)
	m.Set("b", &page{Name: "b"}, 0)
	// Overwriting keeps a's insertion slot.
	m.Set("a", &page{Name: "a2"}, 0)
	m.Set("c", &page{Name: "c"}, 0)

	if n := m.Len(); n != 2 {
		t.Fatalf("Len() = %d, want 2", n)
	}
	if _, ok := m.Get("a"); ok {
		t.Fatal("expected a (oldest insertion) to be evicted")
	}
	for _, k := range []string{"b", "c"} {
		if _, ok := m.Get(k); !ok {
			t.Fatalf("expected %s to be present", k)
		}
	}
}

func TestMemory_Delete(t *testing.T) {
	m := newTestMemory(t, newTestClock())
	m.Set("a", &page{}, 0)
	m.Delete("a")
	m.Delete("missing")
	if _, ok := m.Get("a"); ok {
		t.Fatal("expected miss after Delete")
	}
}

func TestMemory_CloseIsIdempotent(t *testing.T) {
	m := NewMemory[*page]("profile")
	m.Start(t.Context())
	m.Close()
	m.Close()
}
