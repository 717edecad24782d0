package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Keksclan/linkSquirrel/contextx"
	"github.com/Keksclan/linkSquirrel/reqscope"
)

type resolverFixture struct {
	res *Resolver[*page]
	mem *Memory[*page]
	acc *fakeAccessor
}

func newResolverFixture(t *testing.T, clock *testClock, ns Namespace, store *LocalStore, memOpts []MemoryOption, opts ...RevalidateOption) *resolverFixture {
	t.Helper()
	acc := newFakeAccessor()
	mem := NewMemory[*page](ns, memOpts...)
	mem.nowFunc = clock.Now
	t.Cleanup(mem.Close)

	r := NewRevalidating[*page](ns, store, acc, opts...)
	r.nowFunc = clock.Now
	t.Cleanup(r.bg.Wait)

	return &resolverFixture{res: NewResolver[*page](mem, r), mem: mem, acc: acc}
}

func newClockedStore(clock *testClock) *LocalStore {
	s := NewLocalStore()
	s.nowFunc = clock.Now
	return s
}

func mustGet(t *testing.T, f *resolverFixture, key string) (*page, bool) {
	t.Helper()
	v, found, err := f.res.Get(t.Context(), key)
	if err != nil {
		t.Fatalf("Get(%q): %v", key, err)
	}
	return v, found
}

func TestResolver_ColdReadReturnsRecord(t *testing.T) {
	clock := newTestClock()
	f := newResolverFixture(t, clock, "profile", newClockedStore(clock), nil)
	f.acc.put("alice", "Alice")

	v, found := mustGet(t, f, "alice")
	if !found || v.Name != "Alice" {
		t.Fatalf("got (%v, %v), want Alice", v, found)
	}
}

func TestResolver_HitSkipsFetch(t *testing.T) {
	clock := newTestClock()
	f := newResolverFixture(t, clock, "profile", newClockedStore(clock), nil)
	f.acc.put("alice", "Alice")

	first, _ := mustGet(t, f, "alice")
	clock.Advance(30 * time.Second)
	second, _ := mustGet(t, f, "alice")

	if n := f.acc.calls.Load(); n != 1 {
		t.Fatalf("fetch called %d times, want 1", n)
	}
	// The memory tier hands back the same reference.
	if first != second {
		t.Fatal("expected the memory tier to return the stored pointer")
	}
}

func TestResolver_MemoryExpiryFallsThroughToRevalidating(t *testing.T) {
	clock := newTestClock()
	f := newResolverFixture(t, clock, "profile", newClockedStore(clock),
		[]MemoryOption{WithTTL(10 * time.Second)},
		WithRevalidateTTL(time.Minute),
	)
	f.acc.put("alice", "Alice")

	mustGet(t, f, "alice")
	clock.Advance(10 * time.Second)

	// Memory expired, revalidating entry still fresh.
	if v, _ := mustGet(t, f, "alice"); v.Name != "Alice" {
		t.Fatalf("got %q, want Alice", v.Name)
	}
	if n := f.acc.calls.Load(); n != 1 {
		t.Fatalf("fetch called %d times, want 1", n)
	}

	// Both expired.
	clock.Advance(time.Minute)
	mustGet(t, f, "alice")
	if n := f.acc.calls.Load(); n != 2 {
		t.Fatalf("fetch called %d times, want 2", n)
	}
}

func TestResolver_RequestScopeCollapsesConcurrentCalls(t *testing.T) {
	clock := newTestClock()
	f := newResolverFixture(t, clock, "profile", newClockedStore(clock), nil)
	f.acc.put("alice", "Alice")
	f.acc.gate = make(chan struct{})

	ctx := contextx.WithRequestScope(t.Context(), reqscope.New())

	var wg sync.WaitGroup
	results := make([]*page, 2)
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _, errs[i] = f.res.Get(ctx, "alice")
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(f.acc.gate)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if n := f.acc.calls.Load(); n != 1 {
		t.Fatalf("fetch called %d times, want 1", n)
	}
	if results[0] == nil || results[0] != results[1] {
		t.Fatalf("callers got %p and %p, want the same value", results[0], results[1])
	}
}

func TestResolver_RequestScopeSharesErrors(t *testing.T) {
	clock := newTestClock()
	f := newResolverFixture(t, clock, "profile", newClockedStore(clock), nil)
	boom := errors.New("db unavailable")
	f.acc.setErr(boom)

	ctx := contextx.WithRequestScope(t.Context(), reqscope.New())
	for range 2 {
		if _, _, err := f.res.Get(ctx, "alice"); !errors.Is(err, boom) {
			t.Fatalf("got err %v, want %v", err, boom)
		}
	}
	if n := f.acc.calls.Load(); n != 1 {
		t.Fatalf("fetch called %d times within one request, want 1", n)
	}

	// A new request retries.
	f.acc.setErr(nil)
	f.acc.put("alice", "Alice")
	if v, found := mustGet(t, f, "alice"); !found || v.Name != "Alice" {
		t.Fatalf("got (%v, %v), want Alice", v, found)
	}
}

func TestResolver_InvalidateRefetchesWithinTTL(t *testing.T) {
	clock := newTestClock()
	f := newResolverFixture(t, clock, "profile", newClockedStore(clock),
		[]MemoryOption{WithTTL(time.Second)},
		WithRevalidateTTL(time.Hour),
	)
	f.acc.put("alice", "v1")

	mustGet(t, f, "alice")
	f.acc.put("alice", "v2")
	if err := f.res.Invalidate(t.Context()); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	clock.Advance(time.Second)

	if v, _ := mustGet(t, f, "alice"); v.Name != "v2" {
		t.Fatalf("got %q, want v2", v.Name)
	}
	if n := f.acc.calls.Load(); n != 2 {
		t.Fatalf("fetch called %d times, want 2", n)
	}
}

func TestResolver_AbsentIsNotCachedInMemory(t *testing.T) {
	clock := newTestClock()
	f := newResolverFixture(t, clock, "profile", newClockedStore(clock), nil,
		WithRevalidateTTL(time.Minute),
	)

	if _, found := mustGet(t, f, "new-user"); found {
		t.Fatal("expected not found")
	}
	if n := f.mem.Len(); n != 0 {
		t.Fatalf("memory tier holds %d entries, want 0", n)
	}

	f.acc.put("new-user", "Newcomer")
	clock.Advance(time.Minute)

	v, found := mustGet(t, f, "new-user")
	if !found || v.Name != "Newcomer" {
		t.Fatalf("got (%v, %v), want the created record", v, found)
	}
}

func TestResolver_NamespacesAreIsolated(t *testing.T) {
	clock := newTestClock()
	shared := newClockedStore(clock)
	profiles := newResolverFixture(t, clock, "profile", shared, nil)
	pages := newResolverFixture(t, clock, "ai-page", shared, nil)
	profiles.acc.put("x", "profile x")
	pages.acc.put("x", "page x")

	ctx := contextx.WithRequestScope(t.Context(), reqscope.New())
	p, _, err := profiles.res.Get(ctx, "x")
	if err != nil {
		t.Fatalf("profile Get: %v", err)
	}
	a, _, err := pages.res.Get(ctx, "x")
	if err != nil {
		t.Fatalf("page Get: %v", err)
	}

	if p.Name != "profile x" || a.Name != "page x" {
		t.Fatalf("got %q and %q, want independent records", p.Name, a.Name)
	}
	if profiles.acc.calls.Load() != 1 || pages.acc.calls.Load() != 1 {
		t.Fatal("expected one fetch per namespace")
	}

	// Invalidating one tag leaves the other namespace cached.
	if err := profiles.res.Invalidate(t.Context()); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	profiles.mem.Delete("x")
	pages.mem.Delete("x")
	mustGet(t, profiles, "x")
	mustGet(t, pages, "x")
	if n := profiles.acc.calls.Load(); n != 2 {
		t.Fatalf("profile fetches = %d, want 2", n)
	}
	if n := pages.acc.calls.Load(); n != 1 {
		t.Fatalf("page fetches = %d, want 1", n)
	}
}
