package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, "linksquirrel:"), mr
}

func TestRedisStore_SaveLoad(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := t.Context()

	if _, found, gen, err := s.Load(ctx, "profile:alice", "profile"); err != nil || found || gen != 0 {
		t.Fatalf("Load on empty store = (%v, %d, %v), want miss at generation 0", found, gen, err)
	}

	if err := s.Save(ctx, "profile:alice", []byte(`{"name":"Alice"}`), time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, found, _, err := s.Load(ctx, "profile:alice", "profile")
	if err != nil || !found {
		t.Fatalf("Load = (%v, %v), want hit", found, err)
	}
	if string(raw) != `{"name":"Alice"}` {
		t.Fatalf("got %s", raw)
	}
}

func TestRedisStore_EntryExpires(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := t.Context()

	if err := s.Save(ctx, "profile:alice", []byte("x"), time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}
	mr.FastForward(time.Minute)

	if _, found, _, err := s.Load(ctx, "profile:alice", "profile"); err != nil || found {
		t.Fatalf("Load after TTL = (%v, %v), want miss", found, err)
	}
}

func TestRedisStore_BumpAdvancesGeneration(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := t.Context()

	for want := uint64(1); want <= 2; want++ {
		gen, err := s.Bump(ctx, "profile")
		if err != nil {
			t.Fatalf("Bump: %v", err)
		}
		if gen != want {
			t.Fatalf("Bump = %d, want %d", gen, want)
		}
	}
	if _, _, gen, _ := s.Load(ctx, "ai-page:x", "profile"); gen != 2 {
		t.Fatalf("Load generation = %d, want 2", gen)
	}
	if _, _, gen, _ := s.Load(ctx, "ai-page:x", "ai-page"); gen != 0 {
		t.Fatalf("untouched tag generation = %d, want 0", gen)
	}

	if !mr.Exists("linksquirrel:tag:profile") {
		t.Fatal("expected the generation key under the configured prefix")
	}
}

func TestRedisStore_BackingRevalidating(t *testing.T) {
	s, _ := newTestRedisStore(t)
	acc := newFakeAccessor()
	acc.put("alice", "v1")
	r := NewRevalidating[*page]("profile", s, acc, WithRevalidateTTL(time.Hour))

	mustResolve(t, r, "alice")
	mustResolve(t, r, "alice")
	if n := acc.calls.Load(); n != 1 {
		t.Fatalf("fetch called %d times, want 1", n)
	}

	acc.put("alice", "v2")
	if err := r.Invalidate(t.Context()); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if v, _ := mustResolve(t, r, "alice"); v.Name != "v2" {
		t.Fatalf("got %q, want v2", v.Name)
	}
}

func TestRedisStore_UnreachableDegradesToReadThrough(t *testing.T) {
	s, mr := newTestRedisStore(t)
	acc := newFakeAccessor()
	acc.put("alice", "Alice")
	r := NewRevalidating[*page]("profile", s, acc)

	mr.Close()

	if v, found := mustResolve(t, r, "alice"); !found || v.Name != "Alice" {
		t.Fatalf("got (%v, %v), want Alice", v, found)
	}
	if err := s.Ping(t.Context()); err == nil {
		t.Fatal("expected Ping to fail once Redis is gone")
	}
}
