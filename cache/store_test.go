package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestLocalStore_SaveLoadExpire(t *testing.T) {
	clock := newTestClock()
	s := newClockedStore(clock)
	ctx := t.Context()

	if err := s.Save(ctx, "profile:alice", []byte("x"), time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if raw, found, _, _ := s.Load(ctx, "profile:alice", "profile"); !found || string(raw) != "x" {
		t.Fatalf("Load = (%q, %v), want hit", raw, found)
	}

	clock.Advance(time.Minute)
	if _, found, _, _ := s.Load(ctx, "profile:alice", "profile"); found {
		t.Fatal("expected miss once the entry TTL elapsed")
	}
}

func TestLocalStore_GenerationsArePerTag(t *testing.T) {
	s := NewLocalStore()
	ctx := t.Context()

	if gen, _ := s.Bump(ctx, "profile"); gen != 1 {
		t.Fatalf("Bump = %d, want 1", gen)
	}
	if _, _, gen, _ := s.Load(ctx, "k", "profile"); gen != 1 {
		t.Fatalf("profile generation = %d, want 1", gen)
	}
	if _, _, gen, _ := s.Load(ctx, "k", "ai-page"); gen != 0 {
		t.Fatalf("ai-page generation = %d, want 0", gen)
	}
}

func TestLocalStore_SweepReleasesExpiredEntries(t *testing.T) {
	clock := newTestClock()
	s := newClockedStore(clock)
	acc := newFakeAccessor()
	r := NewRevalidating[*page]("profile", s, acc)
	r.nowFunc = clock.Now

	for i := range 1000 {
		if _, found := mustResolve(t, r, fmt.Sprintf("nobody-%d", i)); found {
			t.Fatal("expected not found")
		}
	}
	if _, err := s.Bump(t.Context(), "profile"); err != nil {
		t.Fatalf("Bump: %v", err)
	}
	if n := s.Len(); n != 1000 {
		t.Fatalf("Len() = %d, want 1000 absent outcomes", n)
	}

	clock.Advance(24 * time.Hour)
	if n := s.Sweep(); n != 1000 {
		t.Fatalf("Sweep() = %d, want 1000", n)
	}
	if n := s.Len(); n != 0 {
		t.Fatalf("Len() = %d after sweep, want 0", n)
	}
	if _, _, gen, _ := s.Load(t.Context(), "k", "profile"); gen != 1 {
		t.Fatalf("generation = %d after sweep, want 1", gen)
	}
}

func TestLocalStore_StartSweepsPeriodically(t *testing.T) {
	clock := newTestClock()
	s := NewLocalStore(WithStoreSweepInterval(5 * time.Millisecond))
	s.nowFunc = clock.Now
	t.Cleanup(s.Close)

	if err := s.Save(t.Context(), "profile:alice", []byte("x"), time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Start(t.Context())
	clock.Advance(time.Minute)

	deadline := time.Now().Add(time.Second)
	for s.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expired entry was not swept")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
