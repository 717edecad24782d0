package policy

import (
	"testing"
	"time"
)

func TestResolve_ExactMatch(t *testing.T) {
	r := NewResolver(
		Group("admin").
			Exact("/linksquirrel.Pages/InvalidateTag").
			Policy(Policy{Access: Admin}),
	)

	name, pol, ok := r.Resolve("/linksquirrel.Pages/InvalidateTag")
	if !ok {
		t.Fatal("expected a match")
	}
	if name != "admin" {
		t.Fatalf("got group %q, want %q", name, "admin")
	}
	if pol.Access != Admin {
		t.Fatalf("got access %v, want admin", pol.Access)
	}
}

func TestResolve_PrefixMatch(t *testing.T) {
	r := NewResolver(
		Group("public").
			Prefix("/public.").
			Policy(Policy{Timeout: 5 * time.Second}),
	)

	name, pol, ok := r.Resolve("/public.Service/List")
	if !ok {
		t.Fatal("expected a match")
	}
	if name != "public" {
		t.Fatalf("got group %q, want %q", name, "public")
	}
	if pol.Timeout != 5*time.Second {
		t.Fatalf("got timeout %v, want %v", pol.Timeout, 5*time.Second)
	}
}

func TestResolve_NoMatch(t *testing.T) {
	r := NewResolver(
		Group("admin").Exact("/admin.Service/Delete").Policy(Policy{}),
	)

	if _, _, ok := r.Resolve("/other.Service/Get"); ok {
		t.Fatal("expected no match")
	}
	if got := r.Lookup("/other.Service/Get"); got.Access != Public || got.Timeout != 0 {
		t.Fatalf("Lookup = %+v, want zero policy", got)
	}

	var nilRes *Resolver
	if _, _, ok := nilRes.Resolve("/x/y"); ok {
		t.Fatal("nil resolver matched")
	}
}

func TestResolve_ExactBeatsPrefix(t *testing.T) {
	r := NewResolver(
		Group("prefix-group").
			Prefix("/svc.Service/").
			Policy(Policy{Timeout: 1 * time.Second}),
		Group("exact-group").
			Exact("/svc.Service/Get").
			Policy(Policy{Timeout: 2 * time.Second}),
	)

	name, pol, ok := r.Resolve("/svc.Service/Get")
	if !ok {
		t.Fatal("expected a match")
	}
	if name != "exact-group" {
		t.Fatalf("exact should beat prefix: got %q", name)
	}
	if pol.Timeout != 2*time.Second {
		t.Fatalf("got timeout %v, want %v", pol.Timeout, 2*time.Second)
	}
}

func TestResolve_LongerPrefixWins(t *testing.T) {
	r := NewResolver(
		Group("short").
			Prefix("/svc.").
			Policy(Policy{Timeout: 1 * time.Second}),
		Group("long").
			Prefix("/svc.Service/").
			Policy(Policy{Timeout: 2 * time.Second}),
	)

	name, _, ok := r.Resolve("/svc.Service/Get")
	if !ok {
		t.Fatal("expected a match")
	}
	if name != "long" {
		t.Fatalf("longer prefix should win: got %q", name)
	}
}

func TestResolve_StableFallback(t *testing.T) {
	r := NewResolver(
		Group("first").
			Exact("/svc.Service/Get").
			Policy(Policy{Timeout: 1 * time.Second}),
		Group("second").
			Exact("/svc.Service/Get").
			Policy(Policy{Timeout: 2 * time.Second}),
	)

	name, pol, _ := r.Resolve("/svc.Service/Get")
	if name != "first" {
		t.Fatalf("first-registered group should win: got %q", name)
	}
	if pol.Timeout != 1*time.Second {
		t.Fatalf("got timeout %v, want %v", pol.Timeout, 1*time.Second)
	}
}

func TestRateLimitRule_PerSecond(t *testing.T) {
	tests := []struct {
		rule RateLimitRule
		want float64
	}{
		{RateLimitRule{Rate: 60, Window: time.Minute}, 1},
		{RateLimitRule{Rate: 10, Window: 2 * time.Second}, 5},
		{RateLimitRule{Rate: 3}, 3},
	}
	for _, tt := range tests {
		if got := tt.rule.PerSecond(); got != tt.want {
			t.Errorf("%+v.PerSecond() = %v, want %v", tt.rule, got, tt.want)
		}
	}
}

func TestPages_DefaultPolicies(t *testing.T) {
	cfg := DefaultPagesConfig()
	r := Pages(cfg)

	tests := []struct {
		op      string
		group   string
		access  Access
		timeout time.Duration
		limited bool
	}{
		{OpGetProfile, "reads", Public, cfg.ReadTimeout, false},
		{OpGetAIPage, "reads", Public, cfg.ReadTimeout, false},
		{OpSaveProfile, "writes", Authenticated, cfg.WriteTimeout, true},
		{OpSaveAIPage, "writes", Authenticated, cfg.WriteTimeout, true},
		{OpDeleteAIPage, "writes", Authenticated, cfg.WriteTimeout, true},
		{OpInvalidateTag, "admin", Admin, cfg.WriteTimeout, false},
		{PagesService + "Future", "pages", Public, cfg.ReadTimeout, false},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			name, pol, ok := r.Resolve(tt.op)
			if !ok {
				t.Fatal("expected a match")
			}
			if name != tt.group {
				t.Fatalf("group = %q, want %q", name, tt.group)
			}
			if pol.Access != tt.access {
				t.Fatalf("access = %v, want %v", pol.Access, tt.access)
			}
			if pol.Timeout != tt.timeout {
				t.Fatalf("timeout = %v, want %v", pol.Timeout, tt.timeout)
			}
			if (pol.RateLimit != nil) != tt.limited {
				t.Fatalf("rate limited = %v, want %v", pol.RateLimit != nil, tt.limited)
			}
		})
	}

	if _, _, ok := r.Resolve("/grpc.health.v1.Health/Check"); ok {
		t.Fatal("health checks must not match a Pages policy")
	}
}
