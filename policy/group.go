// Package policy maps operation names to per-operation handling rules:
// deadline, rate limit and required access level. Operation names are full
// gRPC method names; the HTTP router names its routes the same way so both
// transports share one policy set.
package policy

import "time"

// Access is the minimum caller identity an operation requires.
type Access int

const (
	// Public operations need no credentials.
	Public Access = iota
	// Authenticated operations need a verified creator token.
	Authenticated
	// Admin operations need admin credentials.
	Admin
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// RateLimitRule describes a rate-limiting policy for a group of operations.
type RateLimitRule struct {
	// Rate is the maximum number of requests allowed within Window.
	Rate int
	// Window is the time window for the rate limit.
	Window time.Duration
}

// PerSecond converts the rule to a token refill rate.
func (r RateLimitRule) PerSecond() float64 {
	if r.Window <= 0 {
		return float64(r.Rate)
	}
	return float64(r.Rate) / r.Window.Seconds()
}

// Policy holds the rules that apply to a matched operation group.
type Policy struct {
	RateLimit *RateLimitRule
	Timeout   time.Duration
	Access    Access
}

type matchKind int

const (
	kindExact matchKind = iota
	kindPrefix
)

type rule struct {
	kind    matchKind
	pattern string
}

// GroupBuilder constructs an operation group with one or more matching rules
// and a policy.
type GroupBuilder struct {
	name   string
	rules  []rule
	policy *Policy
}

// Group starts building a new operation group with the given name.
func Group(name string) *GroupBuilder {
	return &GroupBuilder{name: name}
}

// Exact adds an exact-match rule for pattern.
func (g *GroupBuilder) Exact(patterns ...string) *GroupBuilder {
	for _, p := range patterns {
		g.rules = append(g.rules, rule{kind: kindExact, pattern: p})
	}
	return g
}

// Prefix adds a prefix-match rule for pattern.
func (g *GroupBuilder) Prefix(pattern string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindPrefix, pattern: pattern})
	return g
}

// Policy attaches a Policy to the group and returns the finished builder.
func (g *GroupBuilder) Policy(p Policy) *GroupBuilder {
	g.policy = &p
	return g
}
