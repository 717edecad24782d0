package interceptors

import (
	"context"
	"sync"

	"github.com/Keksclan/linkSquirrel/policy"
	"github.com/Keksclan/linkSquirrel/ratelimit"
	"github.com/Keksclan/linkSquirrel/security"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errRateLimited is allocated once to avoid per-request allocations on the hot path.
var errRateLimited = status.Error(codes.ResourceExhausted, "rate limit exceeded")

// RateLimitConfig wires the limiters consulted by RateLimitUnary. Every field
// is optional.
type RateLimitConfig struct {
	// Global gates every call.
	Global *ratelimit.Limiter
	// PerClient gates calls per resolved client address.
	PerClient *ratelimit.Keyed
	ClientIP  *security.ClientIP
	// Policies supplies per-group limits; a matched group limit replaces
	// the global one.
	Policies *policy.Resolver
}

type rateLimitState struct {
	cfg RateLimitConfig

	mu     sync.Mutex
	groups map[string]*ratelimit.Limiter
}

// limiterFor returns the per-group limiter when the resolver matches
// fullMethod to a group with a RateLimit policy. Otherwise it returns the
// global limiter.
func (s *rateLimitState) limiterFor(fullMethod string) *ratelimit.Limiter {
	name, pol, ok := s.cfg.Policies.Resolve(fullMethod)
	if !ok || pol == nil || pol.RateLimit == nil {
		return s.cfg.Global
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.groups[name]; ok {
		return l
	}
	l := ratelimit.NewLimiter(pol.RateLimit.PerSecond(), pol.RateLimit.Rate)
	s.groups[name] = l
	return l
}

func (s *rateLimitState) allowClient(ctx context.Context) bool {
	if s.cfg.PerClient == nil || s.cfg.ClientIP == nil {
		return true
	}
	addr, ok := s.cfg.ClientIP.FromGRPC(ctx)
	if !ok {
		return true
	}
	return s.cfg.PerClient.Allow(addr.String())
}

// RateLimitUnary returns a unary server interceptor that rejects calls with
// ResourceExhausted when the client's bucket or the applicable method limiter
// is exhausted.
func RateLimitUnary(cfg RateLimitConfig) grpc.UnaryServerInterceptor {
	st := &rateLimitState{cfg: cfg, groups: make(map[string]*ratelimit.Limiter)}
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if !st.allowClient(ctx) || !st.limiterFor(info.FullMethod).Allow() {
			return nil, errRateLimited
		}
		return handler(ctx, req)
	}
}
