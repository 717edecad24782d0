package linksquirrel

import (
	"github.com/Keksclan/linkSquirrel/auth"
	"github.com/Keksclan/linkSquirrel/interceptors"
	"github.com/Keksclan/linkSquirrel/internal/core"
	"github.com/Keksclan/linkSquirrel/policy"
	"github.com/Keksclan/linkSquirrel/tracing"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Interceptor priorities. Lower values run first, so recovery wraps
// everything and auth sits closest to the handler.
const (
	OrderRecovery  = 100
	OrderRequestID = 200
	OrderTracing   = 300
	OrderLogging   = 400
	OrderScope     = 500
	OrderTimeout   = 600
	OrderRateLimit = 700
	OrderAuth      = 800
)

// Option configures a Server.
type Option func(*config)

// config holds the internal configuration assembled via functional options.
type config struct {
	logger   *zap.Logger
	policies *policy.Resolver

	recovery  bool
	requestID bool
	logging   bool
	scope     bool
	timeouts  bool
	tracing   *tracing.Config
	rateLimit *interceptors.RateLimitConfig
	authFn    auth.AuthFunc

	middlewares core.MiddlewareBuilder
	serverOpts  []grpc.ServerOption
}

// WithLogger sets the logger used by recovery and request logging.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithPolicies sets the per-method policies consulted by the timeout, rate
// limit and auth interceptors.
func WithPolicies(r *policy.Resolver) Option {
	return func(c *config) { c.policies = r }
}

// WithRecovery turns handler panics into codes.Internal.
func WithRecovery() Option {
	return func(c *config) { c.recovery = true }
}

// WithRequestID accepts or generates an x-request-id per call.
func WithRequestID() Option {
	return func(c *config) { c.requestID = true }
}

// WithLogging logs one line per call.
func WithLogging() Option {
	return func(c *config) { c.logging = true }
}

// WithRequestScope gives every call its own request memoizer.
func WithRequestScope() Option {
	return func(c *config) { c.scope = true }
}

// WithTimeouts applies the Timeout of the matching policy to each call.
func WithTimeouts() Option {
	return func(c *config) { c.timeouts = true }
}

// WithOpenTelemetry opens a server span per call. A nil cfg uses the global
// provider.
func WithOpenTelemetry(cfg *tracing.Config) Option {
	return func(c *config) {
		if cfg == nil {
			cfg = &tracing.Config{}
		}
		c.tracing = cfg
	}
}

// WithRateLimit enables global, per-client and per-group rate limiting. When
// rl.Policies is nil the server policies are used.
func WithRateLimit(rl interceptors.RateLimitConfig) Option {
	return func(c *config) { c.rateLimit = &rl }
}

// WithAuth authenticates calls with fn and enforces each policy's Access.
func WithAuth(fn auth.AuthFunc) Option {
	return func(c *config) { c.authFn = fn }
}

// WithUnaryInterceptor adds a custom interceptor at the given priority.
func WithUnaryInterceptor(order int, i grpc.UnaryServerInterceptor) Option {
	return func(c *config) { c.middlewares.Add(order, i) }
}

// WithServerOptions passes extra options through to grpc.NewServer.
func WithServerOptions(opts ...grpc.ServerOption) Option {
	return func(c *config) { c.serverOpts = append(c.serverOpts, opts...) }
}

// interceptors adds the enabled built-in interceptors to the builder and
// returns the sorted chain.
func (c *config) interceptors() []grpc.UnaryServerInterceptor {
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	b := &c.middlewares
	if c.recovery {
		b.Add(OrderRecovery, interceptors.RecoveryUnary(c.logger))
	}
	if c.requestID {
		b.Add(OrderRequestID, interceptors.RequestIDUnary())
	}
	if c.tracing != nil {
		b.Add(OrderTracing, tracing.UnaryServerInterceptor(c.tracing))
	}
	if c.logging {
		b.Add(OrderLogging, interceptors.LoggingUnary(c.logger))
	}
	if c.scope {
		b.Add(OrderScope, interceptors.ScopeUnary())
	}
	if c.timeouts {
		b.Add(OrderTimeout, interceptors.TimeoutUnary(c.policies))
	}
	if c.rateLimit != nil {
		rl := *c.rateLimit
		if rl.Policies == nil {
			rl.Policies = c.policies
		}
		b.Add(OrderRateLimit, interceptors.RateLimitUnary(rl))
	}
	if c.authFn != nil {
		b.Add(OrderAuth, interceptors.AuthUnary(c.authFn, c.policies))
	}
	return b.Build()
}
