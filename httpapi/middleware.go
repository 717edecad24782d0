package httpapi

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Keksclan/linkSquirrel/auth"
	"github.com/Keksclan/linkSquirrel/contextx"
	"github.com/Keksclan/linkSquirrel/errorreporting"
	"github.com/Keksclan/linkSquirrel/policy"
	"github.com/Keksclan/linkSquirrel/ratelimit"
	"github.com/Keksclan/linkSquirrel/reqscope"
	"github.com/Keksclan/linkSquirrel/security"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

func recovery(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.String("request_id", contextx.RequestIDFromContext(r.Context())),
						zap.Any("panic", rec),
						zap.ByteString("stack", debug.Stack()),
					)
					errorreporting.CapturePanic(r.Context(), rec, routeName(r))
					writeError(w, r, http.StatusInternalServerError, ErrSystemInternal, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, id := contextx.EnsureRequestID(r.Context(), r.Header.Get(RequestIDHeader))
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func scope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(contextx.WithRequestScope(r.Context(), reqscope.New())))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func accessLog(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", routeName(r)),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", contextx.RequestIDFromContext(r.Context())),
			}
			if rec.status >= http.StatusInternalServerError {
				logger.Error("http request", fields...)
				return
			}
			logger.Info("http request", fields...)
		})
	}
}

func rateLimit(global *ratelimit.Limiter, perClient *ratelimit.Keyed, clientIP *security.ClientIP, policies *policy.Resolver) mux.MiddlewareFunc {
	var mu sync.Mutex
	groups := make(map[string]*ratelimit.Limiter)
	groupLimiter := func(op string) *ratelimit.Limiter {
		name, pol, ok := policies.Resolve(op)
		if !ok || pol == nil || pol.RateLimit == nil {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		if l, ok := groups[name]; ok {
			return l
		}
		l := ratelimit.NewLimiter(pol.RateLimit.PerSecond(), pol.RateLimit.Rate)
		groups[name] = l
		return l
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !global.Allow() {
				writeError(w, r, http.StatusTooManyRequests, ErrRateLimitGlobal, "rate limit exceeded")
				return
			}
			if perClient != nil && clientIP != nil {
				if addr, ok := clientIP.FromHTTP(r); ok && !perClient.Allow(addr.String()) {
					writeError(w, r, http.StatusTooManyRequests, ErrRateLimitIP, "rate limit exceeded")
					return
				}
			}
			if op := routeName(r); op != "" && !groupLimiter(op).Allow() {
				writeError(w, r, http.StatusTooManyRequests, ErrRateLimitGlobal, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate enforces the Access level of the route's policy. Public
// routes still pick up an actor when valid credentials are sent.
func authenticate(a *auth.Authenticator, policies *policy.Resolver) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access := policies.Lookup(routeName(r)).Access

			actor, err := a.FromRequest(r)
			if err != nil {
				switch {
				case access == policy.Public:
					next.ServeHTTP(w, r)
				case errors.Is(err, auth.ErrMissingToken):
					writeError(w, r, http.StatusUnauthorized, ErrAuthMissing, "authentication required")
				default:
					writeError(w, r, http.StatusUnauthorized, ErrAuthInvalid, err.Error())
				}
				return
			}
			if access == policy.Admin && !actor.Admin {
				writeError(w, r, http.StatusForbidden, ErrAuthForbidden, "admin access required")
				return
			}
			next.ServeHTTP(w, r.WithContext(contextx.WithActor(r.Context(), actor)))
		})
	}
}

func timeout(policies *policy.Resolver) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d := policies.Lookup(routeName(r)).Timeout; d > 0 {
				ctx, cancel := context.WithTimeout(r.Context(), d)
				defer cancel()
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}
