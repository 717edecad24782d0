// Package httpapi serves the link page service over HTTP with gorilla/mux.
// Routes are named after the matching gRPC methods so both transports share
// one policy set.
package httpapi

import (
	"context"
	"net/http"

	"github.com/Keksclan/linkSquirrel/auth"
	"github.com/Keksclan/linkSquirrel/pagerpc"
	"github.com/Keksclan/linkSquirrel/policy"
	"github.com/Keksclan/linkSquirrel/ratelimit"
	"github.com/Keksclan/linkSquirrel/security"
	"github.com/Keksclan/linkSquirrel/tracing"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// opRenderAIPage names the raw HTML route. It falls under the service-wide
// Pages policy group.
const opRenderAIPage = policy.PagesService + "RenderAIPage"

// Options wires the router's collaborators. Everything except Pages is
// optional.
type Options struct {
	Pages    pagerpc.Pages
	Auth     *auth.Authenticator
	Policies *policy.Resolver

	Global    *ratelimit.Limiter
	PerClient *ratelimit.Keyed
	ClientIP  *security.ClientIP

	Tracing *tracing.Config
	Logger  *zap.Logger

	// Health reports readiness for /healthz; nil means always ready.
	Health func(ctx context.Context) error
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// New returns the HTTP handler.
func New(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Auth == nil {
		opts.Auth = auth.New("", "", "")
	}
	h := &handlers{pages: opts.Pages, health: opts.Health}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusNotFound, ErrRouteNotFound, "no such route")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusMethodNotAllowed, ErrMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/profiles/{username}", h.getProfile).Methods(http.MethodGet).Name(policy.OpGetProfile)
	api.HandleFunc("/profiles/{username}", h.saveProfile).Methods(http.MethodPut).Name(policy.OpSaveProfile)
	api.HandleFunc("/pages/{slug}", h.getAIPage).Methods(http.MethodGet).Name(policy.OpGetAIPage)
	api.HandleFunc("/pages/{slug}", h.saveAIPage).Methods(http.MethodPut).Name(policy.OpSaveAIPage)
	api.HandleFunc("/pages/{slug}", h.deleteAIPage).Methods(http.MethodDelete).Name(policy.OpDeleteAIPage)
	api.HandleFunc("/admin/invalidate/{tag}", h.invalidateTag).Methods(http.MethodPost).Name(policy.OpInvalidateTag)
	r.HandleFunc("/p/{slug}", h.renderAIPage).Methods(http.MethodGet).Name(opRenderAIPage)

	r.Use(
		recovery(opts.Logger),
		requestID,
		tracing.HTTPMiddleware(opts.Tracing, routeName),
		accessLog(opts.Logger),
		scope,
		timeout(opts.Policies),
		rateLimit(opts.Global, opts.PerClient, opts.ClientIP, opts.Policies),
		authenticate(opts.Auth, opts.Policies),
	)
	return r
}

// routeName returns the policy name of the matched route, or "".
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		return route.GetName()
	}
	return ""
}
