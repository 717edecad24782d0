// Package linksquirrel assembles the gRPC server of the link page service:
// a fixed-order interceptor chain configured through functional options, the
// Pages service and the standard health service.
package linksquirrel

import (
	"context"
	"net"
	"net/http"

	"github.com/Keksclan/linkSquirrel/internal/core"
	"github.com/Keksclan/linkSquirrel/pagerpc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

// Server is a composable wrapper around a [grpc.Server]. Middleware
// execution order is determined by fixed priorities (see the Order
// constants), not by the order options are passed.
//
//	srv := linksquirrel.NewServer(
//		linksquirrel.WithRecovery(),
//		linksquirrel.WithRequestScope(),
//		linksquirrel.WithAuth(authn.GRPC()),
//		linksquirrel.WithPolicies(policy.Pages(policy.DefaultPagesConfig())),
//	)
//	srv.RegisterPages(pagerpc.NewServer(svc, logger))
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
}

// NewServer creates a Server from the supplied options.
func NewServer(opts ...Option) *Server {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}
	serverOpts := core.BuildServerOptions(cfg.interceptors(), cfg.serverOpts...)
	return &Server{grpcServer: grpc.NewServer(serverOpts...)}
}

// GRPC returns the underlying *grpc.Server so callers can register services.
func (s *Server) GRPC() *grpc.Server {
	return s.grpcServer
}

// RegisterPages registers the Pages service and the health service.
func (s *Server) RegisterPages(h pagerpc.Handler) {
	pagerpc.Register(s.grpcServer, h)
	if s.health == nil {
		s.health = pagerpc.RegisterHealth(s.grpcServer)
	}
}

// Serve accepts connections on lis until the server stops.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// Shutdown marks every service NOT_SERVING and stops gracefully. In-flight
// calls are cut off when ctx ends first.
func (s *Server) Shutdown(ctx context.Context) {
	if s.health != nil {
		s.health.Shutdown()
	}
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
		<-done
	}
}

// MetricsHandler returns an http.Handler that serves Prometheus metrics.
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.Handler()
}
