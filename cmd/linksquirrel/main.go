// Command linksquirrel serves link-in-bio profiles and AI pages over gRPC and
// HTTP through the layered read cache.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	linksquirrel "github.com/Keksclan/linkSquirrel"
	"github.com/Keksclan/linkSquirrel/auth"
	"github.com/Keksclan/linkSquirrel/config"
	"github.com/Keksclan/linkSquirrel/errorreporting"
	"github.com/Keksclan/linkSquirrel/httpapi"
	"github.com/Keksclan/linkSquirrel/interceptors"
	"github.com/Keksclan/linkSquirrel/logging"
	"github.com/Keksclan/linkSquirrel/pagerpc"
	"github.com/Keksclan/linkSquirrel/policy"
	"github.com/Keksclan/linkSquirrel/ratelimit"
	"github.com/Keksclan/linkSquirrel/security"
	"github.com/Keksclan/linkSquirrel/tracing"
)

const keyedSweepInterval = time.Minute

func main() {
	configPath := flag.String("config", os.Getenv("LINKSQUIRREL_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "linksquirrel: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "linksquirrel: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("linksquirrel stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("linksquirrel stopped")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if err := errorreporting.Init(cfg.Sentry.DSN, cfg.Env, cfg.Sentry.Release); err != nil {
		return err
	}
	defer errorreporting.Flush(2 * time.Second)

	traceCfg, shutdownTracing, err := tracing.Setup(ctx, tracing.ProviderConfig{
		Exporter:       cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRatio:    cfg.Tracing.SampleRatio,
		ServiceName:    "linksquirrel",
		ServiceVersion: cfg.Sentry.Release,
	})
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	svc, err := newService(cfg, b, traceCfg.Provider(), logger)
	if err != nil {
		return err
	}
	svc.Start(ctx)
	defer svc.Close()

	policies := policy.Pages(policy.DefaultPagesConfig())
	authn := auth.New(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AdminToken)
	clientIP, err := security.NewClientIP(cfg.RateLimit.TrustedProxies, nil)
	if err != nil {
		return err
	}
	global := ratelimit.NewLimiter(cfg.RateLimit.GlobalRPS, cfg.RateLimit.GlobalBurst)
	perIP := ratelimit.NewKeyed(cfg.RateLimit.PerIPRPS, cfg.RateLimit.PerIPBurst)
	perIP.Start(keyedSweepInterval)
	defer perIP.Stop()

	opts := append(linksquirrel.DefaultOptions(logger, policies),
		linksquirrel.WithRateLimit(interceptors.RateLimitConfig{
			Global:    global,
			PerClient: perIP,
			ClientIP:  clientIP,
		}),
		linksquirrel.WithAuth(authn.GRPC()),
	)
	if traceCfg != nil {
		opts = append(opts, linksquirrel.WithOpenTelemetry(traceCfg))
	}
	grpcSrv := linksquirrel.NewServer(opts...)
	grpcSrv.RegisterPages(pagerpc.NewServer(svc, logger))

	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.New(httpapi.Options{
			Pages:     svc,
			Auth:      authn,
			Policies:  policies,
			Global:    global,
			PerClient: perIP,
			ClientIP:  clientIP,
			Tracing:   traceCfg,
			Logger:    logger,
			Health:    b.health,
			Metrics:   grpcSrv.MetricsHandler(),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("grpc listening", zap.String("addr", lis.Addr().String()))
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		grpcSrv.Shutdown(shutdownCtx)
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
