package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Keksclan/linkSquirrel/cache"
	"github.com/Keksclan/linkSquirrel/config"
	"github.com/Keksclan/linkSquirrel/linkpage"
	"github.com/Keksclan/linkSquirrel/store"
)

// backends are the external systems behind the service.
type backends struct {
	accessor   store.Accessor
	reader     store.Reader
	revalidate cache.Store

	pings   []func(context.Context) error
	closers []func() error
}

// openBackends connects to Postgres and Redis when configured and falls back
// to in-process stores otherwise.
func openBackends(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Database.URL == "" {
		logger.Warn("no database configured, records live in process memory")
		b.accessor = store.NewMemory()
	} else {
		pg, err := store.OpenPostgres(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pg.Close)
		b.pings = append(b.pings, pg.Ping)
		if cfg.Database.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				b.close()
				return nil, err
			}
		}
		b.accessor = store.NewGuarded(pg, store.DefaultGuardConfig(), logger)
	}
	b.reader = b.accessor
	if cfg.Database.LenientReads {
		b.reader = store.NewLenient(b.accessor, logger)
	}

	if cfg.Redis.Addr == "" {
		b.revalidate = cache.NewLocalStore(cache.WithStoreSweepInterval(cfg.Cache.SweepInterval))
		return b, nil
	}
	rdb, err := cache.DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		// The revalidating tier reads through while Redis is down.
		logger.Warn("redis unreachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	}
	rs := cache.NewRedisStore(rdb, cfg.Redis.Prefix)
	b.revalidate = rs
	b.pings = append(b.pings, rs.Ping)
	b.closers = append(b.closers, rdb.Close)
	return b, nil
}

// health reports the first failing backend.
func (b *backends) health(ctx context.Context) error {
	for _, ping := range b.pings {
		if err := ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

// newService builds the link page service with the configured cache tiers.
func newService(cfg config.Config, b *backends, tp trace.TracerProvider, logger *zap.Logger) (*linkpage.Service, error) {
	c := cfg.Cache
	opts := []linkpage.Option{
		linkpage.WithLogger(logger),
		linkpage.WithRevalidateStore(b.revalidate),
		linkpage.WithReadAccessors(b.reader, b.reader),
	}

	switch c.MemoryTier {
	case "ristretto":
		profiles, err := cache.NewL1[*linkpage.Profile](linkpage.ProfileNamespace, int64(c.ProfileCapacity), c.MemoryTTL)
		if err != nil {
			return nil, fmt.Errorf("profile memory tier: %w", err)
		}
		pages, err := cache.NewL1[*linkpage.AIPage](linkpage.AIPageNamespace, int64(c.AIPageCapacity), c.MemoryTTL)
		if err != nil {
			profiles.Close()
			return nil, fmt.Errorf("ai page memory tier: %w", err)
		}
		opts = append(opts, linkpage.WithLocalTiers(profiles, pages))
	case "fifo":
		memOpts := []cache.MemoryOption{cache.WithTTL(c.MemoryTTL), cache.WithSweepInterval(c.SweepInterval)}
		opts = append(opts, linkpage.WithLocalTiers(
			cache.NewMemory[*linkpage.Profile](linkpage.ProfileNamespace, append(memOpts, cache.WithMaxEntries(c.ProfileCapacity))...),
			cache.NewMemory[*linkpage.AIPage](linkpage.AIPageNamespace, append(memOpts, cache.WithMaxEntries(c.AIPageCapacity))...),
		))
	default:
		return nil, errors.New("unknown memory tier " + c.MemoryTier)
	}

	revalOpts := []cache.RevalidateOption{
		cache.WithRevalidateTTL(c.RevalidateTTL),
		cache.WithRefreshTimeout(c.RefreshTimeout),
		cache.WithTracerProvider(tp),
	}
	if c.StaleWhileRevalidate > 0 {
		revalOpts = append(revalOpts, cache.WithStaleWhileRevalidate(c.StaleWhileRevalidate))
	}
	if c.SingleFlight {
		revalOpts = append(revalOpts, cache.WithSingleFlight())
	}
	opts = append(opts, linkpage.WithRevalidateOptions(revalOpts...))

	return linkpage.NewService(b.accessor, b.accessor, opts...), nil
}
