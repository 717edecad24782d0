package store

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Keksclan/linkSquirrel/linkpage"
	"github.com/Keksclan/linkSquirrel/retry"
)

// GuardConfig tunes a [Guarded] accessor.
type GuardConfig struct {
	// Name labels the breaker in logs.
	Name string

	// Retry applies to reads only. A nil Retryable defaults to [Transient].
	Retry retry.Config

	// MinRequests and FailureRatio decide when the breaker trips: once at
	// least MinRequests calls were counted in the current Interval and the
	// failure ratio reaches FailureRatio.
	MinRequests  uint32
	FailureRatio float64
	Interval     time.Duration

	// OpenTimeout is how long the breaker rejects calls before letting
	// HalfOpenRequests probes through.
	OpenTimeout      time.Duration
	HalfOpenRequests uint32
}

// DefaultGuardConfig returns the production settings.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Name: "postgres",
		Retry: retry.Config{
			MaxAttempts: 3,
			BaseDelay:   50 * time.Millisecond,
			MaxDelay:    500 * time.Millisecond,
			Jitter:      0.2,
		},
		MinRequests:      10,
		FailureRatio:     0.6,
		Interval:         30 * time.Second,
		OpenTimeout:      15 * time.Second,
		HalfOpenRequests: 3,
	}
}

// Guarded decorates an [Accessor] with a circuit breaker around every call
// and retries around reads. An open breaker fails fast with
// gobreaker.ErrOpenState, which the cache treats like any other fetch error:
// it is returned and not cached.
type Guarded struct {
	next  Accessor
	cb    *gobreaker.CircuitBreaker
	retry retry.Config
}

// NewGuarded wraps next.
func NewGuarded(next Accessor, cfg GuardConfig, logger *zap.Logger) *Guarded {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = Transient
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = func(attempt int, err error, delay time.Duration) {
			logger.Warn("retrying read",
				zap.String("breaker", cfg.Name),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		}
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < cfg.MinRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &Guarded{next: next, cb: cb, retry: cfg.Retry}
}

// State returns the breaker state.
func (g *Guarded) State() gobreaker.State { return g.cb.State() }

type found[T any] struct {
	val T
	ok  bool
}

func guardedFind[T any](ctx context.Context, g *Guarded, find func(context.Context, string) (T, bool, error), key string) (T, bool, error) {
	res, err := retry.Do(ctx, g.retry, func(ctx context.Context) (found[T], error) {
		out, err := g.cb.Execute(func() (any, error) {
			v, ok, err := find(ctx, key)
			return found[T]{val: v, ok: ok}, err
		})
		if err != nil {
			return found[T]{}, err
		}
		return out.(found[T]), nil
	})
	return res.val, res.ok, err
}

func (g *Guarded) exec(fn func() error) error {
	_, err := g.cb.Execute(func() (any, error) { return nil, fn() })
	return err
}

// FindProfile implements [linkpage.ProfileStore].
func (g *Guarded) FindProfile(ctx context.Context, username string) (*linkpage.Profile, bool, error) {
	return guardedFind(ctx, g, g.next.FindProfile, username)
}

// SaveProfile implements [linkpage.ProfileStore].
func (g *Guarded) SaveProfile(ctx context.Context, p *linkpage.Profile) error {
	return g.exec(func() error { return g.next.SaveProfile(ctx, p) })
}

// FindAIPage implements [linkpage.AIPageStore].
func (g *Guarded) FindAIPage(ctx context.Context, slug string) (*linkpage.AIPage, bool, error) {
	return guardedFind(ctx, g, g.next.FindAIPage, slug)
}

// SaveAIPage implements [linkpage.AIPageStore].
func (g *Guarded) SaveAIPage(ctx context.Context, p *linkpage.AIPage) error {
	return g.exec(func() error { return g.next.SaveAIPage(ctx, p) })
}

// DeleteAIPage implements [linkpage.AIPageStore].
func (g *Guarded) DeleteAIPage(ctx context.Context, slug string) error {
	return g.exec(func() error { return g.next.DeleteAIPage(ctx, slug) })
}
