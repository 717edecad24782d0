package cache

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Revalidating caches the outcome of a [Fetcher] in a [Store] for a fixed
// TTL. Every entry carries the tag of its namespace; [Revalidating.Invalidate]
// advances the tag generation so that every entry written under an older
// generation is bypassed on the next Resolve.
//
// Fetch errors are never stored. Store errors are logged and treated as a
// miss, so an unreachable Redis degrades to read-through.
type Revalidating[V any] struct {
	ns      Namespace
	tag     string
	store   Store
	fetcher Fetcher[V]
	codec   Codec[V]

	ttl            time.Duration
	stale          time.Duration
	collapse       bool
	refreshTimeout time.Duration

	logger *zap.Logger
	tracer trace.Tracer

	sf singleflight.Group
	bg sync.WaitGroup // background refreshes, waited on by tests

	nowFunc func() time.Time // for testing; defaults to time.Now
}

// RevalidateOption configures a [Revalidating].
type RevalidateOption func(*revalidateConfig)

type revalidateConfig struct {
	ttl            time.Duration
	stale          time.Duration
	collapse       bool
	refreshTimeout time.Duration
	logger         *zap.Logger
	tp             trace.TracerProvider
}

// WithRevalidateTTL sets how long a stored outcome is served fresh.
func WithRevalidateTTL(d time.Duration) RevalidateOption {
	return func(c *revalidateConfig) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithStaleWhileRevalidate lets a found value be served for up to d past its
// TTL while one background fetch refreshes it. Not-found outcomes and entries
// from an invalidated generation are never served stale.
func WithStaleWhileRevalidate(d time.Duration) RevalidateOption {
	return func(c *revalidateConfig) {
		if d >= 0 {
			c.stale = d
		}
	}
}

// WithSingleFlight collapses concurrent misses for the same key, across
// requests, into one fetch.
func WithSingleFlight() RevalidateOption {
	return func(c *revalidateConfig) { c.collapse = true }
}

// WithRefreshTimeout bounds fetches that outlive the request that started
// them: background refreshes and collapsed single-flight fetches.
func WithRefreshTimeout(d time.Duration) RevalidateOption {
	return func(c *revalidateConfig) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

// WithLogger sets the logger used for store failures and background refresh
// errors.
func WithLogger(l *zap.Logger) RevalidateOption {
	return func(c *revalidateConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracerProvider sets the provider used for fetch spans. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) RevalidateOption {
	return func(c *revalidateConfig) { c.tp = tp }
}

// NewRevalidating creates the revalidating tier for ns. The namespace name is
// the entry tag.
func NewRevalidating[V any](ns Namespace, store Store, fetcher Fetcher[V], opts ...RevalidateOption) *Revalidating[V] {
	cfg := revalidateConfig{
		ttl:            DefaultRevalidateTTL,
		refreshTimeout: 10 * time.Second,
		logger:         zap.NewNop(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	tp := cfg.tp
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Revalidating[V]{
		ns:             ns,
		tag:            string(ns),
		store:          store,
		fetcher:        fetcher,
		codec:          JSONCodec[V]{},
		ttl:            cfg.ttl,
		stale:          cfg.stale,
		collapse:       cfg.collapse,
		refreshTimeout: cfg.refreshTimeout,
		logger:         cfg.logger.With(zap.String("namespace", string(ns))),
		tracer:         tp.Tracer("github.com/Keksclan/linkSquirrel/cache"),
		nowFunc:        time.Now,
	}
}

// TTL returns the freshness window.
func (r *Revalidating[V]) TTL() time.Duration { return r.ttl }

// Invalidate advances the tag generation. The next Resolve for every key of
// this namespace calls the fetcher again.
func (r *Revalidating[V]) Invalidate(ctx context.Context) error {
	gen, err := r.store.Bump(ctx, r.tag)
	if err != nil {
		return err
	}
	invalidationsTotal.WithLabelValues(r.tag).Inc()
	r.logger.Debug("tag invalidated", zap.String("tag", r.tag), zap.Uint64("generation", gen))
	return nil
}

// Resolve returns the cached outcome for key, calling the fetcher when there
// is none, it is older than the TTL, or its tag was invalidated.
func (r *Revalidating[V]) Resolve(ctx context.Context, key string) (V, bool, error) {
	raw, ok, gen, err := r.store.Load(ctx, r.storeKey(key), r.tag)
	if err != nil {
		r.logger.Warn("revalidate store load failed", zap.String("key", key), zap.Error(err))
		lookupsTotal.WithLabelValues(string(r.ns), tierRevalidate, "error").Inc()
		return r.fetch(ctx, key, 0, false)
	}

	if ok {
		if env, derr := decodeEnvelope(raw); derr == nil && env.Gen == gen {
			age := env.age(r.now())
			switch {
			case age < r.ttl:
				if v, found, ok := r.open(env); ok {
					lookupsTotal.WithLabelValues(string(r.ns), tierRevalidate, "hit").Inc()
					return v, found, nil
				}
			case env.Found && age < r.ttl+r.stale:
				if v, found, ok := r.open(env); ok {
					lookupsTotal.WithLabelValues(string(r.ns), tierRevalidate, "stale").Inc()
					r.refreshAsync(ctx, key, gen)
					return v, found, nil
				}
			}
		}
	}

	lookupsTotal.WithLabelValues(string(r.ns), tierRevalidate, "miss").Inc()
	if !r.collapse {
		return r.fetch(ctx, key, gen, true)
	}

	// The shared fetch must not inherit the cancellation of whichever caller
	// started it; each caller stops waiting on its own context instead.
	ch := r.sf.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.refreshTimeout)
		defer cancel()
		v, found, err := r.fetch(fctx, key, gen, true)
		return outcome[V]{val: v, found: found}, err
	})
	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		o := res.Val.(outcome[V])
		return o.val, o.found, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

type outcome[V any] struct {
	val   V
	found bool
}

// open decodes the value held by env. ok is false when the stored bytes can
// not be decoded, in which case the entry is treated as a miss.
func (r *Revalidating[V]) open(env envelope) (v V, found bool, ok bool) {
	if !env.Found {
		return v, false, true
	}
	v, err := r.codec.Unmarshal(env.Value)
	if err != nil {
		r.logger.Warn("discarding undecodable entry", zap.Error(err))
		return v, false, false
	}
	return v, true, true
}

// fetch calls the fetcher and, when persist is set, stores the outcome under
// the generation observed before the call. An invalidation racing the fetch
// leaves the stored entry on an old generation, so it is never served.
func (r *Revalidating[V]) fetch(ctx context.Context, key string, gen uint64, persist bool) (V, bool, error) {
	ctx, span := r.tracer.Start(ctx, "linksquirrel.fetch", trace.WithAttributes(
		attribute.String("linksquirrel.namespace", string(r.ns)),
		attribute.String("linksquirrel.key", key),
	))
	defer span.End()

	start := time.Now()
	v, found, err := r.fetcher.Fetch(ctx, key)
	fetchDuration.WithLabelValues(string(r.ns)).Observe(time.Since(start).Seconds())
	if err != nil {
		fetchTotal.WithLabelValues(string(r.ns), "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var zero V
		return zero, false, err
	}
	if found {
		fetchTotal.WithLabelValues(string(r.ns), "found").Inc()
	} else {
		fetchTotal.WithLabelValues(string(r.ns), "absent").Inc()
	}
	span.SetAttributes(attribute.Bool("linksquirrel.found", found))

	if persist {
		r.save(ctx, key, gen, v, found)
	}
	return v, found, nil
}

func (r *Revalidating[V]) save(ctx context.Context, key string, gen uint64, v V, found bool) {
	env := envelope{Gen: gen, StoredAt: r.now().UnixNano(), Found: found}
	if found {
		b, err := r.codec.Marshal(v)
		if err != nil {
			r.logger.Warn("encode entry failed", zap.String("key", key), zap.Error(err))
			return
		}
		env.Value = b
	}
	raw, err := encodeEnvelope(env)
	if err != nil {
		r.logger.Warn("encode envelope failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.store.Save(ctx, r.storeKey(key), raw, r.ttl+r.stale); err != nil {
		r.logger.Warn("revalidate store save failed", zap.String("key", key), zap.Error(err))
	}
}

// refreshAsync refetches key in the background. Concurrent refreshes of the
// same key share one fetch.
func (r *Revalidating[V]) refreshAsync(parent context.Context, key string, gen uint64) {
	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), r.refreshTimeout)
		defer cancel()
		_, err, _ := r.sf.Do(key, func() (any, error) {
			v, found, err := r.fetch(ctx, key, gen, true)
			return outcome[V]{val: v, found: found}, err
		})
		if err != nil {
			r.logger.Warn("background refresh failed", zap.String("key", key), zap.Error(err))
		}
	}()
}

func (r *Revalidating[V]) storeKey(key string) string {
	return string(r.ns) + ":" + key
}

func (r *Revalidating[V]) now() time.Time {
	if r.nowFunc != nil {
		return r.nowFunc()
	}
	return time.Now()
}
