package linkpage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Keksclan/linkSquirrel/cache"
	"github.com/Keksclan/linkSquirrel/contextx"
	"github.com/Keksclan/linkSquirrel/tracing"
)

// Namespaces of the two cached record kinds. They double as revalidation
// tags.
const (
	ProfileNamespace cache.Namespace = TagProfile
	AIPageNamespace  cache.Namespace = TagAIPage
)

// Memory tier capacities of the two namespaces.
const (
	ProfileCapacity = 10_000
	AIPageCapacity  = 5_000
)

// ProfileReader loads profiles. A missing profile is reported with
// found == false and a nil error.
type ProfileReader interface {
	FindProfile(ctx context.Context, username string) (p *Profile, found bool, err error)
}

// AIPageReader loads AI pages. A missing page is reported with
// found == false and a nil error.
type AIPageReader interface {
	FindAIPage(ctx context.Context, slug string) (p *AIPage, found bool, err error)
}

// ProfileStore is the persistence accessor for profiles.
type ProfileStore interface {
	ProfileReader
	SaveProfile(ctx context.Context, p *Profile) error
}

// AIPageStore is the persistence accessor for AI pages. DeleteAIPage returns
// an error wrapping ErrNotFound when the slug does not exist.
type AIPageStore interface {
	AIPageReader
	SaveAIPage(ctx context.Context, p *AIPage) error
	DeleteAIPage(ctx context.Context, slug string) error
}

// Service resolves public records through the layered cache and applies
// owner writes, invalidating the matching tag after each one.
//
// Records returned by GetProfile and GetAIPage are shared with the cache and
// must not be modified.
type Service struct {
	profiles     *cache.Resolver[*Profile]
	pages        *cache.Resolver[*AIPage]
	profileStore ProfileStore
	pageStore    AIPageStore

	lifecycle []any // tiers started and closed with the service
	logger    *zap.Logger
	nowFunc   func() time.Time
}

// Option configures a [Service].
type Option func(*serviceConfig)

type serviceConfig struct {
	store        cache.Store
	profileLocal cache.Local[*Profile]
	pageLocal    cache.Local[*AIPage]
	memOpts      []cache.MemoryOption
	revalOpts    []cache.RevalidateOption
	profileRead  ProfileReader
	pageRead     AIPageReader
	logger       *zap.Logger
}

// WithRevalidateStore sets the store behind both revalidating caches. The
// default is a process-local store.
func WithRevalidateStore(s cache.Store) Option {
	return func(c *serviceConfig) { c.store = s }
}

// WithLocalTiers replaces the default FIFO memory tiers, for example with
// ristretto-backed [cache.L1] tiers.
func WithLocalTiers(profiles cache.Local[*Profile], pages cache.Local[*AIPage]) Option {
	return func(c *serviceConfig) {
		c.profileLocal = profiles
		c.pageLocal = pages
	}
}

// WithMemoryOptions tunes the default memory tiers. Capacity options are
// applied after the per-namespace defaults.
func WithMemoryOptions(opts ...cache.MemoryOption) Option {
	return func(c *serviceConfig) { c.memOpts = append(c.memOpts, opts...) }
}

// WithRevalidateOptions tunes both revalidating caches.
func WithRevalidateOptions(opts ...cache.RevalidateOption) Option {
	return func(c *serviceConfig) { c.revalOpts = append(c.revalOpts, opts...) }
}

// WithReadAccessors routes cache misses to the given readers instead of the
// write stores. Ownership checks on the write paths always read from the
// write stores.
func WithReadAccessors(profiles ProfileReader, pages AIPageReader) Option {
	return func(c *serviceConfig) {
		c.profileRead = profiles
		c.pageRead = pages
	}
}

// WithLogger sets the service logger. It is also handed to the revalidating
// caches.
func WithLogger(l *zap.Logger) Option {
	return func(c *serviceConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewService wires the profile and AI page caches over the given stores.
func NewService(profiles ProfileStore, pages AIPageStore, opts ...Option) *Service {
	cfg := serviceConfig{logger: zap.NewNop()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.store == nil {
		cfg.store = cache.NewLocalStore()
	}
	if cfg.profileRead == nil {
		cfg.profileRead = profiles
	}
	if cfg.pageRead == nil {
		cfg.pageRead = pages
	}

	s := &Service{
		profileStore: profiles,
		pageStore:    pages,
		logger:       cfg.logger,
		nowFunc:      time.Now,
	}

	if cfg.profileLocal == nil {
		cfg.profileLocal = cache.NewMemory[*Profile](ProfileNamespace,
			append([]cache.MemoryOption{cache.WithMaxEntries(ProfileCapacity)}, cfg.memOpts...)...)
	}
	if cfg.pageLocal == nil {
		cfg.pageLocal = cache.NewMemory[*AIPage](AIPageNamespace,
			append([]cache.MemoryOption{cache.WithMaxEntries(AIPageCapacity)}, cfg.memOpts...)...)
	}
	s.lifecycle = []any{cfg.profileLocal, cfg.pageLocal, cfg.store}

	revalOpts := append([]cache.RevalidateOption{cache.WithLogger(cfg.logger)}, cfg.revalOpts...)
	s.profiles = cache.NewResolver(cfg.profileLocal, cache.NewRevalidating[*Profile](
		ProfileNamespace, cfg.store, cache.FetchFunc[*Profile](cfg.profileRead.FindProfile), revalOpts...))
	s.pages = cache.NewResolver(cfg.pageLocal, cache.NewRevalidating[*AIPage](
		AIPageNamespace, cfg.store, cache.FetchFunc[*AIPage](cfg.pageRead.FindAIPage), revalOpts...))
	return s
}

// Start launches the periodic sweeps of the memory tiers and of an in-process
// revalidation store. They stop when ctx is done or Close is called.
func (s *Service) Start(ctx context.Context) {
	for _, t := range s.lifecycle {
		if st, ok := t.(interface{ Start(context.Context) }); ok {
			st.Start(ctx)
		}
	}
}

// Close stops the sweeps started by Start.
func (s *Service) Close() {
	for _, t := range s.lifecycle {
		if c, ok := t.(interface{ Close() }); ok {
			c.Close()
		}
	}
}

// GetProfile returns the profile of username, or nil when none exists.
// Persistence errors are returned unchanged.
func (s *Service) GetProfile(ctx context.Context, username string) (_ *Profile, err error) {
	username = NormalizeKey(username)
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	ctx, span := tracing.Start(ctx, "linkpage.GetProfile", attribute.String("linkpage.username", username))
	defer func() { tracing.End(span, err) }()

	p, found, err := s.profiles.Get(ctx, username)
	span.SetAttributes(attribute.Bool("linkpage.found", found))
	if err != nil || !found {
		return nil, err
	}
	return p, nil
}

// GetAIPage returns the AI page addressed by slug, or nil when none exists.
// Persistence errors are returned unchanged.
func (s *Service) GetAIPage(ctx context.Context, slug string) (_ *AIPage, err error) {
	slug = NormalizeKey(slug)
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}
	ctx, span := tracing.Start(ctx, "linkpage.GetAIPage", attribute.String("linkpage.slug", slug))
	defer func() { tracing.End(span, err) }()

	p, found, err := s.pages.Get(ctx, slug)
	span.SetAttributes(attribute.Bool("linkpage.found", found))
	if err != nil || !found {
		return nil, err
	}
	return p, nil
}

// InvalidateTag expires every revalidating entry carrying tag. Entries
// already copied into the memory tier remain until their own TTL elapses.
func (s *Service) InvalidateTag(ctx context.Context, tag string) error {
	switch tag {
	case TagProfile:
		return s.profiles.Invalidate(ctx)
	case TagAIPage:
		return s.pages.Invalidate(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}
}

// SaveProfile creates or replaces the profile of p.Username. Only the owner
// (or an admin) may write it. Links are re-numbered in their current order.
func (s *Service) SaveProfile(ctx context.Context, actor contextx.Actor, p *Profile) error {
	if p == nil {
		return fmt.Errorf("%w: empty profile", ErrInvalidRecord)
	}
	p.Username = NormalizeKey(p.Username)
	if err := ValidateUsername(p.Username); err != nil {
		return err
	}
	if !actor.Admin && actor.Username != p.Username {
		return ErrForbidden
	}

	normalizeLinks(p.Links)
	if err := validateRecord(p); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.UpdatedAt = s.nowFunc().UTC()

	if err := s.profileStore.SaveProfile(ctx, p); err != nil {
		return fmt.Errorf("save profile %q: %w", p.Username, err)
	}
	s.invalidateAfterWrite(ctx, TagProfile)
	return nil
}

// SaveAIPage creates or replaces the AI page at p.Slug. A new page is owned
// by the actor; an existing page may only be replaced by its owner or an
// admin.
func (s *Service) SaveAIPage(ctx context.Context, actor contextx.Actor, p *AIPage) error {
	if p == nil {
		return fmt.Errorf("%w: empty page", ErrInvalidRecord)
	}
	p.Slug = NormalizeKey(p.Slug)
	if err := ValidateSlug(p.Slug); err != nil {
		return err
	}

	existing, found, err := s.pageStore.FindAIPage(ctx, p.Slug)
	if err != nil {
		return fmt.Errorf("load ai page %q: %w", p.Slug, err)
	}
	switch {
	case found:
		if !actor.Admin && existing.OwnerUsername != actor.Username {
			return ErrForbidden
		}
		p.ID = existing.ID
		p.OwnerUsername = existing.OwnerUsername
	case actor.Admin && p.OwnerUsername != "":
		p.OwnerUsername = NormalizeKey(p.OwnerUsername)
	case actor.Username == "":
		return ErrForbidden
	default:
		p.OwnerUsername = actor.Username
	}

	if err := validateRecord(p); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.UpdatedAt = s.nowFunc().UTC()

	if err := s.pageStore.SaveAIPage(ctx, p); err != nil {
		return fmt.Errorf("save ai page %q: %w", p.Slug, err)
	}
	s.invalidateAfterWrite(ctx, TagAIPage)
	return nil
}

// DeleteAIPage removes the AI page at slug. Only its owner or an admin may
// delete it.
func (s *Service) DeleteAIPage(ctx context.Context, actor contextx.Actor, slug string) error {
	slug = NormalizeKey(slug)
	if err := ValidateSlug(slug); err != nil {
		return err
	}

	existing, found, err := s.pageStore.FindAIPage(ctx, slug)
	if err != nil {
		return fmt.Errorf("load ai page %q: %w", slug, err)
	}
	if !found {
		return ErrNotFound
	}
	if !actor.Admin && existing.OwnerUsername != actor.Username {
		return ErrForbidden
	}

	if err := s.pageStore.DeleteAIPage(ctx, slug); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete ai page %q: %w", slug, err)
	}
	s.invalidateAfterWrite(ctx, TagAIPage)
	return nil
}

// invalidateAfterWrite expires the tag of a committed write. A failure is
// logged and not returned: the write stands and the entry ages out within
// the revalidation TTL.
func (s *Service) invalidateAfterWrite(ctx context.Context, tag string) {
	if err := s.InvalidateTag(ctx, tag); err != nil {
		s.logger.Warn("invalidate after write failed",
			zap.String("tag", tag),
			zap.String("request_id", contextx.RequestIDFromContext(ctx)),
			zap.Error(err),
		)
	}
}

// normalizeLinks orders links by Position, keeping the submitted order for
// ties, and re-numbers them from zero.
func normalizeLinks(links []Link) {
	slices.SortStableFunc(links, func(a, b Link) int { return a.Position - b.Position })
	for i := range links {
		links[i].Position = i
		if links[i].ID == "" {
			links[i].ID = uuid.NewString()
		}
	}
}
