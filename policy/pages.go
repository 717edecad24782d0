package policy

import "time"

// Operation names of the Pages service.
const (
	PagesService = "/linksquirrel.Pages/"

	OpGetProfile    = PagesService + "GetProfile"
	OpGetAIPage     = PagesService + "GetAIPage"
	OpSaveProfile   = PagesService + "SaveProfile"
	OpSaveAIPage    = PagesService + "SaveAIPage"
	OpDeleteAIPage  = PagesService + "DeleteAIPage"
	OpInvalidateTag = PagesService + "InvalidateTag"
)

// PagesConfig tunes the default Pages policy set.
type PagesConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// WriteRate limits all creator writes together.
	WriteRate RateLimitRule
}

// DefaultPagesConfig returns the limits used when nothing is configured.
func DefaultPagesConfig() PagesConfig {
	return PagesConfig{
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 5 * time.Second,
		WriteRate:    RateLimitRule{Rate: 60, Window: time.Minute},
	}
}

// Pages returns the policy set for the Pages service. Operations it does not
// name fall back to the service-wide prefix group, which is public.
func Pages(cfg PagesConfig) *Resolver {
	write := cfg.WriteRate
	return NewResolver(
		Group("pages").
			Prefix(PagesService).
			Policy(Policy{Timeout: cfg.ReadTimeout}),
		Group("reads").
			Exact(OpGetProfile, OpGetAIPage).
			Policy(Policy{Timeout: cfg.ReadTimeout}),
		Group("writes").
			Exact(OpSaveProfile, OpSaveAIPage, OpDeleteAIPage).
			Policy(Policy{Timeout: cfg.WriteTimeout, Access: Authenticated, RateLimit: &write}),
		Group("admin").
			Exact(OpInvalidateTag).
			Policy(Policy{Timeout: cfg.WriteTimeout, Access: Admin}),
	)
}
