package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// envPrefix is prepended to every variable name below.
const envPrefix = "LINKSQUIRREL_"

type setter func(cfg *Config, v string) error

func str(field func(*Config) *string) setter {
	return func(cfg *Config, v string) error {
		*field(cfg) = strings.TrimSpace(v)
		return nil
	}
}

func integer(field func(*Config) *int) setter {
	return func(cfg *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}
}

func float(field func(*Config) *float64) setter {
	return func(cfg *Config, v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return err
		}
		*field(cfg) = f
		return nil
	}
}

func boolean(field func(*Config) *bool) setter {
	return func(cfg *Config, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}
}

func list(field func(*Config) *[]string) setter {
	return func(cfg *Config, v string) error {
		var out []string
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*field(cfg) = out
		return nil
	}
}

func duration(field func(*Config) *time.Duration) setter {
	return func(cfg *Config, v string) error {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*field(cfg) = d
		return nil
	}
}

var envVars = map[string]setter{
	"ENV":              str(func(c *Config) *string { return &c.Env }),
	"GRPC_ADDR":        str(func(c *Config) *string { return &c.GRPCAddr }),
	"HTTP_ADDR":        str(func(c *Config) *string { return &c.HTTPAddr }),
	"SHUTDOWN_TIMEOUT": duration(func(c *Config) *time.Duration { return &c.ShutdownTimeout }),

	"LOG_LEVEL":  str(func(c *Config) *string { return &c.Log.Level }),
	"LOG_FORMAT": str(func(c *Config) *string { return &c.Log.Format }),

	"CACHE_MEMORY_TIER":            str(func(c *Config) *string { return &c.Cache.MemoryTier }),
	"CACHE_MEMORY_TTL":             duration(func(c *Config) *time.Duration { return &c.Cache.MemoryTTL }),
	"CACHE_SWEEP_INTERVAL":         duration(func(c *Config) *time.Duration { return &c.Cache.SweepInterval }),
	"CACHE_PROFILE_CAPACITY":       integer(func(c *Config) *int { return &c.Cache.ProfileCapacity }),
	"CACHE_AI_PAGE_CAPACITY":       integer(func(c *Config) *int { return &c.Cache.AIPageCapacity }),
	"CACHE_REVALIDATE_TTL":         duration(func(c *Config) *time.Duration { return &c.Cache.RevalidateTTL }),
	"CACHE_STALE_WHILE_REVALIDATE": duration(func(c *Config) *time.Duration { return &c.Cache.StaleWhileRevalidate }),
	"CACHE_SINGLE_FLIGHT":          boolean(func(c *Config) *bool { return &c.Cache.SingleFlight }),
	"CACHE_REFRESH_TIMEOUT":        duration(func(c *Config) *time.Duration { return &c.Cache.RefreshTimeout }),

	"DATABASE_URL":            str(func(c *Config) *string { return &c.Database.URL }),
	"DATABASE_MAX_OPEN_CONNS": integer(func(c *Config) *int { return &c.Database.MaxOpenConns }),
	"DATABASE_MIGRATE":        boolean(func(c *Config) *bool { return &c.Database.Migrate }),
	"DATABASE_LENIENT_READS":  boolean(func(c *Config) *bool { return &c.Database.LenientReads }),

	"REDIS_ADDR":     str(func(c *Config) *string { return &c.Redis.Addr }),
	"REDIS_PASSWORD": str(func(c *Config) *string { return &c.Redis.Password }),
	"REDIS_DB":       integer(func(c *Config) *int { return &c.Redis.DB }),
	"REDIS_PREFIX":   str(func(c *Config) *string { return &c.Redis.Prefix }),

	"JWT_SECRET":  str(func(c *Config) *string { return &c.Auth.JWTSecret }),
	"JWT_ISSUER":  str(func(c *Config) *string { return &c.Auth.JWTIssuer }),
	"ADMIN_TOKEN": str(func(c *Config) *string { return &c.Auth.AdminToken }),

	"RATE_LIMIT_GLOBAL_RPS":   float(func(c *Config) *float64 { return &c.RateLimit.GlobalRPS }),
	"RATE_LIMIT_GLOBAL_BURST": integer(func(c *Config) *int { return &c.RateLimit.GlobalBurst }),
	"RATE_LIMIT_PER_IP_RPS":   float(func(c *Config) *float64 { return &c.RateLimit.PerIPRPS }),
	"RATE_LIMIT_PER_IP_BURST": integer(func(c *Config) *int { return &c.RateLimit.PerIPBurst }),
	"TRUSTED_PROXIES":         list(func(c *Config) *[]string { return &c.RateLimit.TrustedProxies }),

	"TRACING_EXPORTER":     str(func(c *Config) *string { return &c.Tracing.Exporter }),
	"TRACING_ENDPOINT":     str(func(c *Config) *string { return &c.Tracing.Endpoint }),
	"TRACING_SAMPLE_RATIO": float(func(c *Config) *float64 { return &c.Tracing.SampleRatio }),

	"SENTRY_DSN":     str(func(c *Config) *string { return &c.Sentry.DSN }),
	"SENTRY_RELEASE": str(func(c *Config) *string { return &c.Sentry.Release }),
}

// applyEnv overlays LINKSQUIRREL_* variables found by lookup onto cfg.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for name, set := range envVars {
		v, ok := lookup(envPrefix + name)
		if !ok {
			continue
		}
		if err := set(cfg, v); err != nil {
			return fmt.Errorf("config: %s%s: %w", envPrefix, name, err)
		}
	}
	return nil
}
