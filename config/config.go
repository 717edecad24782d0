// Package config loads the process configuration. Values are layered:
// built-in defaults, then an optional YAML file, then environment variables
// (after loading a .env file when present). The result is validated before
// it is returned.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete process configuration.
type Config struct {
	Env             string        `yaml:"env" validate:"oneof=development production test"`
	GRPCAddr        string        `yaml:"grpc_addr" validate:"required"`
	HTTPAddr        string        `yaml:"http_addr" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`

	Log       Log       `yaml:"log"`
	Cache     Cache     `yaml:"cache"`
	Database  Database  `yaml:"database"`
	Redis     Redis     `yaml:"redis"`
	Auth      Auth      `yaml:"auth"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Tracing   Tracing   `yaml:"tracing"`
	Sentry    Sentry    `yaml:"sentry"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// Cache configures both cache tiers.
type Cache struct {
	// MemoryTier selects the process memory tier: "fifo" (bounded by
	// insertion order) or "ristretto" (admission-based).
	MemoryTier      string        `yaml:"memory_tier" validate:"oneof=fifo ristretto"`
	MemoryTTL       time.Duration `yaml:"memory_ttl" validate:"gt=0"`
	SweepInterval   time.Duration `yaml:"sweep_interval" validate:"gt=0"`
	ProfileCapacity int           `yaml:"profile_capacity" validate:"gt=0"`
	AIPageCapacity  int           `yaml:"ai_page_capacity" validate:"gt=0"`

	RevalidateTTL        time.Duration `yaml:"revalidate_ttl" validate:"gt=0"`
	StaleWhileRevalidate time.Duration `yaml:"stale_while_revalidate" validate:"gte=0"`
	SingleFlight         bool          `yaml:"single_flight"`
	// RefreshTimeout bounds fetches detached from their request: background
	// refreshes and collapsed single-flight fetches.
	RefreshTimeout time.Duration `yaml:"refresh_timeout" validate:"gt=0"`
}

// Database configures the persistence accessor. An empty URL selects the
// in-process store.
type Database struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns" validate:"gte=0"`
	Migrate      bool   `yaml:"migrate"`
	// LenientReads reports read failures as not found instead of errors.
	LenientReads bool `yaml:"lenient_reads"`
}

// Redis configures the revalidating tier backend. An empty Addr selects the
// in-process store.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix"`
}

// Auth configures write and admin authentication.
type Auth struct {
	JWTSecret  string `yaml:"jwt_secret"`
	JWTIssuer  string `yaml:"jwt_issuer"`
	AdminToken string `yaml:"admin_token"`
}

// RateLimit configures request rate limits. Zero rates disable a limiter.
type RateLimit struct {
	GlobalRPS   float64 `yaml:"global_rps" validate:"gte=0"`
	GlobalBurst int     `yaml:"global_burst" validate:"gte=0"`
	PerIPRPS    float64 `yaml:"per_ip_rps" validate:"gte=0"`
	PerIPBurst  int     `yaml:"per_ip_burst" validate:"gte=0"`
	// TrustedProxies lists CIDRs whose forwarding headers are believed.
	TrustedProxies []string `yaml:"trusted_proxies" validate:"dive,cidr|ip"`
}

// Tracing configures the OpenTelemetry exporter.
type Tracing struct {
	Exporter    string  `yaml:"exporter" validate:"oneof=none stdout otlp"`
	Endpoint    string  `yaml:"endpoint" validate:"required_if=Exporter otlp"`
	SampleRatio float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`
}

// Sentry configures error reporting. An empty DSN disables it.
type Sentry struct {
	DSN     string `yaml:"dsn" validate:"omitempty,url"`
	Release string `yaml:"release"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Env:             "development",
		GRPCAddr:        ":9090",
		HTTPAddr:        ":8080",
		ShutdownTimeout: 10 * time.Second,
		Log:             Log{Level: "info", Format: "console"},
		Cache: Cache{
			MemoryTier:      "fifo",
			MemoryTTL:       300 * time.Second,
			SweepInterval:   60 * time.Second,
			ProfileCapacity: 10_000,
			AIPageCapacity:  5_000,
			RevalidateTTL:   60 * time.Second,
			RefreshTimeout:  10 * time.Second,
		},
		Database: Database{MaxOpenConns: 10},
		Redis:    Redis{Prefix: "linksquirrel:"},
		RateLimit: RateLimit{
			GlobalRPS:   500,
			GlobalBurst: 1000,
			PerIPRPS:    10,
			PerIPBurst:  20,
		},
		Tracing: Tracing{Exporter: "none", SampleRatio: 0.1},
		Sentry:  Sentry{Release: "dev"},
	}
}

// Load builds the configuration. path names an optional YAML file; a
// missing file is not an error when path is empty or does not exist.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	// Existing environment variables win over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg and reports every violation.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
}
