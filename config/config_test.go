package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("Default() is invalid: %v", err)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "linksquirrel.yaml")
	yml := `
env: production
grpc_addr: ":7000"
cache:
  memory_tier: ristretto
  revalidate_ttl: 90s
  stale_while_revalidate: 30s
redis:
  addr: "redis:6379"
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir) // no .env here
	t.Setenv("LINKSQUIRREL_GRPC_ADDR", ":7001")
	t.Setenv("LINKSQUIRREL_CACHE_SINGLE_FLIGHT", "true")
	t.Setenv("LINKSQUIRREL_CACHE_REFRESH_TIMEOUT", "3s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != "production" || cfg.Cache.MemoryTier != "ristretto" {
		t.Fatalf("YAML not applied: %+v", cfg)
	}
	if cfg.Cache.RevalidateTTL != 90*time.Second || cfg.Cache.StaleWhileRevalidate != 30*time.Second {
		t.Fatalf("durations = %v / %v", cfg.Cache.RevalidateTTL, cfg.Cache.StaleWhileRevalidate)
	}
	if cfg.GRPCAddr != ":7001" {
		t.Fatalf("GRPCAddr = %q, want env override", cfg.GRPCAddr)
	}
	if !cfg.Cache.SingleFlight {
		t.Fatal("expected env to enable single flight")
	}
	if cfg.Cache.RefreshTimeout != 3*time.Second {
		t.Fatalf("RefreshTimeout = %v, want env override", cfg.Cache.RefreshTimeout)
	}
	if cfg.Cache.MemoryTTL != 300*time.Second {
		t.Fatalf("MemoryTTL = %v, want default", cfg.Cache.MemoryTTL)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("LINKSQUIRREL_HTTP_ADDR=:8181\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Cleanup(func() { os.Unsetenv("LINKSQUIRREL_HTTP_ADDR") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8181" {
		t.Fatalf("HTTPAddr = %q, want value from .env", cfg.HTTPAddr)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LINKSQUIRREL_CACHE_MEMORY_TIER", "lru")
	t.Setenv("LINKSQUIRREL_TRACING_EXPORTER", "otlp")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"MemoryTier", "Endpoint"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LINKSQUIRREL_CACHE_MEMORY_TTL", "five minutes")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "CACHE_MEMORY_TTL") {
		t.Fatalf("got %v, want error naming the variable", err)
	}
}

func TestLoadRejectsUnknownYAMLField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.yaml")
	if err := os.WriteFile(path, []byte("cache:\n  memroy_ttl: 1s\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadTrustedProxiesFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LINKSQUIRREL_TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1,")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"10.0.0.0/8", "127.0.0.1"}
	if len(cfg.RateLimit.TrustedProxies) != len(want) {
		t.Fatalf("TrustedProxies = %v, want %v", cfg.RateLimit.TrustedProxies, want)
	}
	for i := range want {
		if cfg.RateLimit.TrustedProxies[i] != want[i] {
			t.Fatalf("TrustedProxies = %v, want %v", cfg.RateLimit.TrustedProxies, want)
		}
	}

	t.Setenv("LINKSQUIRREL_TRUSTED_PROXIES", "proxy.local")
	if _, err := Load(""); err == nil {
		t.Fatal("expected a hostname to be rejected")
	}
}
