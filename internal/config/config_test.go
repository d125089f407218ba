package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "dev.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}
	return dir
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"ENV_NAME", "PORT", "CACHE_BACKEND", "MEMCACHED_ADDRS", "REDIS_ADDR", "SESSION_SECRET"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	clearEnv(t)
	dir := writeConfig(t, "server:\n  port: \"9000\"\n")

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.ServerPort != "9000" {
		t.Errorf("ServerPort = %q, want 9000", cfg.ServerPort)
	}
	if cfg.CacheBackend != "in_memory" {
		t.Errorf("CacheBackend = %q, want in_memory", cfg.CacheBackend)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
	}
	if cfg.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", cfg.RetryAttempts)
	}
	if cfg.RetryBaseDelay != 2*time.Second || cfg.RetryMaxDelay != 10*time.Second {
		t.Errorf("retry delays = %v/%v, want 2s/10s", cfg.RetryBaseDelay, cfg.RetryMaxDelay)
	}
	if cfg.RateLimitPerMinute != 30 {
		t.Errorf("RateLimitPerMinute = %d, want 30", cfg.RateLimitPerMinute)
	}
	if !strings.HasPrefix(cfg.UpstreamBaseURL, "https://www.msn.com/") {
		t.Errorf("UpstreamBaseURL = %q, want msn.com default", cfg.UpstreamBaseURL)
	}
	if cfg.SessionSecret == "" {
		t.Error("SessionSecret empty, want generated fallback")
	}
	if cfg.SessionCookieName != "weather_session" {
		t.Errorf("SessionCookieName = %q, want weather_session", cfg.SessionCookieName)
	}
	if cfg.GeocoderCacheSize != 256 {
		t.Errorf("GeocoderCacheSize = %d, want 256", cfg.GeocoderCacheSize)
	}
}

func TestLoadFrom_FullFile(t *testing.T) {
	clearEnv(t)
	dir := writeConfig(t, `
server:
  port: "8081"
  request_timeout: 25s
upstream:
  base_url: "https://upstream.test/in-"
  timeout: 5s
geocoder:
  base_url: "https://geo.test/reverse"
  cache_size: 64
reliability:
  retry_max_attempts: 5
  retry_base_delay: 1s
  retry_max_delay: 8s
  rate_limit_per_minute: 60
  rate_limit_burst: 10
  circuit_breaker:
    enabled: true
    failure_threshold: 4
    success_threshold: 3
    timeout: 45s
cache:
  backend: redis
  ttl: 10m
  redis:
    addr: "redis.test:6379"
    db: 2
    pool_size: 20
session:
  cookie_name: sess
  max_idle: 30m
health:
  degraded_window: 2m
  degraded_error_pct: 25
warming:
  enabled: true
  interval: 3m
  tracked_locations:
    - city: Seattle
      country: USA
cors:
  origins:
    - "https://app.test"
shutdown:
  timeout: 15s
`)

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.ServerPort != "8081" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.UpstreamBaseURL != "https://upstream.test/in-" {
		t.Errorf("UpstreamBaseURL = %q", cfg.UpstreamBaseURL)
	}
	if cfg.RetryAttempts != 5 || cfg.RetryBaseDelay != time.Second || cfg.RetryMaxDelay != 8*time.Second {
		t.Errorf("retry = %d/%v/%v", cfg.RetryAttempts, cfg.RetryBaseDelay, cfg.RetryMaxDelay)
	}
	if !cfg.CircuitBreakerEnabled || cfg.CircuitBreakerFailureThreshold != 4 || cfg.CircuitBreakerTimeout != 45*time.Second {
		t.Errorf("circuit breaker = %+v", cfg)
	}
	if cfg.CacheBackend != "redis" || cfg.RedisAddr != "redis.test:6379" || cfg.RedisDB != 2 {
		t.Errorf("redis = %q %q %d", cfg.CacheBackend, cfg.RedisAddr, cfg.RedisDB)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("CacheTTL = %v", cfg.CacheTTL)
	}
	if cfg.SessionCookieName != "sess" || cfg.SessionMaxIdle != 30*time.Minute {
		t.Errorf("session = %q %v", cfg.SessionCookieName, cfg.SessionMaxIdle)
	}
	if cfg.DegradedWindow != 2*time.Minute || cfg.DegradedErrorPct != 25 {
		t.Errorf("health = %v %d", cfg.DegradedWindow, cfg.DegradedErrorPct)
	}
	if !cfg.WarmingEnabled || len(cfg.TrackedLocations) != 1 || cfg.TrackedLocations[0].City != "Seattle" {
		t.Errorf("warming = %v %v", cfg.WarmingEnabled, cfg.TrackedLocations)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "https://app.test" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := writeConfig(t, "server:\n  port: \"8080\"\ncache:\n  backend: in_memory\n")

	t.Setenv("PORT", "7777")
	t.Setenv("CACHE_BACKEND", "memcached")
	t.Setenv("MEMCACHED_ADDRS", "mc1:11211")
	t.Setenv("SESSION_SECRET", "from-env")

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.ServerPort != "7777" {
		t.Errorf("ServerPort = %q, want env override 7777", cfg.ServerPort)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want memcached", cfg.CacheBackend)
	}
	if cfg.MemcachedAddrs != "mc1:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
	if cfg.SessionSecret != "from-env" {
		t.Errorf("SessionSecret = %q, want from-env", cfg.SessionSecret)
	}
}

func TestLoadFrom_SecretsFile(t *testing.T) {
	clearEnv(t)
	dir := writeConfig(t, "server:\n  port: \"8080\"\n")
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), []byte("session_secret: from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.SessionSecret != "from-file" {
		t.Errorf("SessionSecret = %q, want from-file", cfg.SessionSecret)
	}
}

func TestLoadFrom_InvalidBackend(t *testing.T) {
	clearEnv(t)
	dir := writeConfig(t, "cache:\n  backend: dynamo\n")

	if _, err := LoadFrom(dir); err == nil {
		t.Error("LoadFrom() expected error for unknown cache backend")
	}
}

func TestLoadFrom_RetryDelayOrdering(t *testing.T) {
	clearEnv(t)
	dir := writeConfig(t, "reliability:\n  retry_base_delay: 10s\n  retry_max_delay: 2s\n")

	if _, err := LoadFrom(dir); err == nil {
		t.Error("LoadFrom() expected error for base delay > max delay")
	}
}

func TestLoadFrom_TrackedLocationValidation(t *testing.T) {
	clearEnv(t)
	dir := writeConfig(t, `
warming:
  enabled: true
  tracked_locations:
    - city: Seattle
      country: ""
`)

	if _, err := LoadFrom(dir); err == nil {
		t.Error("LoadFrom() expected error for tracked location missing country")
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := LoadFrom(t.TempDir()); err == nil {
		t.Error("LoadFrom() expected error for missing config file")
	}
}

func TestLoadFrom_RequestTimeoutCoversUpstream(t *testing.T) {
	clearEnv(t)
	dir := writeConfig(t, "server:\n  request_timeout: 5s\nupstream:\n  timeout: 15s\n")

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.RequestTimeout <= cfg.UpstreamTimeout {
		t.Errorf("RequestTimeout = %v not raised above UpstreamTimeout %v", cfg.RequestTimeout, cfg.UpstreamTimeout)
	}
}
