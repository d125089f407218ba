//go:build integration
// +build integration

package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mwesner/msn-weather-service/internal/cache"
	"github.com/mwesner/msn-weather-service/internal/client"
	"github.com/mwesner/msn-weather-service/internal/geocode"
	"github.com/mwesner/msn-weather-service/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests running
// against real backends.
type IntegrationTestConfig struct {
	UpstreamBaseURL string
	CacheBackend    string // "in_memory", "memcached", or "redis"
	MemcachedAddr   string
	RedisAddr       string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test unless INTEGRATION_UPSTREAM_URL points at a reachable
// upstream (the real MSN page or a fixture server).
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	upstream := os.Getenv("INTEGRATION_UPSTREAM_URL")
	if upstream == "" {
		t.Skip("INTEGRATION_UPSTREAM_URL not set, skipping integration test")
	}

	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	return IntegrationTestConfig{
		UpstreamBaseURL: upstream,
		CacheBackend:    os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr:   memcachedAddr,
		RedisAddr:       redisAddr,
	}
}

// SetupIntegrationService creates a fully wired weather service for
// integration tests. Returns the service, its cache, and a cleanup function.
// Falls back to the in-memory backend when the requested one is unreachable.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.WeatherService, cache.Cache, func()) {
	weatherClient := client.NewMSNClient(cfg.UpstreamBaseURL, "", 15*time.Second)
	geocoder := geocode.NewNominatimClient("", "msn-weather-service-tests/1.0", 10*time.Second)

	clock := clockwork.NewRealClock()
	var store cache.Cache
	backend := cfg.CacheBackend
	cleanup := func() {}

	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache([]string{cfg.MemcachedAddr}, 500*time.Millisecond, 2)
		if err != nil {
			t.Logf("memcached not available (%v), using in-memory cache", err)
			store, backend = cache.NewMemoryCache(1000, clock), "in_memory"
		} else {
			store = mc
			cleanup = func() { _ = mc.Close() }
		}
	case "redis":
		rc, err := cache.NewRedisCache(context.Background(), cfg.RedisAddr, "", 0, 5)
		if err != nil {
			t.Logf("redis not available (%v), using in-memory cache", err)
			store, backend = cache.NewMemoryCache(1000, clock), "in_memory"
		} else {
			store = rc
			cleanup = func() { _ = rc.Close() }
		}
	default:
		store, backend = cache.NewMemoryCache(1000, clock), "in_memory"
	}

	svc := service.NewWeatherService(weatherClient, store, backend, geocoder, 5*time.Minute, clock, 30*time.Second)
	return svc, store, cleanup
}
