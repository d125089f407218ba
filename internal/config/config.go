package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort     string
	RequestTimeout time.Duration

	UpstreamBaseURL   string
	UpstreamUserAgent string
	UpstreamTimeout   time.Duration

	GeocoderBaseURL   string
	GeocoderUserAgent string
	GeocoderTimeout   time.Duration
	GeocoderCacheSize int

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	RateLimitPerMinute int
	RateLimitBurst     int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	CoalesceTimeout time.Duration

	CacheBackend    string // "in_memory", "memcached", or "redis"
	CacheTTL        time.Duration
	CacheMaxEntries int

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int

	SessionSecret     string
	SessionCookieName string
	SessionMaxIdle    time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int
	ReadinessTimeout time.Duration

	WarmingEnabled   bool
	WarmingInterval  time.Duration
	TrackedLocations []TrackedLocation

	CORSOrigins []string

	ShutdownTimeout       time.Duration
	InFlightDrainTimeout  time.Duration
	InFlightCheckInterval time.Duration
}

// TrackedLocation is a location the cache warmer prefetches.
type TrackedLocation struct {
	City    string `yaml:"city"`
	Country string `yaml:"country"`
}

type fileConfig struct {
	Server struct {
		Port           string `yaml:"port"`
		RequestTimeout string `yaml:"request_timeout"`
	} `yaml:"server"`

	Upstream struct {
		BaseURL   string `yaml:"base_url"`
		UserAgent string `yaml:"user_agent"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"upstream"`

	Geocoder struct {
		BaseURL   string `yaml:"base_url"`
		UserAgent string `yaml:"user_agent"`
		Timeout   string `yaml:"timeout"`
		CacheSize int    `yaml:"cache_size"`
	} `yaml:"geocoder"`

	Reliability struct {
		RetryMaxAttempts   int    `yaml:"retry_max_attempts"`
		RetryBaseDelay     string `yaml:"retry_base_delay"`
		RetryMaxDelay      string `yaml:"retry_max_delay"`
		RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
		RateLimitBurst     int    `yaml:"rate_limit_burst"`
		CoalesceTimeout    string `yaml:"coalesce_timeout"`
		CircuitBreaker     struct {
			Enabled          bool   `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Cache struct {
		Backend    string `yaml:"backend"`
		TTL        string `yaml:"ttl"`
		MaxEntries int    `yaml:"max_entries"`
		Memcached  struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			Addr     string `yaml:"addr"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Session struct {
		CookieName string `yaml:"cookie_name"`
		MaxIdle    string `yaml:"max_idle"`
	} `yaml:"session"`

	Health struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
		ReadinessTimeout string `yaml:"readiness_timeout"`
	} `yaml:"health"`

	Warming struct {
		Enabled          bool              `yaml:"enabled"`
		Interval         string            `yaml:"interval"`
		TrackedLocations []TrackedLocation `yaml:"tracked_locations"`
	} `yaml:"warming"`

	CORS struct {
		Origins []string `yaml:"origins"`
	} `yaml:"cors"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightDrainTimeout  string `yaml:"inflight_drain_timeout"`
		InFlightCheckInterval string `yaml:"inflight_check_interval"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	SessionSecret string `yaml:"session_secret"`
}

// Load reads config/{ENV_NAME}.yaml (default dev) relative to the working
// directory, applies env overrides, and validates. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(filepath.Join(cwd, "config"))
}

// LoadFrom reads configuration from the given directory. Split out so tests
// can point it at a fixture directory.
func LoadFrom(dir string) (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(dir, env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = strings.TrimSpace(os.Getenv("PORT"))
	if cfg.ServerPort == "" {
		cfg.ServerPort = fc.Server.Port
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	cfg.RequestTimeout = parseDuration(fc.Server.RequestTimeout, 20*time.Second)

	cfg.UpstreamBaseURL = fc.Upstream.BaseURL
	if cfg.UpstreamBaseURL == "" {
		cfg.UpstreamBaseURL = "https://www.msn.com/en-us/weather/forecast/in-"
	}
	cfg.UpstreamUserAgent = fc.Upstream.UserAgent
	cfg.UpstreamTimeout = parseDuration(fc.Upstream.Timeout, 15*time.Second)

	cfg.GeocoderBaseURL = fc.Geocoder.BaseURL
	cfg.GeocoderUserAgent = fc.Geocoder.UserAgent
	if cfg.GeocoderUserAgent == "" {
		cfg.GeocoderUserAgent = "msn-weather-service/1.0"
	}
	cfg.GeocoderTimeout = parseDuration(fc.Geocoder.Timeout, 10*time.Second)
	cfg.GeocoderCacheSize = fc.Geocoder.CacheSize
	if cfg.GeocoderCacheSize <= 0 {
		cfg.GeocoderCacheSize = 256
	}

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 2*time.Second)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 10*time.Second)

	cfg.RateLimitPerMinute = fc.Reliability.RateLimitPerMinute
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 30
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = cfg.RateLimitPerMinute
	}

	cfg.CoalesceTimeout = parseDurationOrZero(fc.Reliability.CoalesceTimeout, 30*time.Second)

	cfg.CircuitBreakerEnabled = fc.Reliability.CircuitBreaker.Enabled
	cfg.CircuitBreakerFailureThreshold = fc.Reliability.CircuitBreaker.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = fc.Reliability.CircuitBreaker.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.Reliability.CircuitBreaker.Timeout, 30*time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 5*time.Minute)
	cfg.CacheMaxEntries = fc.Cache.MaxEntries
	if cfg.CacheMaxEntries <= 0 {
		cfg.CacheMaxEntries = 1000
	}

	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = strings.TrimSpace(fc.Cache.Redis.Addr)
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = fc.Cache.Redis.DB
	cfg.RedisPoolSize = fc.Cache.Redis.PoolSize

	cfg.SessionCookieName = fc.Session.CookieName
	if cfg.SessionCookieName == "" {
		cfg.SessionCookieName = "weather_session"
	}
	cfg.SessionMaxIdle = parseDuration(fc.Session.MaxIdle, time.Hour)
	secret, err := loadSessionSecret(dir)
	if err != nil {
		return nil, err
	}
	cfg.SessionSecret = secret

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}
	cfg.ReadinessTimeout = parseDuration(fc.Health.ReadinessTimeout, 2*time.Second)

	cfg.WarmingEnabled = fc.Warming.Enabled
	cfg.WarmingInterval = parseDuration(fc.Warming.Interval, 5*time.Minute)
	cfg.TrackedLocations = fc.Warming.TrackedLocations

	cfg.CORSOrigins = fc.CORS.Origins

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.InFlightDrainTimeout = parseDuration(fc.Shutdown.InFlightDrainTimeout, 10*time.Second)
	cfg.InFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSessionSecret resolves the cookie signing key: SESSION_SECRET env, then
// config/secrets.yaml, then a random per-process value. A random secret means
// cookies do not survive restarts, which only costs recent-search history.
func loadSessionSecret(dir string) (string, error) {
	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		return secret, nil
	}

	secretsPath := filepath.Join(dir, "secrets.yaml")
	data, err := os.ReadFile(secretsPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("read secrets file: %w", err)
		}
	} else {
		var sec secretsFile
		if err := yaml.Unmarshal(data, &sec); err != nil {
			return "", fmt.Errorf("parse secrets file: %w", err)
		}
		if sec.SessionSecret != "" {
			return sec.SessionSecret, nil
		}
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty
// string or parse error. Zero and negative values pass through, letting "0s"
// explicitly disable a feature.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load checks: backend enum, retry sanity, and
// request timeout covering the worst-case retry schedule.
func validate(cfg *Config) error {
	switch cfg.CacheBackend {
	case "in_memory", "memcached", "redis":
	default:
		return fmt.Errorf("cache.backend must be in_memory, memcached, or redis, got %q", cfg.CacheBackend)
	}

	if cfg.RetryBaseDelay > cfg.RetryMaxDelay {
		return fmt.Errorf("reliability.retry_base_delay %v exceeds retry_max_delay %v", cfg.RetryBaseDelay, cfg.RetryMaxDelay)
	}

	if cfg.RequestTimeout <= cfg.UpstreamTimeout {
		cfg.RequestTimeout = cfg.UpstreamTimeout + 5*time.Second
	}

	for _, loc := range cfg.TrackedLocations {
		if strings.TrimSpace(loc.City) == "" || strings.TrimSpace(loc.Country) == "" {
			return fmt.Errorf("warming.tracked_locations entries need both city and country")
		}
	}
	return nil
}
