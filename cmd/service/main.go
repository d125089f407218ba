package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/mwesner/msn-weather-service/internal/cache"
	"github.com/mwesner/msn-weather-service/internal/circuitbreaker"
	"github.com/mwesner/msn-weather-service/internal/client"
	"github.com/mwesner/msn-weather-service/internal/config"
	"github.com/mwesner/msn-weather-service/internal/geocode"
	httphandler "github.com/mwesner/msn-weather-service/internal/http"
	"github.com/mwesner/msn-weather-service/internal/lifecycle"
	"github.com/mwesner/msn-weather-service/internal/models"
	"github.com/mwesner/msn-weather-service/internal/observability"
	"github.com/mwesner/msn-weather-service/internal/search"
	"github.com/mwesner/msn-weather-service/internal/service"
)

const version = "1.0"

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherClient := client.NewMSNClientWithRetry(
		cfg.UpstreamBaseURL,
		cfg.UpstreamUserAgent,
		cfg.UpstreamTimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)

	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        "upstream",
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition("upstream", from.String(), to.String())
				observability.SetCircuitBreakerStateGauge("upstream", float64(to))
			},
		})
		weatherClient.SetCircuitBreaker(cb)
		observability.SetCircuitBreakerStateGauge("upstream", 0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	var geocoder geocode.Geocoder = geocode.NewNominatimClient(cfg.GeocoderBaseURL, cfg.GeocoderUserAgent, cfg.GeocoderTimeout)
	geocoder = geocode.NewCachedGeocoder(geocoder, cfg.GeocoderCacheSize)

	clock := clockwork.NewRealClock()

	var weatherCache cache.Cache
	var cachePing func(ctx context.Context) error
	var cacheClose func() error
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(splitAddrs(cfg.MemcachedAddrs), cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		weatherCache = mc
		cachePing = mc.Ping
		cacheClose = mc.Close
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	case "redis":
		rc, err := cache.NewRedisCache(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPoolSize)
		if err != nil {
			logger.Fatal("redis cache", zap.Error(err))
		}
		weatherCache = rc
		cachePing = rc.Ping
		cacheClose = rc.Close
		logger.Info("cache backend: redis", zap.String("addr", cfg.RedisAddr))
	default:
		weatherCache = cache.NewMemoryCache(cfg.CacheMaxEntries, clock)
		logger.Info("cache backend: in_memory", zap.Int("max_entries", cfg.CacheMaxEntries))
	}

	weatherService := service.NewWeatherService(
		weatherClient,
		weatherCache,
		cfg.CacheBackend,
		geocoder,
		cfg.CacheTTL,
		clock,
		cfg.CoalesceTimeout,
	)

	searches := search.NewStore(search.DefaultCapacity, cfg.SessionMaxIdle, clock)

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode
	sessionStore.Options.MaxAge = int(cfg.SessionMaxIdle / time.Second)

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		ReadinessTimeout: cfg.ReadinessTimeout,
		CachePing:        cachePing,
	}

	handler := httphandler.NewHandler(
		weatherService,
		weatherClient,
		searches,
		sessionStore,
		cfg.SessionCookieName,
		healthConfig,
		logger,
		version,
	)

	observability.RegisterTrafficGauges(cfg.DegradedWindow)

	warmCtx, warmCancel := context.WithCancel(context.Background())
	defer warmCancel()
	if cfg.WarmingEnabled && len(cfg.TrackedLocations) > 0 {
		locations := make([]models.Location, 0, len(cfg.TrackedLocations))
		for _, tracked := range cfg.TrackedLocations {
			loc, err := models.NewLocation(tracked.City, tracked.Country)
			if err != nil {
				logger.Fatal("tracked location", zap.Error(err))
			}
			locations = append(locations, loc)
		}
		warmer := cache.NewWarmer(weatherService, locations, cfg.WarmingInterval, clock, logger)
		go warmer.Run(warmCtx)
		logger.Info("cache warming enabled",
			zap.Int("locations", len(locations)),
			zap.Duration("interval", cfg.WarmingInterval))
	}

	router := mux.NewRouter()
	router.Use(httphandler.RequestIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.Handle("/metrics", observability.MetricsHandler())

	limiter := httphandler.NewClientRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	handler.Register(router,
		httphandler.RateLimitMiddleware(limiter),
		httphandler.TimeoutMiddleware(cfg.RequestTimeout),
	)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID"}),
		handlers.AllowCredentials(),
	)(router)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      corsHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	warmCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	observability.RecordShutdownInFlight(inFlight)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.InFlightDrainTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.InFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed",
			zap.Error(err),
			zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if cacheClose != nil {
		if err := cacheClose(); err != nil {
			logger.Error("cache close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

// splitAddrs parses a comma-separated server list.
func splitAddrs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
