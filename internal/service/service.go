package service

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/mwesner/msn-weather-service/internal/cache"
	"github.com/mwesner/msn-weather-service/internal/client"
	"github.com/mwesner/msn-weather-service/internal/geocode"
	"github.com/mwesner/msn-weather-service/internal/models"
	"github.com/mwesner/msn-weather-service/internal/observability"
)

// WeatherService orchestrates the weather pipeline: bucketed cache-aside over
// the upstream page fetch, with reverse geocoding for coordinate lookups.
// Failures from the pipeline taxonomy are cached and replayed like successes,
// so a failing upstream is asked at most once per location per bucket.
type WeatherService struct {
	client    client.Client
	cache     cache.Cache
	backend   string
	geocoder  geocode.Geocoder
	ttl       time.Duration
	clock     clockwork.Clock
	coalescer *requestCoalescer
	stampede  *stampedeTracker
}

// NewWeatherService creates the service. backend names the cache backend for
// metric labels. ttl bounds entry lifetime inside a bucket; coalesceTimeout
// of 0 disables request coalescing.
func NewWeatherService(weatherClient client.Client, store cache.Cache, backend string, geocoder geocode.Geocoder, ttl time.Duration, clock clockwork.Clock, coalesceTimeout time.Duration) *WeatherService {
	if ttl <= 0 {
		ttl = cache.BucketMinutes * time.Minute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	var coalescer *requestCoalescer
	if coalesceTimeout > 0 {
		coalescer = newRequestCoalescer(coalesceTimeout)
	}
	return &WeatherService{
		client:    weatherClient,
		cache:     store,
		backend:   backend,
		geocoder:  geocoder,
		ttl:       ttl,
		clock:     clock,
		coalescer: coalescer,
		stampede:  newStampedeTracker(),
	}
}

// GetWeather returns the weather for a location, serving from the current
// bucket's snapshot when one exists. A cached failure is replayed as the same
// error kind; a miss runs the fetch pipeline and stores whichever outcome it
// produced.
func (s *WeatherService) GetWeather(ctx context.Context, location models.Location) (models.WeatherReading, error) {
	observability.WeatherQueriesTotal.Inc()
	logger := observability.LoggerFromContext(ctx)

	key := cache.NewKey(location.City, location.Country, s.clock.Now()).String()

	entry, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", observability.CacheErrorCategory(err)).Inc()
		logger.Warn("cache get failed, falling through to fetch", zap.String("key", key), zap.Error(err))
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues(s.backend).Inc()
		logger.Debug("cache hit", zap.String("key", key))
		return entry.Outcome()
	} else {
		observability.CacheMissesTotal.WithLabelValues(s.backend).Inc()
	}

	concurrent := s.stampede.RecordMiss(key)
	defer s.stampede.RecordDone(key)
	if concurrent > 1 {
		logger.Debug("concurrent misses for key", zap.String("key", key), zap.Int("concurrent", concurrent))
	}

	if s.coalescer == nil {
		return s.fetchAndStore(ctx, key, location)
	}

	reading, shared, err := s.coalescer.GetOrDo(ctx, key, func() (models.WeatherReading, error) {
		return s.fetchAndStore(ctx, key, location)
	})
	if shared {
		observability.RequestCoalescingHitsTotal.Inc()
	}
	return reading, err
}

// GetWeatherByCoordinates resolves lat/lon to a location, then runs the
// normal lookup. Geocoding failures surface unwrapped so the transport layer
// can map NotFound and Resolution distinctly.
func (s *WeatherService) GetWeatherByCoordinates(ctx context.Context, lat, lon float64) (models.WeatherReading, error) {
	location, err := s.geocoder.Reverse(ctx, lat, lon)
	if err != nil {
		return models.WeatherReading{}, err
	}
	return s.GetWeather(ctx, location)
}

// fetchAndStore runs the fetch-and-extract pipeline for location and snapshots
// the outcome under key. Failures outside the taxonomy (caller cancellation)
// are returned but never cached.
func (s *WeatherService) fetchAndStore(ctx context.Context, key string, location models.Location) (models.WeatherReading, error) {
	logger := observability.LoggerFromContext(ctx)

	reading, err := s.client.GetWeather(ctx, location)
	if err != nil {
		if entry, cacheable := cache.FailureEntry(err); cacheable {
			s.store(ctx, key, entry, logger)
		}
		return models.WeatherReading{}, err
	}

	s.store(ctx, key, cache.SuccessEntry(reading), logger)
	return reading, nil
}

// store writes the snapshot; a failed write is logged and counted but never
// fails the request, the caller already has the outcome in hand.
func (s *WeatherService) store(ctx context.Context, key string, entry cache.Entry, logger *zap.Logger) {
	if err := s.cache.Set(ctx, key, entry, s.ttl); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", observability.CacheErrorCategory(err)).Inc()
		logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}
