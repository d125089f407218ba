package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/mwesner/msn-weather-service/internal/models"
	"github.com/mwesner/msn-weather-service/internal/observability"
)

// Fetcher runs the full weather pipeline for a location. The warmer calls it
// through the caching service, so each run refreshes the current bucket for
// the tracked locations.
type Fetcher interface {
	GetWeather(ctx context.Context, location models.Location) (models.WeatherReading, error)
}

// Warmer periodically pre-fetches weather for a fixed set of locations so the
// first real request in each bucket hits a warm cache.
type Warmer struct {
	fetcher   Fetcher
	locations []models.Location
	interval  time.Duration
	clock     clockwork.Clock
	logger    *zap.Logger
}

// NewWarmer creates a warmer over the given locations. interval should be at
// most the bucket width or runs warm already-expired buckets.
func NewWarmer(fetcher Fetcher, locations []models.Location, interval time.Duration, clock clockwork.Clock, logger *zap.Logger) *Warmer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Warmer{
		fetcher:   fetcher,
		locations: locations,
		interval:  interval,
		clock:     clock,
		logger:    logger,
	}
}

// Run warms immediately, then on every tick until ctx is canceled. Blocks;
// callers run it in a goroutine.
func (w *Warmer) Run(ctx context.Context) {
	if len(w.locations) == 0 {
		return
	}

	w.WarmOnce(ctx)

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			w.WarmOnce(ctx)
		}
	}
}

// WarmOnce fans out one fetch per tracked location and waits for all of them.
// Individual failures are logged and counted but never abort the run; a
// failed location is simply cold until the next tick or the next real request.
func (w *Warmer) WarmOnce(ctx context.Context) {
	start := w.clock.Now()
	observability.CacheWarmingTotal.Inc()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, loc := range w.locations {
		wg.Add(1)
		go func(loc models.Location) {
			defer wg.Done()
			if _, err := w.fetcher.GetWeather(ctx, loc); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				w.logger.Warn("cache warming fetch failed",
					zap.String("city", loc.City),
					zap.String("country", loc.Country),
					zap.Error(err))
			}
		}(loc)
	}
	wg.Wait()

	if failed > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
	}
	observability.CacheWarmingDurationSeconds.Observe(w.clock.Since(start).Seconds())

	w.logger.Debug("cache warming run complete",
		zap.Int("locations", len(w.locations)),
		zap.Int("failed", failed))
}
