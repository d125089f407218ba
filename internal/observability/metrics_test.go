package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestMetrics_Usable verifies that all Prometheus metrics can be used without
// panic, ensuring label dimensions match usage across client, http, service,
// cache, and geocode packages.
func TestMetrics_Usable(t *testing.T) {
	// Route labels use path templates to bound cardinality.
	HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/weather", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/api/v1/weather").Observe(0.01)
	HTTPRequestsInFlight.Inc()
	HTTPRequestsInFlight.Dec()
	UpstreamFetchesTotal.WithLabelValues("success").Inc()
	UpstreamFetchesTotal.WithLabelValues("error").Inc()
	UpstreamFetchDuration.WithLabelValues("success").Observe(0.1)
	UpstreamRetriesTotal.Inc()
	ExtractionsTotal.WithLabelValues("structured", "hit").Inc()
	ExtractionsTotal.WithLabelValues("heuristic", "miss").Inc()
	CacheHitsTotal.WithLabelValues("memory").Inc()
	CacheMissesTotal.WithLabelValues("memory").Inc()
	CacheErrorsTotal.WithLabelValues("get", "timeout").Inc()
	WeatherQueriesTotal.Inc()
	GeocodeLookupsTotal.WithLabelValues("not_found").Inc()
	RateLimitDeniedTotal.Inc()
	RequestCoalescingHitsTotal.Inc()
	RecordCircuitBreakerTransition("upstream", "closed", "open")
	SetCircuitBreakerStateGauge("upstream", 1)
	CacheWarmingTotal.Inc()
	CacheWarmingDurationSeconds.Observe(1.5)
	RecordShutdownInFlight(3)
}

// TestMetricsHandler_ServesRegisteredMetrics verifies that the metrics
// endpoint exposes application metrics from the private registry.
func TestMetricsHandler_ServesRegisteredMetrics(t *testing.T) {
	WeatherQueriesTotal.Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"weatherQueriesTotal", "httpRequestsTotal", "upstreamFetchesTotal", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

// TestCacheErrorCategory verifies stable labels for cache error metrics.
func TestCacheErrorCategory(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "unknown"},
		{"timeout", errString("read timeout"), "timeout"},
		{"connection", errString("connection refused"), "connection"},
		{"other", errString("boom"), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CacheErrorCategory(tt.err); got != tt.want {
				t.Errorf("CacheErrorCategory(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

type errString string

func (e errString) Error() string { return string(e) }
