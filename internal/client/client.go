package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/mwesner/msn-weather-service/internal/circuitbreaker"
	"github.com/mwesner/msn-weather-service/internal/extract"
	"github.com/mwesner/msn-weather-service/internal/models"
	"github.com/mwesner/msn-weather-service/internal/observability"
)

// Client fetches and parses current weather for a location.
type Client interface {
	GetWeather(ctx context.Context, location models.Location) (models.WeatherReading, error)
	Ping(ctx context.Context) error
}

// DefaultBaseURL is the upstream weather page prefix; the encoded
// "city,country" segment is appended to it.
const DefaultBaseURL = "https://www.msn.com/en-us/weather/forecast/in-"

// DefaultUserAgent is sent with page fetches. The upstream serves the
// embedded forecast payload to browser user agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// MSNClient fetches the upstream weather page with bounded retries and runs
// the extraction chain over the returned markup.
type MSNClient struct {
	baseURL        string
	userAgent      string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.CircuitBreaker
}

// NewMSNClient creates a client with the default retry policy: 3 attempts,
// exponential backoff from 2s capped at 10s.
func NewMSNClient(baseURL, userAgent string, timeout time.Duration) *MSNClient {
	return NewMSNClientWithRetry(baseURL, userAgent, timeout, 3, 2*time.Second, 10*time.Second)
}

// NewMSNClientWithRetry creates a client with an explicit retry policy.
// timeout bounds each fetch attempt independently of the backoff schedule.
func NewMSNClientWithRetry(baseURL, userAgent string, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) *MSNClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if retryAttempts <= 0 {
		retryAttempts = 3
	}
	return &MSNClient{
		baseURL:        baseURL,
		userAgent:      userAgent,
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetCircuitBreaker wraps page fetches with cb. An open circuit fails fast as
// an upstream failure; the retry budget is unchanged.
func (c *MSNClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

// GetWeather fetches the weather page for the location and extracts a
// reading. Fetching retries transport failures with exponential backoff;
// parse failures are terminal and never retried, because refetching will not
// fix a page the extractors cannot understand.
func (c *MSNClient) GetWeather(ctx context.Context, location models.Location) (models.WeatherReading, error) {
	pageURL := c.locationURL(location)

	html, err := c.fetchWithRetry(ctx, pageURL)
	if err != nil {
		return models.WeatherReading{}, err
	}

	reading, strategy, err := extract.Parse(html)
	if err != nil {
		observability.ExtractionsTotal.WithLabelValues(string(strategy), "miss").Inc()
		return models.WeatherReading{}, fmt.Errorf("parse weather page for %s: %w", location.PathSegment(), err)
	}
	observability.ExtractionsTotal.WithLabelValues(string(strategy), "hit").Inc()

	return models.NewWeatherReading(location, reading.Temperature, reading.Condition, reading.Humidity, reading.WindSpeed)
}

// fetchWithRetry performs the page fetch with the bounded retry policy.
// Only transport-level failures (connection errors, timeouts, non-2xx) are
// retried; exhausting the budget surfaces an Upstream failure wrapping the
// last error.
func (c *MSNClient) fetchWithRetry(ctx context.Context, pageURL string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.UpstreamRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		html, err := c.fetchOnce(ctx, pageURL)
		if err == nil {
			return html, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("exhausted retries: %w", lastErr)
}

// fetchOnce performs a single fetch attempt, bounded by the per-attempt
// timeout and routed through the circuit breaker when one is configured.
func (c *MSNClient) fetchOnce(ctx context.Context, pageURL string) (string, error) {
	if c.breaker == nil {
		return c.fetchPage(ctx, pageURL)
	}
	var html string
	err := c.breaker.Call(ctx, func() error {
		var ferr error
		html, ferr = c.fetchPage(ctx, pageURL)
		return ferr
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		// Breaker-open short circuit: surface it in the upstream taxonomy.
		return "", fmt.Errorf("%w: %v", models.ErrUpstream, err)
	}
	return html, err
}

func (c *MSNClient) fetchPage(ctx context.Context, pageURL string) (string, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		observability.UpstreamFetchesTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: build request: %v", models.ErrUpstream, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.UpstreamFetchesTotal.WithLabelValues("error").Inc()
		observability.UpstreamFetchDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: request timeout: %v", models.ErrUpstream, err)
		}
		return "", fmt.Errorf("%w: http request failed: %v", models.ErrUpstream, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.UpstreamFetchesTotal.WithLabelValues(status).Inc()
	observability.UpstreamFetchDuration.WithLabelValues(status).Observe(duration)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: HTTP %d", models.ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response body: %v", models.ErrUpstream, err)
	}
	return string(body), nil
}

// isRetryable reports whether err is a transport-level failure worth another
// attempt. Parse failures and caller cancellation are not.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, models.ErrUpstream)
}

func (c *MSNClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

// locationURL builds the upstream page URL for the location: the base path
// plus the percent-escaped "city,country" segment. No network access.
func (c *MSNClient) locationURL(location models.Location) string {
	return c.baseURL + url.PathEscape(location.PathSegment())
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// Ping probes the upstream origin with a HEAD request. Used by the readiness
// handler; a response below 500 counts as reachable.
func (c *MSNClient) Ping(ctx context.Context) error {
	origin, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parse base URL: %w", err)
	}
	origin.Path = ""
	origin.RawQuery = ""

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, origin.String(), nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("upstream unhealthy: HTTP %d", resp.StatusCode)
	}
	return nil
}
