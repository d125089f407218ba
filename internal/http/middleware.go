package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mwesner/msn-weather-service/internal/observability"
	"github.com/mwesner/msn-weather-service/internal/traffic"
)

type requestIDKey struct{}

// RequestIDFromContext returns the request ID attached by RequestIDMiddleware,
// or empty when the middleware did not run.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestIDMiddleware assigns each request an ID (honoring an inbound
// X-Request-ID), echoes it in the response header, and attaches a
// request-scoped logger carrying the ID.
func RequestIDMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", requestID)

			ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
			ctx = observability.WithLogger(ctx, logger.With(zap.String("request_id", requestID)))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MetricsMiddleware records request counts, latency, and the in-flight gauge.
// The route label uses the mux path template so cardinality stays bounded.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		observability.HTTPRequestsInFlight.Inc()
		globalInFlightTracker.Increment()
		defer func() {
			observability.HTTPRequestsInFlight.Dec()
			globalInFlightTracker.Decrement()
		}()

		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		duration := time.Since(start).Seconds()
		route := routeTemplate(r)
		statusCode := statusCodeString(recorder.statusCode)

		observability.HTTPRequestsTotal.WithLabelValues(r.Method, route, statusCode).Inc()
		observability.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func statusCodeString(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// TimeoutMiddleware sets a deadline on the request context. Apply only to
// routes that call the upstream pipeline.
func TimeoutMiddleware(timeout time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientRateLimiter holds one token bucket per client IP. Buckets idle past
// idleEvictAfter are dropped so the map does not grow with every IP ever seen.
type ClientRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	limit   rate.Limit
	burst   int
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const idleEvictAfter = 10 * time.Minute

// NewClientRateLimiter creates a limiter granting perMinute requests per
// client IP with the given burst.
func NewClientRateLimiter(perMinute, burst int) *ClientRateLimiter {
	if burst <= 0 {
		burst = perMinute
	}
	return &ClientRateLimiter{
		clients: make(map[string]*clientBucket),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
	}
}

// Allow reports whether the client identified by ip may proceed.
func (c *ClientRateLimiter) Allow(ip string) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for addr, bucket := range c.clients {
		if now.Sub(bucket.lastSeen) > idleEvictAfter {
			delete(c.clients, addr)
		}
	}

	bucket, ok := c.clients[ip]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.clients[ip] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.Allow()
}

// RateLimitMiddleware returns 429 when the client's bucket is exhausted.
// Disabled when limiter is nil.
func RateLimitMiddleware(limiter *ClientRateLimiter) mux.MiddlewareFunc {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientIP(r)) {
				observability.LoggerFromContext(r.Context()).Debug("rate limit denied",
					zap.String("client_ip", clientIP(r)))
				traffic.RecordDenied()
				observability.RateLimitDeniedTotal.Inc()
				writeRateLimitError(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the caller's address, trusting the first X-Forwarded-For
// hop when present.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if i := strings.IndexByte(forwarded, ','); i >= 0 {
			return strings.TrimSpace(forwarded[:i])
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeRateLimitError(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":      "RATE_LIMITED",
			"message":   "Too many requests. Please try again later.",
			"requestId": RequestIDFromContext(r.Context()),
		},
	})
}
