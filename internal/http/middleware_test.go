package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mwesner/msn-weather-service/internal/traffic"
)

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	var seen string
	r := mux.NewRouter()
	r.Use(RequestIDMiddleware(zap.NewNop()))
	r.HandleFunc("/x", func(w http.ResponseWriter, req *http.Request) {
		seen = RequestIDFromContext(req.Context())
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if seen == "" {
		t.Error("no request ID in context")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("header X-Request-ID = %q, want %q", got, seen)
	}
}

func TestRequestIDMiddleware_HonorsInboundID(t *testing.T) {
	r := mux.NewRouter()
	r.Use(RequestIDMiddleware(zap.NewNop()))
	r.HandleFunc("/x", func(w http.ResponseWriter, req *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "upstream-id" {
		t.Errorf("X-Request-ID = %q, want upstream-id", got)
	}
}

func TestTimeoutMiddleware(t *testing.T) {
	r := mux.NewRouter()
	r.Use(TimeoutMiddleware(10 * time.Millisecond))
	r.HandleFunc("/slow", func(w http.ResponseWriter, req *http.Request) {
		select {
		case <-req.Context().Done():
			w.WriteHeader(http.StatusGatewayTimeout)
		case <-time.After(time.Second):
			w.WriteHeader(http.StatusOK)
		}
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504 (context deadline propagated)", rec.Code)
	}
}

func TestClientRateLimiter_PerClientBuckets(t *testing.T) {
	limiter := NewClientRateLimiter(30, 2)

	if !limiter.Allow("10.0.0.1") || !limiter.Allow("10.0.0.1") {
		t.Fatal("burst requests denied")
	}
	if limiter.Allow("10.0.0.1") {
		t.Error("request over burst allowed")
	}
	// A different client has its own bucket.
	if !limiter.Allow("10.0.0.2") {
		t.Error("fresh client denied")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	traffic.Reset()
	t.Cleanup(traffic.Reset)

	r := mux.NewRouter()
	r.Use(RequestIDMiddleware(zap.NewNop()))
	r.Use(RateLimitMiddleware(NewClientRateLimiter(30, 2)))
	r.HandleFunc("/x", func(w http.ResponseWriter, req *http.Request) {})

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do("10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rec.Code)
		}
	}

	rec := do("10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if traffic.DenialCount(time.Minute) != 1 {
		t.Errorf("denial count = %d, want 1", traffic.DenialCount(time.Minute))
	}

	if rec := do("10.0.0.9"); rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	r := mux.NewRouter()
	r.Use(RateLimitMiddleware(nil))
	r.HandleFunc("/x", func(w http.ResponseWriter, req *http.Request) {})

	for i := 0; i < 100; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rec.Code)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr", "192.0.2.1:5000", "", "192.0.2.1"},
		{"forwarded single", "10.0.0.1:5000", "203.0.113.7", "203.0.113.7"},
		{"forwarded chain", "10.0.0.1:5000", "203.0.113.7, 10.0.0.1", "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMetricsMiddleware_RecordsStatus(t *testing.T) {
	r := mux.NewRouter()
	r.Use(mux.MiddlewareFunc(func(next http.Handler) http.Handler { return MetricsMiddleware(next) }))
	r.HandleFunc("/teapot", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418 (recorder must pass status through)", rec.Code)
	}
}

func TestStatusCodeString(t *testing.T) {
	if got := statusCodeString(204); got != "2xx" {
		t.Errorf("statusCodeString(204) = %q, want 2xx", got)
	}
	if got := statusCodeString(503); got != "5xx" {
		t.Errorf("statusCodeString(503) = %q, want 5xx", got)
	}
}

func TestInFlightTracker(t *testing.T) {
	tracker := &InFlightTracker{}

	tracker.Increment()
	tracker.Increment()
	if tracker.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", tracker.Count())
	}

	tracker.Decrement()
	tracker.Decrement()
	if err := tracker.WaitForZero(context.Background(), time.Millisecond); err != nil {
		t.Errorf("WaitForZero() error = %v", err)
	}
}

func TestInFlightTracker_WaitForZeroHonorsContext(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := tracker.WaitForZero(ctx, time.Millisecond); err != context.DeadlineExceeded {
		t.Errorf("WaitForZero() error = %v, want DeadlineExceeded", err)
	}
}
