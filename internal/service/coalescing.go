package service

import (
	"context"
	"sync"
	"time"

	"github.com/mwesner/msn-weather-service/internal/models"
)

// inFlightRequest tracks a single pipeline run that multiple callers may wait on.
type inFlightRequest struct {
	mu      sync.Mutex
	result  models.WeatherReading
	err     error
	done    bool
	waiters []chan struct{}
}

// requestCoalescer collapses concurrent pipeline runs for the same cache key
// into one upstream fetch. All callers in the same bucket see the identical
// outcome, which keeps the once-per-bucket fetch property under concurrency.
type requestCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightRequest
	timeout  time.Duration
}

func newRequestCoalescer(timeout time.Duration) *requestCoalescer {
	return &requestCoalescer{
		inFlight: make(map[string]*inFlightRequest),
		timeout:  timeout,
	}
}

// GetOrDo runs fn for key, or waits on an already in-flight run. shared is
// true when this caller rode along instead of initiating the fetch. Waiting
// is bounded by the coalescer timeout and the caller's context.
func (rc *requestCoalescer) GetOrDo(ctx context.Context, key string, fn func() (models.WeatherReading, error)) (result models.WeatherReading, shared bool, err error) {
	rc.mu.Lock()
	req, exists := rc.inFlight[key]
	if exists {
		rc.mu.Unlock()
		result, err = rc.wait(ctx, req)
		return result, true, err
	}

	req = &inFlightRequest{}
	rc.inFlight[key] = req
	rc.mu.Unlock()

	// The run continues even if this caller's context expires first, so
	// later waiters in the same bucket still get the shared outcome.
	go func() {
		result, err := fn()

		req.mu.Lock()
		req.result = result
		req.err = err
		req.done = true
		waiters := req.waiters
		req.waiters = nil
		req.mu.Unlock()

		for _, notify := range waiters {
			close(notify)
		}

		rc.mu.Lock()
		delete(rc.inFlight, key)
		rc.mu.Unlock()
	}()

	result, err = rc.wait(ctx, req)
	return result, false, err
}

// wait blocks until req completes, the coalescer timeout elapses, or ctx is
// canceled.
func (rc *requestCoalescer) wait(ctx context.Context, req *inFlightRequest) (models.WeatherReading, error) {
	req.mu.Lock()
	if req.done {
		result, err := req.result, req.err
		req.mu.Unlock()
		return result, err
	}
	notify := make(chan struct{})
	req.waiters = append(req.waiters, notify)
	req.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()

	select {
	case <-notify:
		req.mu.Lock()
		result, err := req.result, req.err
		req.mu.Unlock()
		return result, err
	case <-waitCtx.Done():
		return models.WeatherReading{}, waitCtx.Err()
	}
}
