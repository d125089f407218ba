// Package circuitbreaker guards the upstream page fetch. After enough
// consecutive failures the circuit opens and fetch attempts fail fast with
// ErrOpen, so the retry loop exhausts quickly instead of hammering a down
// upstream. After a cool-off the circuit half-opens and lets probes through.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrOpen is returned without invoking the protected call while the circuit
// is open and the cool-off has not elapsed.
var ErrOpen = errors.New("circuit breaker open")

// State is the circuit breaker state (Closed, Open, HalfOpen).
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker parameters. Zero values get defaults
// (5 failures to open, 2 probe successes to close, 30s cool-off).
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	Component        string
	OnStateChange    func(from, to State)
	// Clock defaults to the real clock. Injected in tests.
	Clock clockwork.Clock
}

// CircuitBreaker tracks consecutive upstream outcomes and gates calls.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time

	failureThreshold int
	successThreshold int
	timeout          time.Duration
	component        string
	onStateChange    func(from, to State)
	clock            clockwork.Clock
}

// New creates a CircuitBreaker from cfg, applying defaults for zero values.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		timeout:          cfg.Timeout,
		component:        cfg.Component,
		onStateChange:    cfg.OnStateChange,
		clock:            cfg.Clock,
	}
}

// Call runs fn when the circuit allows it. While open it returns ErrOpen
// until the cool-off elapses, then transitions to half-open and lets the
// call through as a probe. fn's error feeds the failure/success counters.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn()
	cb.record(err)
	return err
}

// admit decides whether a call may proceed, transitioning open -> half-open
// when the cool-off has elapsed.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	if cb.state != StateOpen {
		cb.mu.Unlock()
		return nil
	}
	if cb.clock.Since(cb.openedAt) < cb.timeout {
		cb.mu.Unlock()
		return ErrOpen
	}
	cb.transitionLocked(StateHalfOpen)
	cb.successes = 0
	cb.mu.Unlock()
	return nil
}

// record updates counters from a call outcome and opens or closes the
// circuit when a threshold is crossed.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.failureThreshold {
			cb.openedAt = cb.clock.Now()
			cb.failures = 0
			cb.transitionLocked(StateOpen)
		}
		return
	}

	cb.successes++
	cb.failures = 0
	if cb.state == StateHalfOpen && cb.successes >= cb.successThreshold {
		cb.successes = 0
		cb.transitionLocked(StateClosed)
	}
}

// transitionLocked changes state and fires the hook. Caller holds mu; the
// hook runs under the lock, so it must not call back into the breaker.
func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}

// State returns the current state (for metrics and tests).
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
