// Package traffic keeps a short sliding window of upstream outcomes and
// rate-limit denials. The health handler reads ErrorRate to decide when the
// service is degraded; the window gauges read RequestCount and DenialCount.
package traffic

import (
	"sync"
	"time"
)

// retention bounds the event log; windows longer than this undercount.
const retention = 5 * time.Minute

// Kind classifies a recorded outcome.
type Kind uint8

const (
	// KindSuccess is an upstream fetch that produced a reading.
	KindSuccess Kind = iota
	// KindError is a failed fetch, timeout, or parse failure.
	KindError
	// KindDenied is a rate-limit rejection (429); it never reaches upstream.
	KindDenied
)

type event struct {
	at   time.Time
	kind Kind
}

// Tracker is an append-only log of recent outcomes, pruned on write.
type Tracker struct {
	mu     sync.Mutex
	events []event
}

var defaultTracker Tracker

// RecordSuccess records a successful upstream outcome on the default tracker.
func RecordSuccess() { defaultTracker.Record(KindSuccess) }

// RecordError records a failed upstream outcome on the default tracker.
func RecordError() { defaultTracker.Record(KindError) }

// RecordDenied records a rate-limit denial on the default tracker.
func RecordDenied() { defaultTracker.Record(KindDenied) }

// RequestCount returns all outcomes within the window (denials included).
func RequestCount(window time.Duration) int { return defaultTracker.RequestCount(window) }

// DenialCount returns the denials within the window.
func DenialCount(window time.Duration) int { return defaultTracker.DenialCount(window) }

// ErrorRate returns (errors, successes+errors) within the window. Denials
// are excluded from both so throttling cannot flip the service to degraded.
func ErrorRate(window time.Duration) (errors, total int) { return defaultTracker.ErrorRate(window) }

// Reset clears the default tracker. For tests only.
func Reset() { defaultTracker.Reset() }

// Record appends an outcome stamped with the current time and drops events
// older than the retention horizon.
func (t *Tracker) Record(kind Kind) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event{at: now, kind: kind})

	// Events are appended in time order, so everything to prune is a prefix.
	cutoff := now.Add(-retention)
	i := 0
	for ; i < len(t.events) && t.events[i].at.Before(cutoff); i++ {
	}
	if i > 0 {
		t.events = append(t.events[:0], t.events[i:]...)
	}
}

// RequestCount counts every outcome within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	counts := t.tally(window)
	return counts[KindSuccess] + counts[KindError] + counts[KindDenied]
}

// DenialCount counts rate-limit denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	return t.tally(window)[KindDenied]
}

// ErrorRate returns (errors, successes+errors) within the window.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	counts := t.tally(window)
	return counts[KindError], counts[KindError] + counts[KindSuccess]
}

// Reset discards all recorded events.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}

func (t *Tracker) tally(window time.Duration) [3]int {
	cutoff := time.Now().Add(-window)
	var counts [3]int
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.events {
		if !e.at.Before(cutoff) {
			counts[e.kind]++
		}
	}
	return counts
}
