// Package lifecycle exposes the process-wide drain flag. main flips it on
// SIGTERM/SIGINT, and the health handler reports shutting-down (503) while it
// is set so load balancers stop routing new traffic during the in-flight drain.
package lifecycle

import "sync/atomic"

var draining atomic.Bool

// SetShuttingDown marks the process as draining (or clears the mark in tests).
func SetShuttingDown(v bool) {
	draining.Store(v)
}

// IsShuttingDown reports whether the process is draining.
func IsShuttingDown() bool {
	return draining.Load()
}
