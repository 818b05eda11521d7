// Package ratelimit provides a minimal time-window gate for
// rate-limiting noisy log lines, such as the vector-index controller's
// access-tracking failure warning (spec §4.4: "one rate-limited
// warning per 10 seconds").
package ratelimit

import (
	"sync"
	"time"
)

// Gate allows an action through at most once per window.
type Gate struct {
	window time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewGate creates a Gate that opens at most once per window.
func NewGate(window time.Duration) *Gate {
	return &Gate{window: window}
}

// Allow reports whether the caller may proceed now, and if so records
// the current time as the last-allowed instant.
func (g *Gate) Allow(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if now.Sub(g.last) < g.window {
		return false
	}
	g.last = now
	return true
}
