// Package ratelimit provides sliding-window admission control per caller key.
// It is a best-effort single-node gate; correctness of the payment protocol
// never depends on it.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type Gate struct {
	mu       sync.Mutex
	maxCalls int
	window   time.Duration
	calls    map[string][]time.Time
	now      func() time.Time
}

// NewGate creates a gate admitting at most maxCalls per key within window.
func NewGate(maxCalls int, window time.Duration) *Gate {
	return &Gate{
		maxCalls: maxCalls,
		window:   window,
		calls:    make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether a call from key is admitted, recording it if so.
// Entries older than the window are evicted lazily on each check.
func (g *Gate) Allow(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	cutoff := now.Add(-g.window)

	recent := g.calls[key][:0]
	for _, t := range g.calls[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= g.maxCalls {
		g.calls[key] = recent
		return false
	}

	g.calls[key] = append(recent, now)
	return true
}

// Sweep drops keys with no activity inside the window to bound memory.
func (g *Gate) Sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-g.window)
	for key, times := range g.calls {
		live := false
		for _, t := range times {
			if t.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(g.calls, key)
		}
	}
}

// Run sweeps periodically until ctx is cancelled.
func (g *Gate) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Sweep()
		}
	}
}
