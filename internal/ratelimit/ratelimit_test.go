package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinWindow(t *testing.T) {
	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	gate := NewGate(3, 60*time.Second)
	gate.now = func() time.Time { return current }

	assert.True(t, gate.Allow("10.0.0.1"))
	assert.True(t, gate.Allow("10.0.0.1"))
	assert.True(t, gate.Allow("10.0.0.1"))
	assert.False(t, gate.Allow("10.0.0.1"), "4th call within window must be rejected")

	// Other keys are independent.
	assert.True(t, gate.Allow("10.0.0.2"))
}

func TestAllowAfterWindowElapses(t *testing.T) {
	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	gate := NewGate(3, 60*time.Second)
	gate.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		assert.True(t, gate.Allow("client"))
	}
	assert.False(t, gate.Allow("client"))

	current = current.Add(61 * time.Second)
	assert.True(t, gate.Allow("client"), "calls admitted again after the window elapses")
}

func TestSweepDropsIdleKeys(t *testing.T) {
	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	gate := NewGate(3, 60*time.Second)
	gate.now = func() time.Time { return current }

	gate.Allow("stale")
	current = current.Add(2 * time.Minute)
	gate.Allow("fresh")

	gate.Sweep()

	gate.mu.Lock()
	defer gate.mu.Unlock()
	assert.NotContains(t, gate.calls, "stale")
	assert.Contains(t, gate.calls, "fresh")
}
