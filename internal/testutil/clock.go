package testutil

import (
	"sync"
	"time"
)

// Epoch is the instant every DeterministicClock starts from.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock is a thread-safe fake clock for reproducible reports.
//
// Each call to Now advances the clock by Step before returning it, so the
// n-th call returns Epoch + n*Step. A zero Step freezes the clock at Epoch,
// which makes every measured duration zero.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	step  time.Duration
	ticks int64
}

// NewDeterministicClock creates a clock that advances by step per reading.
func NewDeterministicClock(step time.Duration) *DeterministicClock {
	return &DeterministicClock{step: step}
}

// Now advances the clock and returns the new time.
// Its signature matches time.Now so it can be injected directly.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	return Epoch.Add(time.Duration(c.ticks) * c.step)
}

// Ticks returns how many times Now has been called.
func (c *DeterministicClock) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reset rewinds the clock so the next Now returns Epoch + Step.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
