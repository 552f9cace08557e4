package pipeline

import (
	"sync"
	"time"
)

// Clock provides pipeline running time. Running time starts at zero when the
// clock is selected, so it is directly comparable with buffer timestamps.
type Clock interface {
	Now() time.Duration
}

// NewRunningClock returns a wall-clock backed Clock anchored at the moment of
// construction.
func NewRunningClock() Clock {
	return &runningClock{start: time.Now()}
}

type runningClock struct {
	start time.Time
}

func (c *runningClock) Now() time.Duration {
	return time.Since(c.start)
}

// ManualClock is a Clock advanced explicitly by the caller. Used by tests to
// make lateness decisions deterministic.
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// Set moves the clock to an absolute running time.
func (c *ManualClock) Set(now time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now += d
}
