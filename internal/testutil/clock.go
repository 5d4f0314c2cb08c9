// Package testutil holds small helpers shared by test files.
package testutil

import (
	"sync"
	"time"
)

// SteppingClock is a thread-safe deterministic wall clock for tests.
//
// Each call to Now returns the current instant and then advances it by a
// fixed step, so timestamps are reproducible across runs. A zero step
// freezes the clock, which is how tests provoke timestamp collisions.
type SteppingClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

// NewSteppingClock creates a clock starting at start, advancing by step per
// Now call.
func NewSteppingClock(start time.Time, step time.Duration) *SteppingClock {
	return &SteppingClock{t: start.UTC(), step: step}
}

// Now returns the current instant and advances the clock.
func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.t
	c.t = c.t.Add(c.step)
	return t
}

// Set repositions the clock.
func (c *SteppingClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t.UTC()
}
