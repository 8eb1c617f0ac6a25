package core

import (
	"sync"
	"time"
)

// Clock supplies the ledger timestamp.
// This interface enables dependency injection for deterministic testing.
type Clock interface {
	Now() time.Time
}

// systemClock reads wall-clock time for production use
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

var defaultClock Clock = systemClock{}

// ManualClock is a Clock that only moves when told to. It is used by tests and
// by simulations that replay an auction at chosen timestamps.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a ManualClock reading t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Unlike a chain, the clock may move backwards.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
