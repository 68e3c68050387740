package testutil

import (
	"sync"
	"time"
)

// Epoch is where every test clock starts.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock is a manually driven time source. Pass its Now method wherever the
// agent takes a func() time.Time, then Advance it to cross scan intervals
// and status-check cycles without sleeping.
type Clock struct {
	mu  sync.RWMutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: Epoch}
}

func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new reading.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
