// SPDX-License-Identifier: MPL-2.0

// Package clock abstracts the passage of time so that delayed work, such as
// scheduling the first test run of a watch session, can be tested
// deterministically.
package clock

import (
	"sync"
	"time"
)

type (
	// Clock is the time source used by schedulers.
	Clock interface {
		// Now returns the current time.
		Now() time.Time

		// After waits for the duration to elapse and then sends the current time.
		After(d time.Duration) <-chan time.Time
	}

	// Real implements Clock using system time.
	Real struct{}

	// Fake implements Clock with manually controlled time.
	// Time only advances when Advance is called.
	Fake struct {
		mu      sync.Mutex
		current time.Time
		waiters []waiter
	}

	waiter struct {
		target time.Time
		ch     chan time.Time
	}
)

// Now returns the current system time.
func (Real) Now() time.Time {
	return time.Now()
}

// After returns a channel that receives the time after duration d.
func (Real) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// NewFake creates a Fake clock. A zero initial time defaults to a fixed
// reference time.
func NewFake(initial time.Time) *Fake {
	if initial.IsZero() {
		initial = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Fake{current: initial}
}

// Now returns the current fake time.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that fires once Advance moves past now+d.
// Non-positive durations fire immediately.
func (c *Fake) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.current
		return ch
	}
	c.waiters = append(c.waiters, waiter{target: c.current.Add(d), ch: ch})
	return ch
}

// Advance moves the fake time forward by d and fires due waiters.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if c.current.Before(w.target) {
			remaining = append(remaining, w)
			continue
		}
		w.ch <- c.current
	}
	c.waiters = remaining
}

// Waiters returns the number of pending After calls. Tests use it to wait
// until a goroutine has started waiting before advancing time.
func (c *Fake) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
