package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced clock. Callbacks run synchronously inside
// Advance, in due-time order.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	pending []fakeTimer
	seq     int
}

type fakeTimer struct {
	at  time.Time
	seq int
	f   func()
}

// NewFake creates a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run once the clock has been advanced by d.
func (c *Fake) AfterFunc(d time.Duration, f func()) {
	c.mu.Lock()
	c.seq++
	c.pending = append(c.pending, fakeTimer{at: c.now.Add(d), seq: c.seq, f: f})
	c.mu.Unlock()
}

// Advance moves the clock forward by d and runs every callback that became due.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	var due, keep []fakeTimer
	for _, t := range c.pending {
		if !t.at.After(now) {
			due = append(due, t)
		} else {
			keep = append(keep, t)
		}
	}
	c.pending = keep
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})

	// Run outside the lock: callbacks may schedule more timers.
	for _, t := range due {
		t.f()
	}
}

// Pending returns the number of callbacks that have not run yet.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
