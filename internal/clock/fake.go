package clock

import (
	"sync"
	"time"
)

// Fake returns a FakeClock initialized to the given time. Time stands
// still until Advance is called.
//
// FakeClock is safe for concurrent use by multiple goroutines.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{current: initial}
	c.waitersChanged = sync.NewCond(&c.mu)
	return c
}

// FakeClock is a deterministic Clock for testing. Callbacks registered
// with AfterFunc run synchronously inside Advance, in deadline order, with
// Now() reporting the callback's own deadline. A callback that re-arms its
// timer is fired again within the same Advance if the new deadline still
// falls inside the advanced window, so repeating timers behave like
// tickers.
//
// Do not call Advance from within a callback; that would recurse.
type FakeClock struct {
	mu             sync.Mutex
	current        time.Time
	waiters        []*fakeWaiter
	seq            uint64
	waitersChanged *sync.Cond
}

type fakeWaiter struct {
	deadline time.Time
	callback func()
	// seq orders waiters that share a deadline by registration order.
	seq     uint64
	stopped bool
	fired   bool
	queued  bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc schedules f to be called once the clock has been advanced by
// d. If d <= 0, f is called synchronously before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{
			stopFunc:  func() bool { return false },
			resetFunc: func(time.Duration) bool { return false },
		}
	}

	c.mu.Lock()
	w := &fakeWaiter{callback: f}
	c.enqueueLocked(w, d)
	c.mu.Unlock()

	return &Timer{
		stopFunc: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if w.stopped || w.fired {
				return false
			}
			w.stopped = true
			c.dequeueLocked(w)
			return true
		},
		resetFunc: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasActive := w.queued
			w.stopped = false
			w.fired = false
			if w.queued {
				c.dequeueLocked(w)
			}
			c.enqueueLocked(w, d)
			return wasActive
		},
	}
}

// Advance moves the clock forward by d, firing every timer whose deadline
// falls within the window. Timers fire one at a time in deadline order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.earliestLocked()
		if next == nil || next.deadline.After(target) {
			c.current = target
			c.mu.Unlock()
			return
		}
		if next.deadline.After(c.current) {
			c.current = next.deadline
		}
		c.dequeueLocked(next)
		next.fired = true
		callback := next.callback
		c.mu.Unlock()

		callback()
	}
}

// Pending returns the number of timers that are armed and have not fired.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// WaitForTimers blocks until at least n timers are pending. Use it to
// synchronize with a goroutine that arms a timer before advancing.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.waiters) < n {
		c.waitersChanged.Wait()
	}
}

func (c *FakeClock) enqueueLocked(w *fakeWaiter, d time.Duration) {
	c.seq++
	w.seq = c.seq
	w.deadline = c.current.Add(d)
	w.queued = true
	c.waiters = append(c.waiters, w)
	c.waitersChanged.Broadcast()
}

func (c *FakeClock) dequeueLocked(w *fakeWaiter) {
	for i, candidate := range c.waiters {
		if candidate == w {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			break
		}
	}
	w.queued = false
}

func (c *FakeClock) earliestLocked() *fakeWaiter {
	var earliest *fakeWaiter
	for _, w := range c.waiters {
		if earliest == nil ||
			w.deadline.Before(earliest.deadline) ||
			(w.deadline.Equal(earliest.deadline) && w.seq < earliest.seq) {
			earliest = w
		}
	}
	return earliest
}
