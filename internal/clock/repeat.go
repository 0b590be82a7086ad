package clock

import (
	"sync"
	"time"
)

// Repeater calls a function every interval until stopped. It is built on
// AfterFunc so a FakeClock drives it deterministically.
type Repeater struct {
	mu      sync.Mutex
	timer   *Timer
	stopped bool
}

// Every calls f every interval d, starting one interval from now. Panics
// if d <= 0. The next tick is armed only after f returns, so calls never
// overlap. f may call Stop on the returned Repeater.
func Every(c Clock, d time.Duration, f func()) *Repeater {
	if d <= 0 {
		panic("clock: non-positive interval for Every")
	}

	r := &Repeater{}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timer = c.AfterFunc(d, func() {
		if r.isStopped() {
			return
		}
		f()
		r.mu.Lock()
		defer r.mu.Unlock()
		if !r.stopped {
			r.timer.Reset(d)
		}
	})
	return r
}

// Stop cancels future calls. Safe to call more than once.
func (r *Repeater) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	r.timer.Stop()
}

func (r *Repeater) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}
