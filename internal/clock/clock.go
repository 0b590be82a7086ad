// Package clock provides an injectable time source for the agent's timers.
//
// Every component that schedules work (the GC load tick, the memory sampler,
// the profiling countdown and capture timer) takes a Clock instead of calling
// the time package directly. Production code passes Real(); tests pass a
// FakeClock and move time forward with Advance.
package clock

import "time"

// Clock abstracts the time operations used by the agent.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for duration d, then calls f. The returned Timer
	// can cancel the pending call with Stop or re-arm it with Reset.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer represents a scheduled callback.
type Timer struct {
	stopFunc  func() bool
	resetFunc func(time.Duration) bool
}

// Stop prevents the Timer from firing. Returns true if the call stops
// the timer, false if the timer has already fired or been stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Reset changes the timer to fire after duration d. Returns true if
// the timer was active before the reset.
func (t *Timer) Reset(d time.Duration) bool { return t.resetFunc(d) }
