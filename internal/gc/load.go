package gc

import (
	"sync"
	"time"

	"github.com/coral-mesh/rtmon/internal/clock"
)

const (
	// DefaultLoadTick is the period at which observed GC time is folded into the window.
	DefaultLoadTick = time.Second
	// DefaultLoadWindow is the number of ticks the estimator remembers.
	DefaultLoadWindow = 10
)

// LoadEstimator estimates the fraction of wall-clock time spent in GC over
// a short rolling window. GC time is reported through Observe and folded
// into a fixed-size ring once per tick.
type LoadEstimator struct {
	clock clock.Clock
	tick  time.Duration

	mu       sync.Mutex
	window   []time.Duration
	next     int
	filled   int
	pending  time.Duration
	repeater *clock.Repeater
}

// NewLoadEstimator creates an estimator. Zero values for tick and window
// select DefaultLoadTick and DefaultLoadWindow.
func NewLoadEstimator(c clock.Clock, tick time.Duration, window int) *LoadEstimator {
	if c == nil {
		c = clock.Real()
	}
	if tick <= 0 {
		tick = DefaultLoadTick
	}
	if window <= 0 {
		window = DefaultLoadWindow
	}

	return &LoadEstimator{
		clock:  c,
		tick:   tick,
		window: make([]time.Duration, window),
	}
}

// Start begins the sampling tick. Calling Start on a running estimator
// cancels the previous tick and clears the window.
func (e *LoadEstimator) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.repeater != nil {
		e.repeater.Stop()
	}
	clear(e.window)
	e.next = 0
	e.filled = 0
	e.pending = 0
	e.repeater = clock.Every(e.clock, e.tick, e.rotate)
}

// Stop halts the sampling tick. Safe to call more than once.
func (e *LoadEstimator) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.repeater == nil {
		return
	}
	e.repeater.Stop()
	e.repeater = nil
}

// Observe records d of GC time. Observations made while stopped are ignored.
func (e *LoadEstimator) Observe(d time.Duration) {
	if d <= 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.repeater == nil {
		return
	}
	e.pending += d
}

// Load returns the GC time fraction over the filled part of the window,
// in [0, 1]. It is 0 before Start and until the first tick completes.
func (e *LoadEstimator) Load() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.filled == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range e.window {
		sum += d
	}
	load := float64(sum) / float64(time.Duration(e.filled)*e.tick)
	if load > 1 {
		return 1
	}
	return load
}

func (e *LoadEstimator) rotate() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.window[e.next] = e.pending
	e.pending = 0
	e.next = (e.next + 1) % len(e.window)
	if e.filled < len(e.window) {
		e.filled++
	}
}
