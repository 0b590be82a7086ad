package gc

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/rtmon/internal/clock"
	"github.com/coral-mesh/rtmon/internal/report"
	"github.com/coral-mesh/rtmon/internal/units"
)

// Sample is emitted once per classified GC event. It carries the event
// itself plus the full accumulator state at the time of the event.
type Sample struct {
	TimestampMs   int64   `json:"timestampMs"`
	GCStartTimeMs int64   `json:"gcStartTimeMs"`
	GCDurationMs  float64 `json:"gcDurationMs"`
	Load          float64 `json:"load"`
	Stats
}

// Options configures a Monitor.
type Options struct {
	// Debug sets Options.Dev on every reported envelope.
	Debug bool
	// Defaults fills the envelope base.
	Defaults report.Defaults
	// Clock drives the load estimator and sample timestamps (default: real clock).
	Clock clock.Clock
	// Logger for the monitor (default: disabled).
	Logger *zerolog.Logger
	// LoadTick and LoadWindow configure the load estimator.
	LoadTick   time.Duration
	LoadWindow int
}

// Monitor aggregates GC events from a Source into per-kind counters and
// reports a Sample for each classified event.
type Monitor struct {
	source    Source
	reporter  report.Reporter
	options   Options
	clock     clock.Clock
	estimator *LoadEstimator
	logger    zerolog.Logger

	// runMu guards the active subscription. It is never held by handle.
	runMu       sync.Mutex
	generation  uint64
	unsubscribe func()

	mu           sync.Mutex
	stats        Stats
	unclassified uint64
}

// NewMonitor creates a GC monitor reading from source and reporting to reporter.
func NewMonitor(source Source, reporter report.Reporter, opts Options) *Monitor {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if reporter == nil {
		reporter = report.Nop()
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "gc_monitor").Logger()
	}

	return &Monitor{
		source:    source,
		reporter:  reporter,
		options:   opts,
		clock:     opts.Clock,
		estimator: NewLoadEstimator(opts.Clock, opts.LoadTick, opts.LoadWindow),
		logger:    logger,
	}
}

// Start resets the accumulators, starts the load estimator and subscribes
// to the source. A running subscription is released first. The returned
// function unsubscribes and stops the estimator; calling it more than once,
// or after a later Start, is a no-op.
func (m *Monitor) Start() (stop func()) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
		m.logger.Debug().Msg("Replacing running GC monitor")
	}

	m.mu.Lock()
	m.stats = Stats{}
	m.unclassified = 0
	m.mu.Unlock()

	m.estimator.Start()
	m.unsubscribe = m.source.Subscribe(m.handle)
	m.generation++
	generation := m.generation

	m.logger.Info().
		Bool("debug", m.options.Debug).
		Msg("GC monitor started")

	return func() { m.stop(generation) }
}

func (m *Monitor) stop(generation uint64) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if generation != m.generation || m.unsubscribe == nil {
		return
	}
	m.unsubscribe()
	m.unsubscribe = nil
	m.estimator.Stop()
	m.logger.Info().Msg("GC monitor stopped")
}

// Stats returns a copy of the accumulators.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Unclassified returns the number of events dropped because their kind is
// not aggregated.
func (m *Monitor) Unclassified() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unclassified
}

// Load returns the current load estimate.
func (m *Monitor) Load() float64 {
	return m.estimator.Load()
}

func (m *Monitor) handle(ev Event) {
	m.mu.Lock()
	bucket := m.stats.Bucket(ev.Kind)
	if bucket == nil {
		m.unclassified++
		m.mu.Unlock()
		m.logger.Trace().Int("kind", int(ev.Kind)).Msg("Ignoring unclassified GC event")
		return
	}
	bucket.Count++
	bucket.TotalDurationMs += float64(ev.Duration) / float64(time.Millisecond)
	stats := m.stats
	m.mu.Unlock()

	m.estimator.Observe(ev.Duration)

	sample := Sample{
		TimestampMs:   m.clock.Now().UnixMilli(),
		GCStartTimeMs: ev.Start.UnixMilli(),
		GCDurationMs:  units.DurationToMs(ev.Duration),
		Load:          units.Round2(m.estimator.Load()),
		Stats:         stats,
	}
	m.reporter.Report(
		report.NewEnvelope(report.TypeGC, m.options.Defaults, sample),
		report.Options{Dev: m.options.Debug},
	)
}
