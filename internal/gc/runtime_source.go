package gc

import (
	"runtime/debug"
	"runtime/metrics"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/rtmon/internal/clock"
	"github.com/coral-mesh/rtmon/internal/safe"
)

// DefaultPollInterval is how often RuntimeSource inspects the runtime.
const DefaultPollInterval = 100 * time.Millisecond

const (
	metricForcedCycles  = "/gc/cycles/forced:gc-cycles"
	metricScavengeCPU   = "/cpu/classes/scavenge/total:cpu-seconds"
	metricFinalizersRun = "/gc/finalizers/executed:finalizers"
)

// RuntimeSource turns Go runtime counters into discrete GC events. The Go
// runtime has no GC notification hook, so the source polls while it has at
// least one subscriber and emits an event for every change it sees:
//   - each completed cycle from debug.ReadGCStats, as KindMajor when the
//     cycle was forced and KindIncremental otherwise;
//   - scavenger CPU time accrued since the last poll, as KindMinor;
//   - finalizers executed since the last poll, as KindWeakCallback.
//
// The first poll after the first subscription only records a baseline.
type RuntimeSource struct {
	clock    clock.Clock
	interval time.Duration
	logger   zerolog.Logger
	feed     *Feed

	mu          sync.Mutex
	subscribers int
	repeater    *clock.Repeater
	gcStats     debug.GCStats
	samples     []metrics.Sample
	last        counters
}

// counters are the cumulative runtime values compared between polls.
type counters struct {
	numGC       int64
	forced      uint64
	scavengeCPU float64
	finalizers  uint64
}

// RuntimeSourceConfig configures a RuntimeSource.
type RuntimeSourceConfig struct {
	// PollInterval between runtime reads (default: 100ms).
	PollInterval time.Duration
	// Clock drives polling (default: real clock).
	Clock clock.Clock
}

// NewRuntimeSource creates a source backed by the current process.
func NewRuntimeSource(config RuntimeSourceConfig, logger zerolog.Logger) *RuntimeSource {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}

	return &RuntimeSource{
		clock:    config.Clock,
		interval: config.PollInterval,
		logger:   logger.With().Str("component", "gc_runtime_source").Logger(),
		feed:     NewFeed(),
		samples: []metrics.Sample{
			{Name: metricForcedCycles},
			{Name: metricScavengeCPU},
			{Name: metricFinalizersRun},
		},
	}
}

// Subscribe registers h and starts polling if h is the first subscriber.
func (s *RuntimeSource) Subscribe(h Handler) func() {
	unsubscribe := s.feed.Subscribe(h)

	s.mu.Lock()
	s.subscribers++
	if s.subscribers == 1 {
		s.read(true)
		s.repeater = clock.Every(s.clock, s.interval, s.poll)
		s.logger.Debug().Dur("interval", s.interval).Msg("Started polling runtime GC stats")
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()

			s.mu.Lock()
			defer s.mu.Unlock()
			s.subscribers--
			if s.subscribers == 0 && s.repeater != nil {
				s.repeater.Stop()
				s.repeater = nil
				s.logger.Debug().Msg("Stopped polling runtime GC stats")
			}
		})
	}
}

func (s *RuntimeSource) poll() {
	s.mu.Lock()
	events := s.read(false)
	s.mu.Unlock()

	for _, ev := range events {
		s.feed.Publish(ev)
	}
}

// read samples the runtime, updates the baseline and returns the events
// that happened since the previous read. A baseline read returns nothing.
// Callers hold s.mu.
func (s *RuntimeSource) read(baseline bool) []Event {
	debug.ReadGCStats(&s.gcStats)
	metrics.Read(s.samples)

	prev := s.last
	cur := prev
	cur.numGC = s.gcStats.NumGC
	if v, ok := uint64Value(s.samples[0]); ok {
		cur.forced = v
	}
	if v := s.samples[1].Value; v.Kind() == metrics.KindFloat64 {
		cur.scavengeCPU = v.Float64()
	}
	if v, ok := uint64Value(s.samples[2]); ok {
		cur.finalizers = v
	}
	s.last = cur

	if baseline {
		return nil
	}
	return s.diff(prev, cur, s.gcStats.Pause, s.gcStats.PauseEnd, s.clock.Now())
}

// diff turns the change between two counter readings into events. pause
// and pauseEnd are the runtime's pause history, newest first.
func (s *RuntimeSource) diff(prev, cur counters, pause []time.Duration, pauseEnd []time.Time, now time.Time) []Event {
	var events []Event

	cycles := safe.CounterDelta(cur.numGC, prev.numGC)
	if cycles > len(pause) {
		s.logger.Debug().
			Int("missed", cycles-len(pause)).
			Msg("GC cycles completed faster than the pause history retains")
		cycles = len(pause)
	}
	forced := safe.CounterDelta(cur.forced, prev.forced)
	// Forced cycles are attributed to the newest of the new cycles.
	for i := cycles - 1; i >= 0; i-- {
		kind := KindIncremental
		if i < forced {
			kind = KindMajor
		}
		var end time.Time
		if i < len(pauseEnd) {
			end = pauseEnd[i]
		}
		events = append(events, Event{Kind: kind, Start: end.Add(-pause[i]), Duration: pause[i]})
	}

	if delta := cur.scavengeCPU - prev.scavengeCPU; delta > 0 {
		d := time.Duration(delta * float64(time.Second))
		events = append(events, Event{Kind: KindMinor, Start: now.Add(-d), Duration: d})
	}

	if cur.finalizers > prev.finalizers {
		events = append(events, Event{Kind: KindWeakCallback, Start: now})
	}

	return events
}

func uint64Value(sample metrics.Sample) (uint64, bool) {
	if sample.Value.Kind() != metrics.KindUint64 {
		return 0, false
	}
	return sample.Value.Uint64(), true
}
