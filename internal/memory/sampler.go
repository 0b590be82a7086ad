package memory

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/rtmon/internal/clock"
	"github.com/coral-mesh/rtmon/internal/report"
)

// DefaultInterval is the default sampling interval.
const DefaultInterval = 5 * time.Second

// Options configures a Sampler.
type Options struct {
	// Interval between samples (default: 5s).
	Interval time.Duration
	// Dev is set on every reported envelope. It comes from the agent's
	// run mode, not from callers.
	Dev bool
	// Defaults fills the envelope base.
	Defaults report.Defaults
	// Clock drives the sampling timer (default: real clock).
	Clock clock.Clock
	// Logger for the sampler (default: disabled).
	Logger *zerolog.Logger
}

// Sampler periodically reads a Sample and reports it. At most one
// sampling timer is active per Sampler.
type Sampler struct {
	reader   Reader
	reporter report.Reporter
	options  Options
	logger   zerolog.Logger

	mu       sync.Mutex
	repeater *clock.Repeater
}

// NewSampler creates a sampler.
func NewSampler(reader Reader, reporter report.Reporter, opts Options) *Sampler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if reporter == nil {
		reporter = report.Nop()
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "memory_sampler").Logger()
	}

	return &Sampler{
		reader:   reader,
		reporter: reporter,
		options:  opts,
		logger:   logger,
	}
}

// Start begins sampling. Any previously started timer is cancelled first,
// so repeated calls never stack timers.
func (s *Sampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repeater != nil {
		s.repeater.Stop()
		s.logger.Debug().Msg("Replacing running memory sampler")
	}
	s.repeater = clock.Every(s.options.Clock, s.options.Interval, s.sample)

	s.logger.Info().
		Dur("interval", s.options.Interval).
		Bool("dev", s.options.Dev).
		Msg("Memory sampler started")
}

// Stop cancels sampling. Safe to call more than once.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repeater == nil {
		return
	}
	s.repeater.Stop()
	s.repeater = nil
	s.logger.Info().Msg("Memory sampler stopped")
}

// Running reports whether a sampling timer is active.
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repeater != nil
}

func (s *Sampler) sample() {
	sample := s.reader.Read()
	s.reporter.Report(
		report.NewEnvelope(report.TypeMemory, s.options.Defaults, sample),
		report.Options{Dev: s.options.Dev},
	)
}
