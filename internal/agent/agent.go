// Package agent wires the runtime telemetry components together: the
// memory sampler, the GC monitor, the CPU profiling controller and the
// heap snapshot writer, all reporting through one reporter pipeline.
package agent

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/coral-mesh/rtmon/internal/clock"
	"github.com/coral-mesh/rtmon/internal/config"
	"github.com/coral-mesh/rtmon/internal/gc"
	"github.com/coral-mesh/rtmon/internal/memory"
	"github.com/coral-mesh/rtmon/internal/profiling"
	"github.com/coral-mesh/rtmon/internal/report"
	"github.com/coral-mesh/rtmon/internal/report/otelreport"
	"github.com/coral-mesh/rtmon/internal/report/promreport"
)

// Health summarizes the agent state.
type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthDegraded  Health = "degraded"
	HealthUnhealthy Health = "unhealthy"
)

// MeterName is the OpenTelemetry meter used by the otel sink.
const MeterName = "github.com/coral-mesh/rtmon"

// Agent runs the telemetry components for the current process.
type Agent struct {
	config *config.Config
	logger zerolog.Logger

	reporter   report.Reporter
	sampler    *memory.Sampler
	monitor    *gc.Monitor
	controller *profiling.Controller
	snapshots  *profiling.SnapshotWriter
	registry   *prometheus.Registry
	closers    []func() error

	mu      sync.Mutex
	running bool
	stopGC  func()
}

type options struct {
	clock     clock.Clock
	source    gc.Source
	reader    memory.Reader
	profiler  profiling.Profiler
	storage   profiling.Storage
	reporters []report.Reporter
	registry  *prometheus.Registry
}

// Option customizes an Agent.
type Option func(*options)

// WithClock replaces the real clock.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithGCSource replaces the runtime GC source.
func WithGCSource(s gc.Source) Option {
	return func(o *options) { o.source = s }
}

// WithGaugeReader replaces the runtime memory gauge reader.
func WithGaugeReader(r memory.Reader) Option {
	return func(o *options) { o.reader = r }
}

// WithProfiler replaces the runtime CPU profiler.
func WithProfiler(p profiling.Profiler) Option {
	return func(o *options) { o.profiler = p }
}

// WithStorage replaces filesystem artifact storage.
func WithStorage(s profiling.Storage) Option {
	return func(o *options) { o.storage = s }
}

// WithReporter adds a reporter to the pipeline.
func WithReporter(r report.Reporter) Option {
	return func(o *options) { o.reporters = append(o.reporters, r) }
}

// WithRegistry registers Prometheus gauges on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// New builds an agent from cfg. Nothing runs until Start.
func New(cfg *config.Config, logger zerolog.Logger, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := options{
		clock:    clock.Real(),
		profiler: profiling.PprofProfiler{},
		storage:  profiling.DirStorage{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	a := &Agent{
		config: cfg,
		logger: logger.With().Str("component", "agent").Logger(),
	}

	reporters, err := a.buildReporters(logger, o)
	if err != nil {
		return nil, err
	}
	a.reporter = reporters

	if o.source == nil {
		o.source = gc.NewRuntimeSource(gc.RuntimeSourceConfig{
			PollInterval: cfg.GC.PollInterval,
			Clock:        o.clock,
		}, logger)
	}
	if o.reader == nil {
		o.reader = memory.NewGaugeReader(o.clock, logger)
	}

	defaults := cfg.Defaults()
	a.sampler = memory.NewSampler(o.reader, a.reporter, memory.Options{
		Interval: cfg.Memory.Interval,
		Dev:      cfg.Dev(),
		Defaults: defaults,
		Clock:    o.clock,
		Logger:   &logger,
	})
	a.monitor = gc.NewMonitor(o.source, a.reporter, gc.Options{
		Debug:      cfg.GC.Debug,
		Defaults:   defaults,
		Clock:      o.clock,
		Logger:     &logger,
		LoadTick:   cfg.GC.LoadTick,
		LoadWindow: cfg.GC.LoadWindow,
	})
	a.controller = profiling.NewController(o.profiler, o.storage, profiling.Options{
		Dir:    cfg.Profiling.Dir,
		Format: profiling.Format(cfg.Profiling.Format),
		Clock:  o.clock,
		Logger: &logger,
	})
	a.snapshots = profiling.NewSnapshotWriter(o.storage, profiling.SnapshotOptions{
		Dir:              cfg.Profiling.Dir,
		GCBeforeSnapshot: cfg.Profiling.GCBeforeSnapshot,
		Logger:           &logger,
	})

	return a, nil
}

func (a *Agent) buildReporters(logger zerolog.Logger, o options) (report.Multi, error) {
	cfg := a.config.Reporter
	var reporters report.Multi

	if cfg.Log {
		reporters = append(reporters, report.NewLogReporter(logger))
	}

	if cfg.URL != "" || cfg.DevURL != "" {
		httpReporter, err := report.NewHTTPReporter(report.HTTPConfig{
			URL:         cfg.URL,
			DevURL:      cfg.DevURL,
			Timeout:     cfg.Timeout,
			MaxInFlight: cfg.MaxInFlight,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create http reporter: %w", err)
		}
		reporters = append(reporters, httpReporter)
		a.closers = append(a.closers, httpReporter.Close)
	}

	if cfg.Prometheus {
		a.registry = o.registry
		if a.registry == nil {
			a.registry = prometheus.NewRegistry()
		}
		promReporter, err := promreport.New(a.registry, promreport.DefaultNamespace)
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus reporter: %w", err)
		}
		reporters = append(reporters, promReporter)
	}

	if cfg.OTel {
		otelReporter, err := otelreport.New(otel.GetMeterProvider().Meter(MeterName))
		if err != nil {
			return nil, fmt.Errorf("failed to create otel reporter: %w", err)
		}
		reporters = append(reporters, otelReporter)
		a.closers = append(a.closers, otelReporter.Close)
	}

	reporters = append(reporters, o.reporters...)
	return reporters, nil
}

// Start runs the enabled components. With profiling.cpu_on_start or
// profiling.heap_on_start set it also starts a CPU capture or writes a
// heap snapshot; failures there are logged and do not fail Start.
func (a *Agent) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("agent already started")
	}
	a.running = true

	a.logger.Info().
		Str("env", a.config.Identity.Env).
		Str("project", a.config.Identity.Project).
		Bool("dev", a.config.Dev()).
		Msg("Starting runtime agent")

	if a.config.Memory.Enabled {
		a.sampler.Start()
	}
	if a.config.GC.Enabled {
		a.stopGC = a.monitor.Start()
	}

	if a.config.Profiling.CPUOnStart {
		result, err := a.controller.StartSession(a.config.Profiling.Duration)
		if err != nil {
			a.logger.Warn().Err(err).Msg("Failed to start CPU profile on startup")
		} else {
			a.logger.Info().Str("result", result).Msg("CPU profile requested on startup")
		}
	}
	if a.config.Profiling.HeapOnStart {
		if _, err := a.snapshots.Capture(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to write heap snapshot on startup")
		}
	}

	return nil
}

// Stop halts sampling and GC monitoring, abandons a running capture and
// flushes the reporters. Safe to call more than once.
func (a *Agent) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}
	a.running = false

	a.logger.Info().Msg("Stopping runtime agent")

	a.sampler.Stop()
	if a.stopGC != nil {
		a.stopGC()
		a.stopGC = nil
	}
	a.controller.Reset()

	var firstErr error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close reporter")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	a.closers = nil

	return firstErr
}

// Status is a point-in-time view of the agent.
type Status struct {
	Health         Health            `json:"health"`
	Running        bool              `json:"running"`
	MemorySampling bool              `json:"memorySampling"`
	GC             gc.Stats          `json:"gc"`
	GCLoad         float64           `json:"gcLoad"`
	GCUnclassified uint64            `json:"gcUnclassified"`
	Profiling      profiling.Session `json:"profiling"`
}

// Status returns the current agent status.
func (a *Agent) Status() Status {
	a.mu.Lock()
	running := a.running
	a.mu.Unlock()

	s := Status{
		Running:        running,
		MemorySampling: a.sampler.Running(),
		GC:             a.monitor.Stats(),
		GCLoad:         a.monitor.Load(),
		GCUnclassified: a.monitor.Unclassified(),
		Profiling:      a.controller.Status(),
	}

	switch {
	case !running:
		s.Health = HealthUnhealthy
	case s.Profiling.LastError != "":
		s.Health = HealthDegraded
	default:
		s.Health = HealthHealthy
	}
	return s
}

// Controller returns the CPU profiling controller.
func (a *Agent) Controller() *profiling.Controller {
	return a.controller
}

// Snapshots returns the heap snapshot writer.
func (a *Agent) Snapshots() *profiling.SnapshotWriter {
	return a.snapshots
}

// Registry returns the Prometheus registry, or nil when the Prometheus
// sink is disabled.
func (a *Agent) Registry() *prometheus.Registry {
	return a.registry
}

// Config returns the agent configuration.
func (a *Agent) Config() *config.Config {
	return a.config
}
