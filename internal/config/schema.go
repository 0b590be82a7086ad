package config

import (
	"time"

	"github.com/coral-mesh/rtmon/internal/memory"
	"github.com/coral-mesh/rtmon/internal/profiling"
	"github.com/coral-mesh/rtmon/internal/report"
)

// Config is the complete agent configuration. It is built once at the
// boundary (CLI or SDK) and passed down; core packages never read the
// environment themselves.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Identity  IdentityConfig  `yaml:"identity"`
	Memory    MemoryConfig    `yaml:"memory"`
	GC        GCConfig        `yaml:"gc"`
	Profiling ProfilingConfig `yaml:"profiling"`
	Reporter  ReporterConfig  `yaml:"reporter"`
	Debug     DebugConfig     `yaml:"debug"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"RTMON_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"RTMON_LOG_PRETTY"`
}

// IdentityConfig holds the fields stamped on every envelope.
type IdentityConfig struct {
	// Env names the deployment environment.
	Env string `yaml:"env" env:"RTMON_ENV"`
	// Project names the unit being monitored.
	Project  string `yaml:"project" env:"RTMON_UNIT_NAME"`
	Platform string `yaml:"platform" env:"RTMON_PLATFORM"`
	// Mode "local" marks memory envelopes as dev.
	Mode string `yaml:"mode" env:"RTMON_MODE"`
	// Extra is merged into every envelope base. From the environment it
	// is read as comma-separated key=value pairs.
	Extra map[string]string `yaml:"extra,omitempty" env:"RTMON_EXTRA"`
}

// MemoryConfig configures the memory sampler.
type MemoryConfig struct {
	Enabled  bool          `yaml:"enabled" env:"RTMON_MEMORY_ENABLED"`
	Interval time.Duration `yaml:"interval" env:"RTMON_MEMORY_INTERVAL"`
}

// GCConfig configures the GC monitor and its runtime source.
type GCConfig struct {
	Enabled bool `yaml:"enabled" env:"RTMON_GC_ENABLED"`
	// Debug sets the dev option on GC envelopes.
	Debug        bool          `yaml:"debug" env:"RTMON_GC_DEBUG"`
	LoadTick     time.Duration `yaml:"load_tick"`
	LoadWindow   int           `yaml:"load_window"`
	PollInterval time.Duration `yaml:"poll_interval" env:"RTMON_GC_POLL_INTERVAL"`
}

// ProfilingConfig configures CPU profile sessions and heap snapshots.
type ProfilingConfig struct {
	Dir              string        `yaml:"dir" env:"RTMON_PROFILE_DIR"`
	Duration         time.Duration `yaml:"duration" env:"RTMON_PROFILE_DURATION"`
	Format           string        `yaml:"format" env:"RTMON_PROFILE_FORMAT"`
	CPUOnStart       bool          `yaml:"cpu_on_start" env:"RTMON_CPU_PROFILE_ON_START"`
	HeapOnStart      bool          `yaml:"heap_on_start" env:"RTMON_HEAP_SNAPSHOT_ON_START"`
	GCBeforeSnapshot bool          `yaml:"gc_before_snapshot"`
}

// ReporterConfig selects and configures the reporting sinks.
type ReporterConfig struct {
	// Log writes every envelope to the process logger.
	Log bool `yaml:"log" env:"RTMON_REPORT_LOG"`
	// URL and DevURL enable the HTTP reporter.
	URL         string        `yaml:"url" env:"RTMON_REPORT_URL"`
	DevURL      string        `yaml:"dev_url" env:"RTMON_REPORT_DEV_URL"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxInFlight int64         `yaml:"max_in_flight"`
	// Prometheus exposes samples as gauges on the debug handler's /metrics.
	Prometheus bool `yaml:"prometheus" env:"RTMON_REPORT_PROMETHEUS"`
	// OTel publishes samples on the global OpenTelemetry meter provider.
	OTel bool `yaml:"otel" env:"RTMON_REPORT_OTEL"`
}

// DebugConfig configures the HTTP trigger routes.
type DebugConfig struct {
	// Addr to listen on; empty disables the debug server.
	Addr     string `yaml:"addr" env:"RTMON_DEBUG_ADDR"`
	BasePath string `yaml:"base_path"`
}

// LocalMode is the Identity.Mode value that marks envelopes as dev.
const LocalMode = "local"

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Identity: IdentityConfig{
			Env:      "local",
			Project:  "go-local",
			Platform: report.DefaultPlatform,
		},
		Memory: MemoryConfig{
			Enabled:  true,
			Interval: memory.DefaultInterval,
		},
		GC: GCConfig{
			Enabled:      true,
			Debug:        true,
			LoadTick:     time.Second,
			LoadWindow:   10,
			PollInterval: 100 * time.Millisecond,
		},
		Profiling: ProfilingConfig{
			Dir:      profiling.DefaultDir,
			Duration: profiling.DefaultDuration,
			Format:   string(profiling.FormatPprof),
		},
		Reporter: ReporterConfig{
			Log:         true,
			Timeout:     5 * time.Second,
			MaxInFlight: 4,
		},
		Debug: DebugConfig{
			BasePath: "/debug/runtime",
		},
	}
}

// Defaults returns the envelope defaults built from the identity section.
func (c *Config) Defaults() report.Defaults {
	return report.Defaults{
		Env:      c.Identity.Env,
		Platform: c.Identity.Platform,
		Project:  c.Identity.Project,
		Extra:    c.Identity.Extra,
	}
}

// Dev reports whether the agent runs in local mode.
func (c *Config) Dev() bool {
	return c.Identity.Mode == LocalMode
}
