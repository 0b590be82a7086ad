package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/coral-mesh/rtmon/internal/logging"
	"github.com/coral-mesh/rtmon/internal/profiling"
)

var logLevels = []string{"trace", "debug", "info", "warn", "error"}

// Validate checks that every value is usable. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := logging.LookupLevel(c.Logging.Level); !ok {
		errs = append(errs, fmt.Errorf("logging.level %q must be one of %s", c.Logging.Level, strings.Join(logLevels, ", ")))
	}
	if c.Identity.Project == "" {
		errs = append(errs, fmt.Errorf("identity.project cannot be empty"))
	}

	if c.Memory.Interval <= 0 {
		errs = append(errs, fmt.Errorf("memory.interval must be positive, got %s", c.Memory.Interval))
	}

	if c.GC.LoadTick <= 0 {
		errs = append(errs, fmt.Errorf("gc.load_tick must be positive, got %s", c.GC.LoadTick))
	}
	if c.GC.LoadWindow <= 0 {
		errs = append(errs, fmt.Errorf("gc.load_window must be positive, got %d", c.GC.LoadWindow))
	}
	if c.GC.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("gc.poll_interval must be positive, got %s", c.GC.PollInterval))
	}

	if c.Profiling.Dir == "" {
		errs = append(errs, fmt.Errorf("profiling.dir cannot be empty"))
	}
	if c.Profiling.Duration <= 0 {
		errs = append(errs, fmt.Errorf("profiling.duration must be positive, got %s", c.Profiling.Duration))
	}
	switch profiling.Format(c.Profiling.Format) {
	case profiling.FormatPprof, profiling.FormatProto:
	default:
		errs = append(errs, fmt.Errorf("profiling.format %q must be pprof or proto", c.Profiling.Format))
	}

	if c.Reporter.Timeout < 0 {
		errs = append(errs, fmt.Errorf("reporter.timeout cannot be negative"))
	}
	if c.Reporter.MaxInFlight < 0 {
		errs = append(errs, fmt.Errorf("reporter.max_in_flight cannot be negative"))
	}

	if c.Debug.Addr != "" && !strings.HasPrefix(c.Debug.BasePath, "/") {
		errs = append(errs, fmt.Errorf("debug.base_path %q must start with /", c.Debug.BasePath))
	}

	return errors.Join(errs...)
}
