// Package helpers holds flag handling shared by the rtmon commands.
package helpers

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/coral-mesh/rtmon/internal/config"
)

// ConfigFlags holds the flag values that select and override the agent
// configuration.
type ConfigFlags struct {
	Path      string
	LogLevel  string
	DebugAddr string
	Project   string
}

// AddFlags adds the configuration flags to a FlagSet.
func (f *ConfigFlags) AddFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&f.Path, "config", "c", "", "Path to a YAML config file")
	flags.StringVar(&f.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.StringVar(&f.DebugAddr, "debug-addr", "", "Serve the debug trigger routes on this address (e.g. 127.0.0.1:6061)")
	flags.StringVar(&f.Project, "project", "", "Project name reported with every sample")
}

// Load builds the configuration.
// Priority:
// 1. flags
// 2. RTMON_* environment variables
// 3. config file
// 4. defaults
func (f *ConfigFlags) Load() (*config.Config, error) {
	cfg, err := config.Load(f.Path)
	if err != nil {
		return nil, err
	}

	if f.LogLevel != "" {
		cfg.Logging.Level = f.LogLevel
	}
	if f.DebugAddr != "" {
		cfg.Debug.Addr = f.DebugAddr
	}
	if f.Project != "" {
		cfg.Identity.Project = f.Project
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
