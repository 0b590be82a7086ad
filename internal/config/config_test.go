package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/rtmon/internal/report"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5*time.Second, cfg.Memory.Interval)
	assert.Equal(t, 180*time.Second, cfg.Profiling.Duration)
	assert.Equal(t, "dist/public", cfg.Profiling.Dir)
	assert.Equal(t, time.Second, cfg.GC.LoadTick)
	assert.Equal(t, 10, cfg.GC.LoadWindow)
	assert.Equal(t, 100*time.Millisecond, cfg.GC.PollInterval)
	assert.True(t, cfg.GC.Debug)
	assert.False(t, cfg.Dev())

	assert.Equal(t, report.Defaults{Env: "local", Platform: "go", Project: "go-local"}, cfg.Defaults())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtmon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
identity:
  env: staging
  project: checkout
memory:
  interval: 2s
profiling:
  duration: 30s
  format: proto
`), 0o644))

	t.Setenv("RTMON_ENV", "production")
	t.Setenv("RTMON_MODE", "local")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Identity.Env, "environment wins over file")
	assert.Equal(t, "checkout", cfg.Identity.Project)
	assert.Equal(t, 2*time.Second, cfg.Memory.Interval)
	assert.Equal(t, 30*time.Second, cfg.Profiling.Duration)
	assert.Equal(t, "proto", cfg.Profiling.Format)
	assert.True(t, cfg.Dev())

	// Untouched sections keep their defaults.
	assert.Equal(t, 10, cfg.GC.LoadWindow)
	assert.Equal(t, "dist/public", cfg.Profiling.Dir)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Memory, cfg.Memory)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("memory: [not, a, map]"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "failed to parse config file")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("memory:\n  interval: 0s\n"), 0o644))
	_, err = Load(invalid)
	assert.ErrorContains(t, err, "memory.interval must be positive")
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "verbose"
	cfg.GC.LoadWindow = 0
	cfg.Profiling.Format = "svg"
	cfg.Debug.Addr = ":6060"
	cfg.Debug.BasePath = "debug"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "gc.load_window")
	assert.Contains(t, err.Error(), "profiling.format")
	assert.Contains(t, err.Error(), "debug.base_path")
}

func TestMarshal_RoundTrips(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Identity.Extra = map[string]string{"region": "eu"}

	data, err := Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "interval: 5s")

	decoded := &Config{}
	require.NoError(t, yaml.Unmarshal(data, decoded))
	assert.Equal(t, cfg, decoded)
}

func TestValidate_AcceptsLevelsTheLoggerParses(t *testing.T) {
	for _, level := range []string{"warning", " WARN ", "Debug", "trace"} {
		cfg := DefaultConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), level)
	}
}

func TestLoad_EnvWarningLevel(t *testing.T) {
	t.Setenv("RTMON_LOG_LEVEL", "warning")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warning", cfg.Logging.Level)
}
