package helpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFlags_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtmon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: warn
identity:
  project: from-file
memory:
  interval: 2s
`), 0o600))

	var f ConfigFlags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"-c", path, "--project", "from-flag", "--debug-addr", "127.0.0.1:6061"}))

	cfg, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "from-flag", cfg.Identity.Project)
	assert.Equal(t, "127.0.0.1:6061", cfg.Debug.Addr)
	assert.Equal(t, 2*time.Second, cfg.Memory.Interval)
}

func TestConfigFlags_InvalidOverride(t *testing.T) {
	f := ConfigFlags{LogLevel: "loud"}
	_, err := f.Load()
	assert.ErrorContains(t, err, "logging.level")
}

func TestConfigFlags_MissingFile(t *testing.T) {
	f := ConfigFlags{Path: filepath.Join(t.TempDir(), "missing.yaml")}
	_, err := f.Load()
	assert.Error(t, err)
}
