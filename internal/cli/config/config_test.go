package config

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigCmd_PrintsEffectiveConfig(t *testing.T) {
	t.Setenv("RTMON_MEMORY_INTERVAL", "1s")

	cmd := NewConfigCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--project", "checkout"})

	require.NoError(t, cmd.Execute())

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))

	identity := got["identity"].(map[string]any)
	assert.Equal(t, "checkout", identity["project"])

	memory := got["memory"].(map[string]any)
	assert.Equal(t, "1s", memory["interval"])
}

func TestConfigCmd_InvalidConfig(t *testing.T) {
	cmd := NewConfigCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--log-level", "loud"})

	assert.Error(t, cmd.Execute())
}
