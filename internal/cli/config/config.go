// Package config implements the 'rtmon config' command.
package config

import (
	"github.com/spf13/cobra"

	"github.com/coral-mesh/rtmon/internal/cli/helpers"
	"github.com/coral-mesh/rtmon/internal/config"
)

// NewConfigCmd creates the config command.
func NewConfigCmd() *cobra.Command {
	var flags helpers.ConfigFlags

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the effective agent configuration as YAML.

Configuration Priority:
  1. Command-line flags (highest)
  2. RTMON_* environment variables
  3. Config file (--config)
  4. Built-in defaults

Examples:
  rtmon config
  rtmon config -c rtmon.yaml
  RTMON_MEMORY_INTERVAL=1s rtmon config`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.Load()
			if err != nil {
				return err
			}

			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	flags.AddFlags(cmd.Flags())
	return cmd
}
