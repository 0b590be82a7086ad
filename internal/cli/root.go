// Package cli implements the rtmon command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/coral-mesh/rtmon/internal/cli/config"
	"github.com/coral-mesh/rtmon/internal/cli/run"
	"github.com/coral-mesh/rtmon/pkg/version"
)

// NewRootCmd creates the rtmon root command with all subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rtmon",
		Short: "rtmon - in-process runtime telemetry for Go services",
		Long: `Runtime telemetry agent for Go processes.

The agent samples memory gauges, aggregates garbage collection events
into per-kind counters and a load estimate, and captures CPU profiles
and heap snapshots on demand.

Samples are reported as JSON envelopes to the log, an HTTP endpoint,
Prometheus or OpenTelemetry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(run.NewRunCmd())
	rootCmd.AddCommand(config.NewConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.String())
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
