// Package run implements the 'rtmon run' command.
package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/coral-mesh/rtmon/internal/agent"
	"github.com/coral-mesh/rtmon/internal/cli/helpers"
	"github.com/coral-mesh/rtmon/internal/config"
	"github.com/coral-mesh/rtmon/internal/errors"
	"github.com/coral-mesh/rtmon/internal/logging"
	"github.com/coral-mesh/rtmon/pkg/sdk"
)

// Options controls a run.
type Options struct {
	// Workload enables the synthetic allocation workload.
	Workload       bool
	WorkloadConfig WorkloadConfig
	// AgentOptions are passed to the agent.
	AgentOptions []agent.Option
	// Ready, when set, is called once the agent is running.
	Ready func(*sdk.SDK)
}

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var (
		flags    helpers.ConfigFlags
		workload bool
		wcfg     = DefaultWorkloadConfig()
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the runtime agent against this process",
		Long: `Run the runtime agent against the rtmon process itself until interrupted.

The agent samples memory gauges, aggregates GC events and reports them
through the configured reporters. With --debug-addr it also serves the
trigger routes for CPU profiles, heap snapshots and status.

With --workload a synthetic allocation loop runs alongside the agent so
there is memory growth and GC activity to observe.

Examples:
  rtmon run
  rtmon run --workload --debug-addr 127.0.0.1:6061
  rtmon run -c rtmon.yaml --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.Load()
			if err != nil {
				return err
			}

			logger := logging.New(logging.Config{
				Level:  cfg.Logging.Level,
				Pretty: cfg.Logging.Pretty,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return Run(ctx, cfg, logger, Options{
				Workload:       workload,
				WorkloadConfig: wcfg,
			})
		},
	}

	flags.AddFlags(cmd.Flags())
	cmd.Flags().BoolVar(&workload, "workload", false, "Run a synthetic allocation workload")
	cmd.Flags().DurationVar(&wcfg.Interval, "workload-interval", wcfg.Interval, "Interval between workload allocations")
	cmd.Flags().IntVar(&wcfg.ChunkSize, "workload-chunk", wcfg.ChunkSize, "Bytes allocated per workload round")

	return cmd
}

// Run embeds the agent and blocks until ctx is done or the workload fails.
func Run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) error {
	monitor, err := sdk.New(sdk.Config{
		ServiceName: cfg.Identity.Project,
		Agent:       cfg,
		Logger:      logger,
		Options:     opts.AgentOptions,
	})
	if err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}
	defer errors.DeferStop(logger, monitor.Close, "Failed to stop agent")

	if addr := monitor.DebugAddr(); addr != "" {
		logger.Info().Str("addr", addr).Msg("Debug routes available")
	}
	if opts.Ready != nil {
		opts.Ready(monitor)
	}

	g, gctx := errgroup.WithContext(ctx)
	if opts.Workload {
		workload := NewWorkload(opts.WorkloadConfig, logger)
		g.Go(func() error {
			return workload.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Received shutdown signal - stopping agent")
		return nil
	})

	return g.Wait()
}
