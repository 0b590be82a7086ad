package sdk

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/rtmon/internal/agent"
	"github.com/coral-mesh/rtmon/internal/config"
	"github.com/coral-mesh/rtmon/internal/report/promreport"
	"github.com/coral-mesh/rtmon/pkg/sdk/debug"
)

// SDK is a runtime agent embedded in an application.
type SDK struct {
	logger      zerolog.Logger
	serviceName string
	agent       *agent.Agent
	debugServer *debug.Server
}

// Config contains SDK configuration options.
type Config struct {
	// ServiceName is the name of the service (required). It becomes the
	// project of every reported envelope.
	ServiceName string

	// Agent is the agent configuration (optional, defaults to
	// config.DefaultConfig()).
	Agent *config.Config

	// EnableDebug starts the debug server. When Agent.Debug.Addr is empty
	// the server listens on an auto-selected localhost port.
	EnableDebug bool

	// Logger is the logger instance (optional, defaults to zerolog.Nop()).
	Logger zerolog.Logger

	// Options are passed to the agent.
	Options []agent.Option
}

// New creates and starts an embedded agent.
func New(cfg Config) (*SDK, error) {
	if cfg.ServiceName == "" {
		return nil, fmt.Errorf("service name is required")
	}

	agentConfig := cfg.Agent
	if agentConfig == nil {
		agentConfig = config.DefaultConfig()
	}
	agentConfig.Identity.Project = cfg.ServiceName

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("service", cfg.ServiceName).Logger()

	a, err := agent.New(agentConfig, logger, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	s := &SDK{
		logger:      logger.With().Str("component", "rtmon_sdk").Logger(),
		serviceName: cfg.ServiceName,
		agent:       a,
	}

	if err := a.Start(); err != nil {
		return nil, fmt.Errorf("failed to start agent: %w", err)
	}

	if cfg.EnableDebug || agentConfig.Debug.Addr != "" {
		if err := s.startDebugServer(logger); err != nil {
			_ = a.Stop()
			return nil, fmt.Errorf("failed to initialize debug server: %w", err)
		}
	}

	s.logger.Info().
		Bool("debug_enabled", s.debugServer != nil).
		Msg("Runtime agent embedded")

	return s, nil
}

// Start embeds an agent with the default configuration and the debug
// server enabled.
func Start(serviceName string) (*SDK, error) {
	return New(Config{ServiceName: serviceName, EnableDebug: true})
}

func (s *SDK) startDebugServer(logger zerolog.Logger) error {
	cfg := s.agent.Config()

	opts := debug.Options{
		Addr:     cfg.Debug.Addr,
		BasePath: cfg.Debug.BasePath,
		Duration: cfg.Profiling.Duration,
		Status:   func() any { return s.agent.Status() },
	}
	if reg := s.agent.Registry(); reg != nil {
		opts.Metrics = promreport.Handler(reg)
	}

	server := debug.NewServer(logger, s.agent.Controller(), s.agent.Snapshots(), opts)
	if err := server.Start(); err != nil {
		return err
	}
	s.debugServer = server
	return nil
}

// Close stops the debug server and the agent.
func (s *SDK) Close() error {
	s.logger.Info().Msg("Shutting down runtime agent")

	if s.debugServer != nil {
		if err := s.debugServer.Stop(); err != nil {
			s.logger.Error().Err(err).Msg("Failed to stop debug server")
		}
	}

	return s.agent.Stop()
}

// DebugAddr returns the debug server address, or "" if debug is not enabled.
func (s *SDK) DebugAddr() string {
	if s.debugServer == nil {
		return ""
	}
	return s.debugServer.Addr()
}

// Agent returns the embedded agent.
func (s *SDK) Agent() *agent.Agent {
	return s.agent
}
