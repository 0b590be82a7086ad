package report

import (
	"github.com/rs/zerolog"
)

// LogReporter writes each envelope as a structured log line. Dev envelopes
// are logged at info level, the rest at debug.
type LogReporter struct {
	logger zerolog.Logger
}

// NewLogReporter creates a reporter that logs envelopes to logger.
func NewLogReporter(logger zerolog.Logger) *LogReporter {
	return &LogReporter{
		logger: logger.With().Str("component", "log_reporter").Logger(),
	}
}

// Report logs env.
func (r *LogReporter) Report(env Envelope, opts Options) {
	event := r.logger.Debug()
	if opts.Dev {
		event = r.logger.Info()
	}
	event.
		Str("type", string(env.Type)).
		Str("env", env.Base.Env).
		Str("project", env.Base.Project).
		Interface("data", env.Data).
		Msg("Runtime sample")
}
