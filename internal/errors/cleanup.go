// Package errors provides cleanup helpers shared by the agent's components.
package errors

import (
	"io"

	"github.com/rs/zerolog"
)

// DeferClose closes an io.Closer and logs a failure instead of dropping it.
// Use this in defer statements to avoid suppressing close errors.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

// DeferStop runs a shutdown function and logs a failure.
func DeferStop(logger zerolog.Logger, stop func() error, msg string) {
	if stop == nil {
		return
	}
	if err := stop(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}
