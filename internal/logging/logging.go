// Package logging configures the application-wide zerolog logger.
// In dev the output is a human-readable console writer; elsewhere it is
// structured JSON suitable for log shipping.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger for the given application environment.
// appEnv "dev" enables console output and debug level.
func New(appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "dev" {
		level = zerolog.DebugLevel
	}

	var logger zerolog.Logger
	if appEnv == "dev" {
		out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		logger = zerolog.New(out)
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(level).With().Timestamp().Logger()
}

// Component returns a child logger tagged with a component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// Nop returns a disabled logger for tests and optional dependencies.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
