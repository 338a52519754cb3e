// Package logger provides the configured zerolog logger shared by all
// Evara components.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a service-tagged logger writing JSON to stdout.
func New(serviceName string) zerolog.Logger {
	return newLogger(serviceName, os.Stdout, false)
}

// NewConsole returns a human-readable logger for interactive commands.
func NewConsole(serviceName string) zerolog.Logger {
	return newLogger(serviceName, os.Stderr, true)
}

func newLogger(serviceName string, out io.Writer, console bool) zerolog.Logger {
	if console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}

// SetDebug switches the global level between info and debug.
func SetDebug(enabled bool) {
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
