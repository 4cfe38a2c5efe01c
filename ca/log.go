package ca

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds a console logger for commands and tools. Library types
// stay quiet unless a logger is handed in through WithLogger.
func NewLogger(component string) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(out).With().Timestamp().Str("component", component).Logger()
}
