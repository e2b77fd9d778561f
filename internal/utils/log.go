package utils

import (
	"os"

	"github.com/rs/zerolog"
)

// Log is the shared logger for the whole takeover sequence.
var Log zerolog.Logger

func SetLogger(debug bool) {
	level := zerolog.InfoLevel
	if debug || os.Getenv("TAKEOVER_DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}
