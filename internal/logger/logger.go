// Package logger sets up the process-wide zerolog logger: a
// human-readable console writer for development, switchable to plain
// JSON for production, with per-peer child loggers.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is the process-wide base logger; per-peer loggers derive from it.
var Log zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	Log = zerolog.New(output).
		With().
		Timestamp().
		Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// SetJSONOutput switches to plain JSON logging.
func SetJSONOutput() {
	Log = zerolog.New(os.Stdout).
		With().
		Timestamp().
		Logger()
}

// SetDebugLevel enables debug-level logging, used to surface swallowed
// InvalidChecksum/UnknownCommand/notfound events.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// PeerLogger returns a logger scoped to one peer connection.
func PeerLogger(network, addr string) zerolog.Logger {
	return Log.With().
		Str("network", network).
		Str("peer", addr).
		Logger()
}
