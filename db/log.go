package db

import (
	"os"

	"github.com/rs/zerolog"
)

// Log is the package-wide structured logger. Subsystems (BufferPool,
// LockManager, Catalog, operators) log through it rather than fmt/log,
// so every structural event (eviction, lock timeout, commit/abort,
// table registration) carries consistent fields.
//
// The level is controlled by DBCORE_LOG_LEVEL (trace|debug|info|warn|
// error|disabled); it defaults to "info".
var Log zerolog.Logger

func init() {
	level, err := zerolog.ParseLevel(os.Getenv("DBCORE_LOG_LEVEL"))
	if err != nil || os.Getenv("DBCORE_LOG_LEVEL") == "" {
		level = zerolog.InfoLevel
	}
	Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
