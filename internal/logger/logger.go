package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates the root logger for the bot. Level falls back to info when the
// configured value is not recognised.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}
