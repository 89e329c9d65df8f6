package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Setup builds the root logger. level accepts the usual zerolog names
// (trace through panic); unknown values fall back to info. format "pretty"
// selects the console writer for local development, anything else emits
// JSON lines for log shipping.
func Setup(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	ctx := zerolog.New(os.Stdout).With().Timestamp()
	if format == "pretty" {
		ctx = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.Kitchen,
		}).With().Timestamp().Caller()
	}

	return ctx.Logger()
}
