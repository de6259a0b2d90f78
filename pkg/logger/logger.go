package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log" // zerolog's global logger
)

// InitLogger initializes zerolog's global logger instance.
// format "json" keeps zerolog's default JSON output on stderr; anything else
// switches to the human-readable console writer.
func InitLogger(levelStr, format string) {
	var level zerolog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	case "fatal":
		level = zerolog.FatalLevel
	case "panic":
		level = zerolog.PanicLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	if format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", "line-order-intake").Logger()

	log.Info().Str("logFormat", format).Str("logLevel", level.String()).Msg("Logger initialized")
}
