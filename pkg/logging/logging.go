// Package logging builds the zerolog loggers used by the CLI, the HTTP API
// and the storage layers.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ssargent/fieldwire/pkg/config"
)

const appName = "fieldwire"

// ParseLevel maps a config level name to a zerolog level. Unknown or empty
// names fall back to info and report false.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	}
	return zerolog.InfoLevel, false
}

// New builds a logger writing to w (stderr when nil). Format "json" writes
// one JSON object per line; anything else uses the console writer.
func New(cfg config.Logging, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	level, _ := ParseLevel(cfg.Level)
	return zerolog.New(w).Level(level).With().Timestamp().Str("app", appName).Logger()
}

// Init builds a logger with New and installs it as the global zerolog logger.
func Init(cfg config.Logging, w io.Writer) zerolog.Logger {
	logger := New(cfg, w)
	log.Logger = logger
	return logger
}
