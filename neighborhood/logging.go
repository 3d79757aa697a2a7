// =============================================================================
// logging.go - Diagnostic Logging
// =============================================================================
//
// Diagnostics go to stderr through zerolog's human readable ConsoleWriter so
// they never mix with command output on stdout. The level comes from the
// config file or --log-level; NEIGHBORHOOD_LOG_LEVEL overrides both, which
// is handy for one-off debugging of a protocol exchange:
//
//	NEIGHBORHOOD_LOG_LEVEL=debug neighborhood -c 192.168.1.20 drives
//
// =============================================================================

package main

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EnvLogLevel overrides the configured log level.
const EnvLogLevel = "NEIGHBORHOOD_LOG_LEVEL"

var configureOnce sync.Once

// newLogger builds the CLI logger writing to w. The package-level zerolog
// logger is pointed at the first logger built so stray log calls end up in
// the same place.
func newLogger(w io.Writer, level string) zerolog.Logger {
	if env, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		level = env.String()
	}
	lvl, ok := parseLevel(level)
	if !ok {
		lvl = zerolog.WarnLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.TimeOnly,
	}
	logger := zerolog.New(output).Level(lvl).With().Timestamp().Logger()

	configureOnce.Do(func() {
		log.Logger = logger
	})
	return logger
}

// parseLevel accepts zerolog's level names plus "off" and "none" for
// disabled. Empty and unknown names report false.
func parseLevel(raw string) (zerolog.Level, bool) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "off", "none":
		return zerolog.Disabled, true
	}
	lvl, err := zerolog.ParseLevel(raw)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.WarnLevel, false
	}
	return lvl, true
}
