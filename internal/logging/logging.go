// Package logging provides the structured logger used by the reader package.
// Level is latched once from MEDIA_LOG_LEVEL: 0 disables logging, 1 enables
// warnings, 2 enables warnings and debug detail. This mirrors the teacher's
// own debug-gated log.SetOutput latch in config.go's initlog(), generalized
// from stdlib log.Printf lines to zerolog's structured call sites.
package logging

import (
	"os"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

func initLogger() {
	level := 0
	if v := os.Getenv("MEDIA_LOG_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			level = n
		}
	}

	zlevel := zerolog.Disabled
	switch {
	case level >= 2:
		zlevel = zerolog.DebugLevel
	case level == 1:
		zlevel = zerolog.WarnLevel
	}

	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zlevel).
		With().Timestamp().Logger()
}

// L returns the shared logger. Safe to call concurrently from multiple
// Readers and the TMB.
func L() *zerolog.Logger {
	once.Do(initLogger)
	return &logger
}
