package pebble

import (
	"fmt"
	"log/slog"

	"github.com/cockroachdb/pebble"
)

// pebbleLogger adapts slog.Logger to the pebble.Logger interface.
type pebbleLogger struct {
	logger *slog.Logger
}

var _ pebble.Logger = (*pebbleLogger)(nil)

func (pl *pebbleLogger) Infof(format string, args ...any) {
	pl.logger.Info(fmt.Sprintf(format, args...), "engine", "pebble")
}

func (pl *pebbleLogger) Errorf(format string, args ...any) {
	pl.logger.Error(fmt.Sprintf(format, args...), "engine", "pebble")
}

// Fatalf must not return; pebble treats it as unrecoverable.
func (pl *pebbleLogger) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	pl.logger.Error(msg, "engine", "pebble", "fatal", true)
	panic(msg)
}
