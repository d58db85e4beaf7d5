// Package testlog configures the global logger for test runs.
package testlog

import (
	"os"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var configureOnce sync.Once

// Start quiets the global logger so service logs do not drown test
// output. Set METABRIDGE_LOG_LEVEL to see them during a run.
func Start(t *testing.T) {
	t.Helper()
	configureOnce.Do(func() {
		level := zerolog.WarnLevel
		if raw := os.Getenv("METABRIDGE_LOG_LEVEL"); raw != "" {
			if parsed, err := zerolog.ParseLevel(raw); err == nil {
				level = parsed
			}
		}
		zerolog.SetGlobalLevel(level)
	})
	log.Debug().Str("test", t.Name()).Msg("starting")
}
