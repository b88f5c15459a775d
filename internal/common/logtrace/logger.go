// Package logtrace configures the process logger and carries request ids
// through contexts.
package logtrace

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger sets the global zerolog logger to write Unix-timestamped JSON
// to stderr at the given level. Unknown or empty levels mean info.
func InitLogger(level ...string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl := zerolog.InfoLevel
	if len(level) > 0 && level[0] != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(level[0])); err == nil {
			lvl = parsed
		}
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Component returns a logger tagged for a long-running component.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
