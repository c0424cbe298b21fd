// Package log configures the process-wide structured logger.
//
// Each binary calls Setup once with its log-level flag; packages then derive
// their own loggers through WithModule so every record names the emitting
// module.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs a text handler on stderr that drops records below the given
// level. Unrecognized level names fall back to info.
func Setup(logLevel string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	})))
}

// WithModule returns the default logger tagged with a module attribute.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}

func parseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo
	}

	return level
}
