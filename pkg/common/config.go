package common

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// LoggingConfig holds logging configuration shared by every binary in this
// module, independent of whichever command-specific config wraps it.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error)
	Level string `json:"level,omitempty" env:"LOG_LEVEL" envDefault:"info"`
	// Format selects "text" (zerolog console writer) or "json" output
	Format string `json:"format,omitempty" env:"LOG_FORMAT" envDefault:"text"`
}

// LevelValue maps the configured textual level to a LogLevel, defaulting to
// InfoLevel for an empty or unrecognized value.
func (c LoggingConfig) LevelValue() LogLevel {
	switch strings.ToLower(c.Level) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Writer passes out through unchanged when Format is "json", for raw
// JSON-lines logging; any other Format (including the default "text") wraps
// out in a zerolog.ConsoleWriter for human-readable output.
func (c LoggingConfig) Writer(out io.Writer) io.Writer {
	if strings.ToLower(c.Format) == "json" {
		return out
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
}
