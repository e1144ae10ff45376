// Package logging builds the structured logger shared by every quickstart
// component. The logger is created once in the root command and passed
// explicitly; there is no package-level instance.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// EnvLevel is the environment variable consulted when --log-level is absent.
const EnvLevel = "QUICKSTART_LOG"

// DefaultLevel is used when neither the flag nor EnvLevel is set.
const DefaultLevel = "info"

// ValidLevels lists the accepted level names in decreasing severity.
var ValidLevels = []string{"error", "warn", "info", "debug", "trace"}

// ParseLevel maps a level name onto a charmbracelet/log level.
// trace has no counterpart and is treated as debug.
func ParseLevel(name string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "error":
		return log.ErrorLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "info":
		return log.InfoLevel, nil
	case "debug", "trace":
		return log.DebugLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("invalid log level %q (valid: %s)",
			name, strings.Join(ValidLevels, ", "))
	}
}

// New returns a logger writing to w at the given level. Timestamps are
// reported in the short clock format used for interactive sessions.
func New(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
