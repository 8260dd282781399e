// Package logging builds the structured zerolog logger shared by the
// pipeline. Components derive their own loggers from the one returned by
// Setup and attach context fields (batch id, acronym, credential hint) as
// work flows through them.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel names a minimum severity.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config describes the logger to build.
type Config struct {
	// Level is the minimum severity that reaches the output.
	Level LogLevel

	// Pretty switches from JSON lines to human-readable console output.
	Pretty bool

	// Output receives the log stream; nil means os.Stderr.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup builds the pipeline logger and installs it as the zerolog global so
// package-level logging shares the same sink and level.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// parseLevel maps a configured level name to a zerolog level. Unrecognized
// names fall back to info rather than silencing the run.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Store operations (result hit, failure marker, cache TTL)
//   - Per-item pipeline flow (skips, attempt counts)
//   - Credential selection and daily resets
//
// Info: Normal operation events
//   - Batch start/progress/completion summaries
//   - Retry success after backoff
//   - Worker startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Quota windows and credential deactivation
//   - Item failures inside a batch
//   - Retry exhaustion, force resets of the pool
//
// Error: Error conditions requiring attention
//   - Redis unavailability
//   - Configuration errors
//   - Batch-level aborts
//
// Context Fields:
//   - batch_id: Batch run identifier
//   - acronym: Work item input key
//   - api_key: Credential hint (first 8 characters only, never the full key)
//   - error_class: Error classification (auth, quota, transient)
//   - attempt: Attempt number within the retry cap
//   - resume_in: Delay until a quota-suspended operation resumes
