package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// Logger is the global logger instance. It writes to stderr because
	// stdout carries the task feed.
	Logger zerolog.Logger
)

func init() {
	Logger = newLogger(os.Stderr)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = Logger
}

// LogLevel represents the logging level
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ValidLevel reports whether level names one of the supported log levels.
func ValidLevel(level string) bool {
	switch LogLevel(strings.ToLower(level)) {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel, "warning":
		return true
	}
	return false
}

// Init reconfigures the global logger with the given level. With pretty set,
// output goes through a colored console writer instead of JSON lines.
func Init(level string, pretty bool) {
	InitWithWriter(os.Stderr, level, pretty)
}

// InitWithWriter is Init with an explicit destination.
func InitWithWriter(w io.Writer, level string, pretty bool) {
	zerolog.SetGlobalLevel(ParseLevel(level))

	out := w
	if pretty {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	Logger = newLogger(out)
	log.Logger = Logger
}

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Get returns the global logger instance
func Get() *zerolog.Logger {
	return &Logger
}

// WithComponent returns a logger with a component field set
func WithComponent(component string) *zerolog.Logger {
	l := Logger.With().Str("component", component).Logger()
	return &l
}
