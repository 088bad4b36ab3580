// Package logger provides the structured logger shared by every component.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config configures a Logger.
type Config struct {
	// Level is one of trace, debug, info, warn, error (default info).
	Level string
	// Format is "json" (default) or "text".
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// Logger is a logrus entry carrying a component field.
type Logger struct {
	*logrus.Entry
}

// New creates a logger for component using cfg.
func New(component string, cfg Config) *Logger {
	base := logrus.New()

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	base.SetOutput(out)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		base.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	return &Logger{Entry: base.WithField("component", component)}
}

// NewDefault creates a JSON logger on stderr, honouring SAS_LOG_LEVEL.
func NewDefault(component string) *Logger {
	return New(component, Config{Level: os.Getenv("SAS_LOG_LEVEL")})
}

// NewNop creates a logger that discards everything.
func NewNop() *Logger {
	return New("nop", Config{Output: io.Discard})
}

// Named returns a child logger with a different component field.
func (l *Logger) Named(component string) *Logger {
	return &Logger{Entry: l.Entry.WithField("component", component)}
}
