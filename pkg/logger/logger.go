// Package logger provides structured logging for the calculator service.
// It wraps logrus so services can chain contextual fields without caring
// about formatter or output configuration.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LoggingConfig controls the behaviour of a Logger built with New.
type LoggingConfig struct {
	Level      string // trace, debug, info, warn, error (default info)
	Format     string // "json" or "text" (default text)
	Output     string // "stdout", "stderr" or "file" (default stdout)
	FilePrefix string // path prefix for file output, date and .log appended
}

// Logger is a thin wrapper around a logrus entry. Embedding the entry
// exposes the full WithField/WithError/Infof surface directly.
type Logger struct {
	*logrus.Entry
}

// New constructs a Logger from the supplied configuration. Invalid values
// fall back to safe defaults rather than failing startup.
func New(cfg LoggingConfig) *Logger {
	base := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}

	base.SetOutput(resolveOutput(cfg))

	return &Logger{Entry: logrus.NewEntry(base)}
}

// NewDefault returns an info-level text logger tagged with the component
// name. Services use it when no logger is injected.
func NewDefault(component string) *Logger {
	log := New(LoggingConfig{})
	if component != "" {
		log = log.WithComponent(component)
	}
	return log
}

// WithComponent returns a logger carrying a component field.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Entry: l.Entry.WithField("component", component)}
}

func resolveOutput(cfg LoggingConfig) io.Writer {
	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	case "file":
		prefix := cfg.FilePrefix
		if prefix == "" {
			prefix = "calculator"
		}
		path := fmt.Sprintf("%s-%s.log", prefix, time.Now().UTC().Format("20060102"))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: open %s: %v; falling back to stdout\n", path, err)
			return os.Stdout
		}
		return f
	default:
		return os.Stdout
	}
}
