// ABOUTME: Process-wide logrus setup from configuration
// ABOUTME: Level, text or JSON format, and an optional log file
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Resonate-Protocol/streamplay/internal/config"
	"github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger. With console false, output
// goes only to the log file (or nowhere without one), which keeps a
// full-screen UI clean. The returned closer releases the log file.
func Setup(c config.LogConfig, console bool) (io.Closer, error) {
	return setup(logrus.StandardLogger(), c, console, os.Stderr)
}

func setup(l *logrus.Logger, c config.LogConfig, console bool, stderr io.Writer) (io.Closer, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(level)

	switch strings.ToLower(c.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format: %q", c.Format)
	}

	var writers []io.Writer
	if console {
		writers = append(writers, stderr)
	}

	var closer io.Closer = nopCloser{}
	if c.File != "" {
		f, err := os.OpenFile(c.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("error opening log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}

	switch len(writers) {
	case 0:
		l.SetOutput(io.Discard)
	case 1:
		l.SetOutput(writers[0])
	default:
		l.SetOutput(io.MultiWriter(writers...))
	}
	return closer, nil
}

func parseLevel(s string) (logrus.Level, error) {
	if s == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level: %w", err)
	}
	return level, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
