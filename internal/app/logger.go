package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// AtomicLogger is a slog logger whose level can change while in use.
type AtomicLogger struct {
	level  *slog.LevelVar
	logger *slog.Logger
}

// NewAtomicLogger creates a logger writing to w in the given format (json or text).
func NewAtomicLogger(w io.Writer, level, format string) (*AtomicLogger, error) {
	lv := new(slog.LevelVar)
	parsed, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	lv.Set(parsed)

	opts := &slog.HandlerOptions{Level: lv}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &AtomicLogger{level: lv, logger: slog.New(handler)}, nil
}

// Get returns the underlying logger.
func (l *AtomicLogger) Get() *slog.Logger {
	return l.logger
}

// SetLevel changes the level of every logger derived from this one.
func (l *AtomicLogger) SetLevel(level string) error {
	parsed, err := parseLevel(level)
	if err != nil {
		return err
	}
	l.level.Set(parsed)
	return nil
}

// Level returns the current level.
func (l *AtomicLogger) Level() slog.Level {
	return l.level.Level()
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
