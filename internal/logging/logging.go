// Package logging provides the structured logging surface used across the
// sync core. Components depend on the small Logger interface rather than a
// concrete slog.Logger so tests can substitute a silent or recording logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Logger is the canonical logging interface for the application.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// SlogAdapter adapts an slog.Logger to the Logger interface.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter wraps the given slog.Logger. A nil logger falls back to
// slog.Default().
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger}
}

func (a *SlogAdapter) Debug(msg string, args ...interface{}) { a.logger.Debug(msg, args...) }
func (a *SlogAdapter) Info(msg string, args ...interface{})  { a.logger.Info(msg, args...) }
func (a *SlogAdapter) Warn(msg string, args ...interface{})  { a.logger.Warn(msg, args...) }
func (a *SlogAdapter) Error(msg string, args ...interface{}) { a.logger.Error(msg, args...) }

// Logger returns the underlying slog.Logger for direct access when needed.
func (a *SlogAdapter) Logger() *slog.Logger { return a.logger }

// NewFileLogger returns a Logger writing text lines to the given file,
// creating parent directories as needed. An empty path logs to stderr.
func NewFileLogger(path string, debug bool) (Logger, io.Closer, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	var w io.Writer = os.Stderr
	var closer io.Closer
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closer = f
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return NewSlogAdapter(slog.New(h)), closer, nil
}

// Discard returns a Logger that drops everything. Used in tests and as the
// default when a component is constructed without a logger.
func Discard() Logger {
	return NewSlogAdapter(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
