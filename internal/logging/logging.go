// Package logging provides the process-wide structured logger for csvdb.
//
// The package wraps log/slog and keeps one global logger that is set up once
// by Init and fetched with GetLogger. If GetLogger runs before Init, a text
// logger on stderr is created lazily. Stderr is the default sink because
// stdout carries query output.
//
//	log := logging.WithTable("users")
//	log.Debug("page rollover", "page", 3)
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Level is a textual log level as accepted on the command line.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config controls where and how log records are written.
type Config struct {
	Level      Level
	Format     string // "text" or "json"
	OutputPath string // empty for stderr
}

var (
	mu      sync.RWMutex
	logger  *slog.Logger
	logFile *os.File
)

// ParseLevel converts a textual level to a slog.Level.
func ParseLevel(l Level) (slog.Level, error) {
	switch Level(strings.ToLower(string(l))) {
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelInfo, "":
		return slog.LevelInfo, nil
	case LevelWarn:
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", l)
	}
}

// Init installs the global logger. Calling it again replaces the previous
// logger and closes its file, if any.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stderr
	var f *os.File
	if cfg.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o750); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err = os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		w = f
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	logger = slog.New(h)
	return nil
}

// SetOutput points the global logger at w. Tests use it to capture or
// silence output.
func SetOutput(w io.Writer, level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Close releases the log file opened by Init.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	logger = nil
	return err
}

// GetLogger returns the global logger, creating a default one if needed.
func GetLogger() *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return logger
}

// WithTable returns a logger tagged with a table name.
func WithTable(name string) *slog.Logger {
	return GetLogger().With("table", name)
}

// WithComponent returns a logger tagged with a subsystem name.
func WithComponent(name string) *slog.Logger {
	return GetLogger().With("component", name)
}
