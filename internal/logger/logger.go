// Package logger configures the process-wide structured logger.
// Output goes to stderr and, when a file is configured, to a rotating
// log file.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger is the global logger instance
	Logger *log.Logger
)

// Config holds logger configuration.
type Config struct {
	Level      string `toml:"level"` // debug, info, warn, error
	File       string `toml:"file"`  // empty: stderr only
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	JSON       bool   `toml:"json"`
}

// DefaultConfig logs info and above to stderr.
func DefaultConfig() Config {
	return Config{Level: "info", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28}
}

// Init initializes the global logger with the given configuration.
func Init(cfg Config) error {
	l, err := New(cfg, os.Stderr)
	if err != nil {
		return err
	}
	Logger = l
	return nil
}

// New builds a logger writing to out and, if cfg.File is set, to a
// rotating file.
func New(cfg Config, out io.Writer) (*log.Logger, error) {
	level := log.InfoLevel
	if cfg.Level != "" {
		parsed, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	writer := out
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, err
		}
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB, // megabytes
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays, // days
			Compress:   true,
		}
		writer = io.MultiWriter(out, fileWriter)
	}

	opts := log.Options{
		ReportCaller:    level == log.DebugLevel,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "moonlit",
	}
	if cfg.JSON {
		opts.Formatter = log.JSONFormatter
	}
	return log.NewWithOptions(writer, opts), nil
}

// Component returns a child of the global logger tagged with a component
// name. Before Init it returns a logger that discards everything.
func Component(name string) *log.Logger {
	if Logger == nil {
		return log.New(io.Discard)
	}
	return Logger.With("component", name)
}

// Debug logs a debug message
func Debug(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

// Info logs an info message
func Info(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

// Warn logs a warning message
func Warn(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

// Error logs an error message
func Error(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}
