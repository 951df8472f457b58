// Package logging wires slog to console and rotating-file outputs.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls log outputs. Defined here rather than in the config
// package so the logger can be initialized before any other subsystem.
type Config struct {
	Dir     string         `yaml:"dir"`
	Console ConsoleConfig  `yaml:"console"`
	File    FileConfig     `yaml:"file"`
	Rotate  RotationConfig `yaml:"rotation"`
}

type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
}

type FileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
}

type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"` // megabytes
	MaxBackups int  `yaml:"max_backups"`
	MaxAge     int  `yaml:"max_age"` // days
	Compress   bool `yaml:"compress"`
}

// ApplyDefaults fills in missing values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Dir == "" {
		c.Dir = "logs"
	}
	if c.Console.Level == "" {
		c.Console.Level = "info"
	}
	if c.File.Level == "" {
		c.File.Level = "info"
	}
	if c.File.Format == "" {
		c.File.Format = "json"
	}
	if c.Rotate.MaxSize <= 0 {
		c.Rotate.MaxSize = 100
	}
	if c.Rotate.MaxBackups <= 0 {
		c.Rotate.MaxBackups = 5
	}
	if c.Rotate.MaxAge <= 0 {
		c.Rotate.MaxAge = 30
	}
}

var (
	logFiles   []*lumberjack.Logger
	logFilesMu sync.Mutex
)

// Initialize builds the logger from config and installs it as the slog
// default.
func Initialize(cfg Config) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger)

	slog.Info("Logging initialized",
		"dir", cfg.Dir,
		"console_enabled", cfg.Console.Enabled,
		"file_enabled", cfg.File.Enabled,
	)
	return nil
}

// NewLogger creates a logger instance with the given configuration.
func NewLogger(cfg Config) (*slog.Logger, error) {
	cfg.ApplyDefaults()

	var handlers []slog.Handler

	if cfg.Console.Enabled {
		handlers = append(handlers, newHandler(os.Stdout, cfg.Console.Format, parseLevel(cfg.Console.Level)))
	}

	if cfg.File.Enabled {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		// Main log file, all levels at or above the configured one.
		mainFile := rotatingFile(filepath.Join(cfg.Dir, "catsync.log"), cfg.Rotate)
		handlers = append(handlers, newHandler(mainFile, cfg.File.Format, parseLevel(cfg.File.Level)))

		// Separate warn-and-up file so incidents are greppable without
		// wading through request noise.
		errorFile := rotatingFile(filepath.Join(cfg.Dir, "errors.log"), cfg.Rotate)
		errorHandler := newHandler(errorFile, cfg.File.Format, slog.LevelWarn)
		handlers = append(handlers, NewLevelFilter(errorHandler, slog.LevelWarn))
	}

	switch len(handlers) {
	case 0:
		// Nothing enabled: keep slog functional but silent.
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil
	case 1:
		return slog.New(handlers[0]), nil
	default:
		return slog.New(NewMultiHandler(handlers...)), nil
	}
}

// Shutdown closes all rotating log files.
func Shutdown() error {
	logFilesMu.Lock()
	defer logFilesMu.Unlock()

	for _, f := range logFiles {
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
	}
	logFiles = nil
	return nil
}

func rotatingFile(path string, rot RotationConfig) *lumberjack.Logger {
	f := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rot.MaxSize,
		MaxBackups: rot.MaxBackups,
		MaxAge:     rot.MaxAge,
		Compress:   rot.Compress,
	}
	logFilesMu.Lock()
	logFiles = append(logFiles, f)
	logFilesMu.Unlock()
	return f
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
