// Package logging sets up the process-wide slog logger: console output
// plus rotating log files, with a separate warn/error file.
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

// Config holds logging configuration.
type Config struct {
	Level   string       `yaml:"level"`  // debug, info, warn, error
	Format  string       `yaml:"format"` // text, json
	Dir     string       `yaml:"dir"`
	Console bool         `yaml:"console"`
	File    bool         `yaml:"file"`
	Rotate  RotateConfig `yaml:"rotate"`
}

// RotateConfig holds log rotation settings.
type RotateConfig struct {
	MaxSize    int  `yaml:"max_size"` // MB
	MaxBackups int  `yaml:"max_backups"`
	MaxAge     int  `yaml:"max_age"` // days
	Compress   bool `yaml:"compress"`
}

// DefaultConfig returns default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Format:  "text",
		Dir:     "logs",
		Console: true,
		File:    false,
		Rotate: RotateConfig{
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     30,
		},
	}
}

var (
	logFiles   []*lumberjack.Logger
	logFilesMu sync.Mutex
)

// Initialize sets up the global logger based on configuration.
func Initialize(cfg Config) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger)
	return nil
}

// NewLogger creates a logger instance with the given configuration.
func NewLogger(cfg Config) (*slog.Logger, error) {
	level := parseLevel(cfg.Level)

	var handlers []slog.Handler
	if cfg.Console {
		handlers = append(handlers, createHandler(os.Stdout, cfg.Format, level))
	}

	if cfg.File {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		mainFile := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, "fleetdex.log"),
			MaxSize:    cfg.Rotate.MaxSize,
			MaxBackups: cfg.Rotate.MaxBackups,
			MaxAge:     cfg.Rotate.MaxAge,
			Compress:   cfg.Rotate.Compress,
		}
		registerLogFile(mainFile)
		handlers = append(handlers, createHandler(mainFile, cfg.Format, level))

		// Warn and error records additionally land in their own file.
		errorFile := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, "errors.log"),
			MaxSize:    cfg.Rotate.MaxSize,
			MaxBackups: cfg.Rotate.MaxBackups,
			MaxAge:     cfg.Rotate.MaxAge,
			Compress:   cfg.Rotate.Compress,
		}
		registerLogFile(errorFile)
		errorHandler := createHandler(errorFile, cfg.Format, slog.LevelWarn)
		handlers = append(handlers, newLevelFilter(errorHandler, slog.LevelWarn))
	}

	switch len(handlers) {
	case 0:
		return slog.New(createHandler(os.Stdout, cfg.Format, level)), nil
	case 1:
		return slog.New(handlers[0]), nil
	default:
		return slog.New(newMultiHandler(handlers...)), nil
	}
}

// Shutdown closes all open log files.
func Shutdown() error {
	logFilesMu.Lock()
	defer logFilesMu.Unlock()

	for _, logFile := range logFiles {
		if err := logFile.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
	}
	logFiles = nil
	return nil
}

func registerLogFile(logFile *lumberjack.Logger) {
	logFilesMu.Lock()
	defer logFilesMu.Unlock()
	logFiles = append(logFiles, logFile)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func createHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
