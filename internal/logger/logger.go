// Package logger builds the zap loggers used by the commands.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents log level
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Options configures New.
type Options struct {
	Level       Level
	Path        string // optional log file, appended to
	Development bool   // console encoder, caller info
}

// ParseLevel maps a level name to a zap level. Unknown names are an error.
func ParseLevel(level Level) (zapcore.Level, error) {
	switch Level(strings.ToLower(string(level))) {
	case LevelDebug:
		return zapcore.DebugLevel, nil
	case LevelInfo, "":
		return zapcore.InfoLevel, nil
	case LevelWarn, "warning":
		return zapcore.WarnLevel, nil
	case LevelError:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %q (must be debug, info, warn or error)", level)
	}
}

// New creates a logger writing to stderr and, if opts.Path is set, to a file.
func New(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, opts.Path)
	}

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return log, nil
}

// StartOperation logs the start of an operation (returns cleanup function)
func StartOperation(log *zap.Logger, operation string, fields ...zap.Field) func(error) {
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Now()
	log = log.With(append([]zap.Field{zap.String("operation", operation)}, fields...)...)
	log.Debug("operation_start")

	return func(err error) {
		elapsed := zap.Duration("duration", time.Since(start))
		if err != nil {
			log.Error("operation_failed", elapsed, zap.Error(err))
			return
		}
		log.Info("operation_complete", elapsed)
	}
}
