// Package config loads the board2fen TOML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/SzabolcsN/chess-board-from-img/internal/vision"
	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is where the CLI looks for a config file.
const DefaultPath = "board2fen.toml"

// Config represents the application configuration
type Config struct {
	Locator    vision.LocatorConfig    `toml:"locator"`
	Classifier vision.ClassifierConfig `toml:"classifier"`
	Pipeline   PipelineConfig          `toml:"pipeline"`
	Debug      DebugConfig             `toml:"debug"`
	Logging    LoggingConfig           `toml:"logging"`
	Storage    StorageConfig           `toml:"storage"`
}

// PipelineConfig contains recognition settings
type PipelineConfig struct {
	OutputSize  int    `toml:"output_size"`  // side of the normalized board image
	TemplateDir string `toml:"template_dir"` // directory of <c><p>.<ext> templates
	Workers     int    `toml:"workers"`      // parallel cell classifications; <= 1 is sequential
	Fallback    bool   `toml:"fallback"`     // report the starting position when recognition fails

	// BlackAtBottom marks photos taken from black's side; the position is
	// rotated so rank 8 is still reported first.
	BlackAtBottom bool `toml:"black_at_bottom"`
	// Mirrored undoes the left-right flip of selfie-style camera feeds.
	Mirrored bool `toml:"mirrored"`
}

// DebugConfig controls the debug image dump
type DebugConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

// StorageConfig contains scan history settings
type StorageConfig struct {
	Enabled    bool   `toml:"enabled"`
	DBPath     string `toml:"db_path"`
	MaxRecords int    `toml:"max_records"`
}

// MaxWorkers bounds pipeline.workers.
const MaxWorkers = 64

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Locator:    vision.DefaultLocatorConfig(),
		Classifier: vision.DefaultClassifierConfig(),
		Pipeline: PipelineConfig{
			OutputSize:  400,
			TemplateDir: "pieces",
			Workers:     defaultWorkers(runtime.NumCPU()),
			Fallback:    true,
		},
		Debug: DebugConfig{
			Enabled: false,
			Dir:     "debug",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			Enabled:    true,
			DBPath:     "data/scans.db",
			MaxRecords: 1000,
		},
	}
}

func defaultWorkers(cpus int) int {
	return max(1, min(cpus, MaxWorkers))
}

// Load reads a TOML file on top of the defaults and validates the result.
// Keys missing from the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default().
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Locator.Validate(); err != nil {
		return fmt.Errorf("locator: %w", err)
	}
	if err := c.Classifier.Validate(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}

	if c.Pipeline.OutputSize < 8 || c.Pipeline.OutputSize > 4096 {
		return fmt.Errorf("invalid output size: %d (must be 8-4096)", c.Pipeline.OutputSize)
	}
	if c.Pipeline.TemplateDir == "" {
		return fmt.Errorf("template directory not set")
	}
	if c.Pipeline.Workers < 0 || c.Pipeline.Workers > MaxWorkers {
		return fmt.Errorf("invalid workers: %d (must be 0-%d)", c.Pipeline.Workers, MaxWorkers)
	}

	if c.Debug.Enabled && c.Debug.Dir == "" {
		return fmt.Errorf("debug enabled without a debug directory")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn or error)", c.Logging.Level)
	}

	if c.Storage.Enabled {
		if c.Storage.DBPath == "" {
			return fmt.Errorf("storage enabled without a database path")
		}
		if c.Storage.MaxRecords < 1 {
			return fmt.Errorf("invalid max records: %d (must be >= 1)", c.Storage.MaxRecords)
		}
	}

	return nil
}

// EnsureDirectories creates the directories the configured outputs write into.
func (c *Config) EnsureDirectories() error {
	var dirs []string
	if c.Debug.Enabled {
		dirs = append(dirs, c.Debug.Dir)
	}
	if c.Storage.Enabled {
		dirs = append(dirs, filepath.Dir(c.Storage.DBPath))
	}
	if c.Logging.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.Path))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
