package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/SzabolcsN/chess-board-from-img/internal/config"
	"github.com/SzabolcsN/chess-board-from-img/internal/logger"
	"github.com/SzabolcsN/chess-board-from-img/internal/pipeline"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootFlags struct {
	configPath  string
	logLevel    string
	debug       bool
	templateDir string
	blackBottom bool
	mirrored    bool
}

type commandContext struct {
	flags *rootFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error

	log        *zap.Logger
	recognizer *pipeline.Recognizer
}

func newCommandContext(flags *rootFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) configPath() string {
	if path := strings.TrimSpace(c.flags.configPath); path != "" {
		return path
	}
	return config.DefaultPath
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var cfg *config.Config
		var err error
		if strings.TrimSpace(c.flags.configPath) != "" {
			cfg, err = config.Load(c.flags.configPath)
		} else {
			cfg, err = config.LoadOrDefault(config.DefaultPath)
		}
		if err != nil {
			c.configErr = err
			return
		}

		if c.flags.logLevel != "" {
			cfg.Logging.Level = strings.ToLower(c.flags.logLevel)
		}
		if c.flags.debug {
			cfg.Debug.Enabled = true
		}
		if c.flags.templateDir != "" {
			cfg.Pipeline.TemplateDir = c.flags.templateDir
		}
		if c.flags.blackBottom {
			cfg.Pipeline.BlackAtBottom = true
		}
		if c.flags.mirrored {
			cfg.Pipeline.Mirrored = true
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*zap.Logger, error) {
	if c.log != nil {
		return c.log, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Options{
		Level: logger.Level(cfg.Logging.Level),
		Path:  cfg.Logging.Path,
	})
	if err != nil {
		return nil, err
	}
	c.log = log
	return log, nil
}

func (c *commandContext) ensureRecognizer() (*pipeline.Recognizer, error) {
	if c.recognizer != nil {
		return c.recognizer, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	log, err := c.logger()
	if err != nil {
		return nil, err
	}

	r, err := pipeline.NewFromConfig(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initialize recognizer: %w", err)
	}
	c.recognizer = r
	return r, nil
}

func (c *commandContext) close() error {
	var err error
	if c.recognizer != nil {
		err = c.recognizer.Close()
		c.recognizer = nil
	}
	if c.log != nil {
		_ = c.log.Sync()
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
