// Package config holds the engine settings and the optional config file
// loader. Flags layered on top by the CLI always win over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config collects everything the engine and server need to run.
type Config struct {
	// Root is the directory scanned for <project>/<session>.jsonl files.
	Root string
	// Port is the HTTP listen port for serve mode.
	Port int
	// DebounceWindow coalesces bursts of modify events per file.
	DebounceWindow time.Duration
	// RescanInterval drives the periodic full rescan. It is the only
	// update source once the filesystem watcher has failed.
	RescanInterval time.Duration
	// QueueSize bounds each subscriber's event queue.
	QueueSize int
	LogLevel  string
	LogFile   string
}

// fileConfig is the YAML shape. Durations are strings ("250ms", "1m") so the
// file stays readable; absent keys leave the defaults in place.
type fileConfig struct {
	Root           string `yaml:"root"`
	Port           *int   `yaml:"port"`
	Debounce       string `yaml:"debounce"`
	RescanInterval string `yaml:"rescanInterval"`
	QueueSize      *int   `yaml:"queueSize"`
	LogLevel       string `yaml:"logLevel"`
	LogFile        string `yaml:"logFile"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Root:           filepath.Join(homeDir(), ".claude", "projects"),
		Port:           8080,
		DebounceWindow: 100 * time.Millisecond,
		RescanInterval: 30 * time.Second,
		QueueSize:      256,
		LogLevel:       "info",
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".loglens", "config.yaml")
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error; the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.merge(fc); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c *Config) merge(fc fileConfig) error {
	if fc.Root != "" {
		c.Root = fc.Root
	}
	if fc.Port != nil {
		c.Port = *fc.Port
	}
	if fc.Debounce != "" {
		d, err := time.ParseDuration(fc.Debounce)
		if err != nil {
			return fmt.Errorf("invalid debounce %q: %w", fc.Debounce, err)
		}
		c.DebounceWindow = d
	}
	if fc.RescanInterval != "" {
		d, err := time.ParseDuration(fc.RescanInterval)
		if err != nil {
			return fmt.Errorf("invalid rescanInterval %q: %w", fc.RescanInterval, err)
		}
		c.RescanInterval = d
	}
	if fc.QueueSize != nil {
		c.QueueSize = *fc.QueueSize
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.LogFile != "" {
		c.LogFile = fc.LogFile
	}
	return nil
}

func (c Config) validate() error {
	if c.QueueSize <= 0 {
		return fmt.Errorf("queueSize must be positive, got %d", c.QueueSize)
	}
	if c.DebounceWindow < 0 {
		return fmt.Errorf("debounce must not be negative, got %s", c.DebounceWindow)
	}
	if c.RescanInterval <= 0 {
		return fmt.Errorf("rescanInterval must be positive, got %s", c.RescanInterval)
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
