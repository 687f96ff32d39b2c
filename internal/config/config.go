// Package config loads algebrix configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. ALGEBRIX_STORE_DRIVER.
const EnvPrefix = "ALGEBRIX_"

const maxConfigFileSize = 1024 * 1024

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config is the top-level configuration.
type Config struct {
	Store StoreConfig `koanf:"store"`
	Sync  SyncConfig  `koanf:"sync"`
	Log   LogConfig   `koanf:"log"`
}

// StoreConfig selects and locates the persistent store.
type StoreConfig struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
}

// SyncConfig controls how batches are fetched from the remote source.
type SyncConfig struct {
	SourceURL string        `koanf:"source_url"`
	Interval  time.Duration `koanf:"interval"`
	Timeout   time.Duration `koanf:"timeout"`
	Retry     RetryConfig   `koanf:"retry"`
}

// RetryConfig controls backoff for transient fetch failures.
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	InitialWait time.Duration `koanf:"initial_wait"`
	MaxWait     time.Duration `koanf:"max_wait"`
	Multiplier  float64       `koanf:"multiplier"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// envKeys maps flattened env names to koanf keys. Nested keys contain
// underscores of their own, so a plain split on "_" is ambiguous.
var envKeys = map[string]string{
	"store_driver":            "store.driver",
	"store_path":              "store.path",
	"sync_source_url":         "sync.source_url",
	"sync_interval":           "sync.interval",
	"sync_timeout":            "sync.timeout",
	"sync_retry_max_attempts": "sync.retry.max_attempts",
	"sync_retry_initial_wait": "sync.retry.initial_wait",
	"sync_retry_max_wait":     "sync.retry.max_wait",
	"sync_retry_multiplier":   "sync.retry.multiplier",
	"log_level":               "log.level",
	"log_format":              "log.format",
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads configuration with the following precedence (highest first):
//  1. ALGEBRIX_* environment variables
//  2. the YAML file at path (skipped when path is empty or missing)
//  3. defaults
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if content != nil {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// DefaultPath returns $XDG_CONFIG_HOME/algebrix/config.yaml, falling back
// to ~/.config/algebrix/config.yaml.
func DefaultPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "algebrix", "config.yaml"), nil
}

func envKey(s string) string {
	name := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return envKeys[name]
}

// readConfigFile returns nil content when the file does not exist.
func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return content, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverSQLite
	}

	if cfg.Sync.Interval == 0 {
		cfg.Sync.Interval = 24 * time.Hour
	}
	if cfg.Sync.Timeout == 0 {
		cfg.Sync.Timeout = 30 * time.Second
	}
	if cfg.Sync.Retry.MaxAttempts == 0 {
		cfg.Sync.Retry.MaxAttempts = 3
	}
	if cfg.Sync.Retry.InitialWait == 0 {
		cfg.Sync.Retry.InitialWait = time.Second
	}
	if cfg.Sync.Retry.MaxWait == 0 {
		cfg.Sync.Retry.MaxWait = 30 * time.Second
	}
	if cfg.Sync.Retry.Multiplier == 0 {
		cfg.Sync.Retry.Multiplier = 2.0
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", DriverSQLite, DriverMemory, c.Store.Driver)
	}
	if c.Sync.Interval < 0 {
		return fmt.Errorf("sync.interval must not be negative")
	}
	if c.Sync.Timeout <= 0 {
		return fmt.Errorf("sync.timeout must be positive")
	}
	if c.Sync.Retry.MaxAttempts < 1 {
		return fmt.Errorf("sync.retry.max_attempts must be at least 1")
	}
	if c.Sync.Retry.MaxWait < c.Sync.Retry.InitialWait {
		return fmt.Errorf("sync.retry.max_wait must be >= sync.retry.initial_wait")
	}
	if c.Sync.Retry.Multiplier < 1 {
		return fmt.Errorf("sync.retry.multiplier must be >= 1")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be \"json\" or \"console\", got %q", c.Log.Format)
	}
	return nil
}
