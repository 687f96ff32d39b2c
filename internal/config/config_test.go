package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Sync.Interval)
	assert.Equal(t, 30*time.Second, cfg.Sync.Timeout)
	assert.Equal(t, 3, cfg.Sync.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Sync.Retry.InitialWait)
	assert.Equal(t, 2.0, cfg.Sync.Retry.Multiplier)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, `
store:
  driver: memory
sync:
  source_url: https://example.com/latest.json
  interval: 6h
  retry:
    max_attempts: 5
    initial_wait: 200ms
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "https://example.com/latest.json", cfg.Sync.SourceURL)
	assert.Equal(t, 6*time.Hour, cfg.Sync.Interval)
	assert.Equal(t, 5, cfg.Sync.Retry.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Sync.Retry.InitialWait)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
store:
  driver: sqlite
  path: /tmp/from-file.db
sync:
  retry:
    max_attempts: 2
`)
	t.Setenv("ALGEBRIX_STORE_DRIVER", "memory")
	t.Setenv("ALGEBRIX_SYNC_SOURCE_URL", "https://env.example.com/batch.json")
	t.Setenv("ALGEBRIX_SYNC_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("ALGEBRIX_UNKNOWN_KEY", "ignored")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "/tmp/from-file.db", cfg.Store.Path)
	assert.Equal(t, "https://env.example.com/batch.json", cfg.Sync.SourceURL)
	assert.Equal(t, 7, cfg.Sync.Retry.MaxAttempts)
}

func TestLoad_InvalidDriver(t *testing.T) {
	path := writeConfig(t, "store:\n  driver: postgres\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Sync.Timeout = 0 },
			wantErr: "sync.timeout",
		},
		{
			name:    "max wait below initial wait",
			mutate:  func(c *Config) { c.Sync.Retry.MaxWait = time.Millisecond },
			wantErr: "max_wait",
		},
		{
			name:    "multiplier below one",
			mutate:  func(c *Config) { c.Sync.Retry.Multiplier = 0.5 },
			wantErr: "multiplier",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultPath_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	p, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "algebrix", "config.yaml"), p)
}
