package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "badger", cfg.Store.Engine)
	assert.True(t, cfg.Store.SyncWrites)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Import.Workers)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		content := `
[store]
path = "/var/lib/avlondb"
engine = "pebble"

[log]
level = "debug"

[import]
workers = 8
key_mode = "content"
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/avlondb", cfg.Store.Path)
		assert.Equal(t, "pebble", cfg.Store.Engine)
		assert.True(t, cfg.Store.SyncWrites, "unset keys keep their defaults")
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, 8, cfg.Import.Workers)
		assert.Equal(t, "content", cfg.Import.KeyMode)
		assert.Equal(t, "id", cfg.Import.KeyField)
		require.NoError(t, cfg.Validate())
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		require.NoError(t, os.WriteFile(path, []byte("[store\npath ="), 0644))
		_, err := Load(path)
		assert.ErrorContains(t, err, "parsing config")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty path", func(c *Config) { c.Store.Path = "" }},
		{"unknown engine", func(c *Config) { c.Store.Engine = "leveldb" }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"no workers", func(c *Config) { c.Import.Workers = 0 }},
		{"bad key mode", func(c *Config) { c.Import.KeyMode = "sequence" }},
		{"field mode without field", func(c *Config) { c.Import.KeyField = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestStoreOptions(t *testing.T) {
	cfg := Defaults()
	opts, err := cfg.StoreOptions(slog.Default())
	require.NoError(t, err)
	assert.Len(t, opts, 3)

	cfg.Store.Engine = "nope"
	_, err = cfg.StoreOptions(slog.Default())
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("trace")
	assert.Error(t, err)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "db"), ExpandHome("~/db"))
	assert.Equal(t, "/abs/db", ExpandHome("/abs/db"))
}
