// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads avlondb command line settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/poiesic/avlondb"
	"github.com/poiesic/avlondb/storage"
)

// DefaultPath is where Load looks when no path is given.
const DefaultPath = "~/.avlondb/config.toml"

// Config holds every setting the avlondb tool reads from a file.
type Config struct {
	Store  StoreConfig  `toml:"store"`
	Log    LogConfig    `toml:"log"`
	Import ImportConfig `toml:"import"`
}

// StoreConfig selects and locates the store.
type StoreConfig struct {
	// Path is the database directory (badger, pebble) or file (bolt).
	Path string `toml:"path"`

	// Engine is one of "badger", "bolt" or "pebble".
	Engine string `toml:"engine"`

	// SyncWrites makes every write wait for an fsync.
	SyncWrites bool `toml:"sync_writes"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level is one of "debug", "info", "warn" or "error".
	Level string `toml:"level"`
}

// ImportConfig holds defaults for bulk imports.
type ImportConfig struct {
	// Workers is the number of concurrent writers.
	Workers int `toml:"workers"`

	// KeyField names the JSON field holding each record's key.
	KeyField string `toml:"key_field"`

	// KeyMode is one of "field", "content" or "random".
	KeyMode string `toml:"key_mode"`

	// ReportInterval reports progress every N records.
	ReportInterval int `toml:"report_interval"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		Store: StoreConfig{
			Path:       "~/.avlondb/data",
			Engine:     string(storage.KindBadger),
			SyncWrites: true,
		},
		Log: LogConfig{
			Level: "info",
		},
		Import: ImportConfig{
			Workers:        4,
			KeyField:       "id",
			KeyMode:        "field",
			ReportInterval: 1000,
		},
	}
}

// Load reads a TOML config file on top of Defaults.
// If path is empty, DefaultPath is used when it exists; otherwise only
// defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = ExpandHome(DefaultPath)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(ExpandHome(path))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return errors.New("config: store.path is required")
	}
	if _, err := storage.ParseKind(c.Store.Engine); err != nil {
		return fmt.Errorf("config: store.engine: %w", err)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	if c.Import.Workers < 1 {
		return errors.New("config: import.workers must be greater than 0")
	}
	switch c.Import.KeyMode {
	case "field", "content", "random":
	default:
		return fmt.Errorf("config: import.key_mode %q: must be one of field, content, random", c.Import.KeyMode)
	}
	if c.Import.KeyMode == "field" && c.Import.KeyField == "" {
		return errors.New("config: import.key_field is required when key_mode is field")
	}
	return nil
}

// StoreOptions converts the store section into avlondb options.
func (c *Config) StoreOptions(logger *slog.Logger) ([]avlondb.Option, error) {
	kind, err := storage.ParseKind(c.Store.Engine)
	if err != nil {
		return nil, err
	}
	return []avlondb.Option{
		avlondb.WithEngine(kind),
		avlondb.WithSyncWrites(c.Store.SyncWrites),
		avlondb.WithLogger(logger),
	}, nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
	}
}

// ExpandHome resolves a leading ~/ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
