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


package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/poiesic/avlondb"
	"github.com/poiesic/avlondb/bulk"
	"github.com/poiesic/avlondb/config"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "avlondb",
		Usage: "Typed JSON records in an embedded key-value store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the database (overrides store.path)",
			},
			&cli.StringFlag{
				Name:    "engine",
				Aliases: []string{"e"},
				Usage:   "Storage engine: badger, bolt or pebble (overrides store.engine)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print the record stored under KEY",
				ArgsUsage: "KEY",
				Action:    getCommand,
			},
			{
				Name:      "put",
				Usage:     "Store a JSON value under KEY, replacing any existing value",
				ArgsUsage: "KEY JSON",
				Action:    putCommand,
			},
			{
				Name:      "update",
				Usage:     "Replace the value under KEY, failing if KEY does not exist",
				ArgsUsage: "KEY JSON",
				Action:    updateCommand,
			},
			{
				Name:      "delete",
				Usage:     "Remove KEY",
				ArgsUsage: "KEY",
				Action:    deleteCommand,
			},
			{
				Name:      "range",
				Usage:     "Print every record with a key between START and END inclusive",
				ArgsUsage: "START END",
				Action:    rangeCommand,
			},
			{
				Name:      "import",
				Usage:     "Import newline-delimited JSON records from FILE (- for stdin)",
				ArgsUsage: "FILE",
				Action:    importCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "key-field",
						Usage: "Top-level field holding each record's key",
					},
					&cli.StringFlag{
						Name:  "key-mode",
						Usage: "How keys are derived: field, content or random",
					},
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"w"},
						Usage:   "Number of concurrent writers",
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
					},
				},
			},
			{
				Name:   "shell",
				Usage:  "Start an interactive shell",
				Action: shellCommand,
			},
		},
	}
}

// setup loads the config file, applies flag overrides and installs the
// default logger.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	if c.IsSet("db") {
		cfg.Store.Path = c.String("db")
	}
	if c.IsSet("engine") {
		cfg.Store.Engine = c.String("engine")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func loadedConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.Defaults()
}

func openStore(c *cli.Context) (*avlondb.Store, error) {
	cfg := loadedConfig(c)
	opts, err := cfg.StoreOptions(slog.Default())
	if err != nil {
		return nil, err
	}
	return avlondb.Open(config.ExpandHome(cfg.Store.Path), opts...)
}

// withStore opens the configured store, runs fn and closes the store.
func withStore(c *cli.Context, fn func(*avlondb.Store) error) (err error) {
	s, err := openStore(c)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing store: %w", closeErr)
		}
	}()
	return fn(s)
}

func requireArgs(c *cli.Context, n int) error {
	if c.NArg() != n {
		return fmt.Errorf("%s: expected %d argument(s), got %d (usage: %s %s)",
			c.Command.Name, n, c.NArg(), c.Command.Name, c.Command.ArgsUsage)
	}
	return nil
}

func getCommand(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	return withStore(c, func(s *avlondb.Store) error {
		return get(c.Context, s, c.App.Writer, c.Args().Get(0))
	})
}

func putCommand(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	return withStore(c, func(s *avlondb.Store) error {
		return put(c.Context, s, c.Args().Get(0), c.Args().Get(1))
	})
}

func updateCommand(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	return withStore(c, func(s *avlondb.Store) error {
		return update(c.Context, s, c.Args().Get(0), c.Args().Get(1))
	})
}

func deleteCommand(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	return withStore(c, func(s *avlondb.Store) error {
		return s.Remove(c.Context, c.Args().Get(0))
	})
}

func rangeCommand(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	return withStore(c, func(s *avlondb.Store) error {
		return listRange(c.Context, s, c.App.Writer, c.Args().Get(0), c.Args().Get(1))
	})
}

func importCommand(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	cfg := loadedConfig(c).Import
	if c.IsSet("key-field") {
		cfg.KeyField = c.String("key-field")
	}
	if c.IsSet("key-mode") {
		cfg.KeyMode = c.String("key-mode")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("report-interval") {
		cfg.ReportInterval = c.Int("report-interval")
	}
	mode, err := bulk.ParseKeyMode(cfg.KeyMode)
	if err != nil {
		return err
	}

	input := c.App.Reader
	if name := c.Args().Get(0); name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		input = f
	}

	return withStore(c, func(s *avlondb.Store) error {
		opts := []bulk.Option{
			bulk.WithWorkers(cfg.Workers),
			bulk.WithKeyMode(mode),
			bulk.WithProgress(c.App.ErrWriter, cfg.ReportInterval),
			bulk.WithLogger(slog.Default()),
		}
		if mode == bulk.KeyFromField {
			opts = append(opts, bulk.WithKeyField(cfg.KeyField))
		}
		im, err := bulk.NewImporter(s, opts...)
		if err != nil {
			return err
		}
		defer im.Release()

		result, err := im.Import(c.Context, input)
		fmt.Fprintf(c.App.Writer, "read %d, saved %d, failed %d\n", result.Read, result.Saved, result.Failed)
		return err
	})
}

func shellCommand(c *cli.Context) error {
	return withStore(c, func(s *avlondb.Store) error {
		return runShell(c.Context, s, c.App.Writer)
	})
}
