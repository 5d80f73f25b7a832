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


// Package avlondb is a typed façade over an embedded, ordered key-value
// engine. Records of any Go type are stored as JSON under string keys and
// can be loaded by key or by closed key range in byte order.
//
//	store, err := avlondb.Open("/path/to/db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = avlondb.Save(ctx, store, "johndoe", account)
//	acct, ok, err := avlondb.Load[Account](ctx, store, "johndoe")
package avlondb

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/poiesic/avlondb/storage"
	"github.com/poiesic/avlondb/storage/badger"
	"github.com/poiesic/avlondb/storage/bolt"
	"github.com/poiesic/avlondb/storage/pebble"
)

// Store owns one open storage engine.
// It is safe for concurrent use when the engine is, which all bundled engines are.
type Store struct {
	path   string
	kind   storage.Kind
	engine storage.Engine
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Store.
type Option func(*options)

type options struct {
	kind       storage.Kind
	inMemory   bool
	syncWrites bool
	logger     *slog.Logger
	engine     storage.Engine
}

// WithEngine selects the storage engine. Default is storage.KindBadger.
func WithEngine(kind storage.Kind) Option {
	return func(o *options) {
		o.kind = kind
	}
}

// WithInMemory keeps the store in memory. Only the badger engine supports it.
func WithInMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// WithSyncWrites controls whether each write waits for an fsync.
// Default is true.
func WithSyncWrites(enabled bool) Option {
	return func(o *options) {
		o.syncWrites = enabled
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEngineInstance wraps an already-open engine of the given kind. The
// Store takes ownership and closes it on Close, and Engine reports kind.
// Engines outside this module may use any Kind value, e.g. storage.Kind("memory").
func WithEngineInstance(kind storage.Kind, engine storage.Engine) Option {
	return func(o *options) {
		o.kind = kind
		o.engine = engine
	}
}

// Open opens or creates the store at path.
// On failure it returns a *ConstructionError and nothing is left open.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := &options{
		kind:       storage.KindBadger,
		syncWrites: true,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	engine := cfg.engine
	if engine == nil {
		var err error
		engine, err = openEngine(path, cfg)
		if err != nil {
			return nil, &ConstructionError{Path: path, Engine: cfg.kind, Err: err}
		}
	}

	cfg.logger.Debug("opened store", "path", path, "engine", cfg.kind, "inMemory", cfg.inMemory)
	return &Store{
		path:   path,
		kind:   cfg.kind,
		engine: engine,
		logger: cfg.logger,
	}, nil
}

func openEngine(path string, o *options) (storage.Engine, error) {
	if o.inMemory && o.kind != storage.KindBadger {
		return nil, ErrInMemoryUnsupported
	}
	if path == "" && !o.inMemory {
		return nil, ErrEmptyPath
	}

	switch o.kind {
	case storage.KindBadger:
		return badger.Open(path, badger.Options{
			InMemory:   o.inMemory,
			SyncWrites: o.syncWrites,
			Logger:     o.logger,
		})
	case storage.KindBolt:
		return bolt.Open(path, bolt.Options{NoSync: !o.syncWrites, Logger: o.logger})
	case storage.KindPebble:
		return pebble.Open(path, pebble.Options{NoSync: !o.syncWrites, Logger: o.logger})
	default:
		return nil, storage.ErrUnknownEngine
	}
}

// Close flushes and releases the engine. Only the first call closes it;
// later calls return the same result.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.engine.Close()
		if s.closeErr != nil {
			s.logger.Error("error closing storage engine", "path", s.path, "err", s.closeErr)
		}
	})
	return s.closeErr
}

// Path returns the location the store was opened at.
func (s *Store) Path() string {
	return s.path
}

// Engine returns the kind of engine backing the store.
func (s *Store) Engine() storage.Kind {
	return s.kind
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := checkKey(ctx, key); err != nil {
		return err
	}
	if err := s.engine.Delete(ctx, []byte(key)); err != nil {
		return &EngineError{Op: "remove", Key: key, Err: err}
	}
	return nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := checkKey(ctx, key); err != nil {
		return false, err
	}
	ok, err := s.engine.Has(ctx, []byte(key))
	if err != nil {
		return false, &EngineError{Op: "exists", Key: key, Err: err}
	}
	return ok, nil
}

// Remove deletes key from s.
func Remove(ctx context.Context, s *Store, key string) error {
	return s.Remove(ctx, key)
}

func checkKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return storage.ErrEmptyKey
	}
	return nil
}

// isNotFound reports whether an engine error means the key is absent.
func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
