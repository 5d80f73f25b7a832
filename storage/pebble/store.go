// Package pebble implements storage.Engine on Pebble, an LSM key-value store.
package pebble

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/poiesic/avlondb/storage"
)

const (
	defaultCacheSize    = 64 << 20
	defaultMemTableSize = 32 << 20
)

// Options configures a Store.
type Options struct {
	// CacheSize is the block cache size in bytes. Default is 64MB.
	CacheSize int64

	// NoSync skips the WAL fsync on writes.
	NoSync bool

	// Logger receives engine log output.
	// Default is slog.Default().
	Logger *slog.Logger
}

// Store implements storage.Engine using Pebble.
//
// Pebble has no read-write transactions, so writes are serialized through
// writeMu. That makes SetIfExists atomic against every other writer using
// the same Store.
type Store struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
	logger    *slog.Logger

	mu      sync.RWMutex // guards closed
	closed  bool
	writeMu sync.Mutex
}

var _ storage.Engine = (*Store)(nil)

// Open creates or opens a Pebble database in the directory at path.
func Open(path string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cacheSize := opts.CacheSize
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}

	cache := pebble.NewCache(cacheSize)
	defer cache.Unref()

	db, err := pebble.Open(path, &pebble.Options{
		Cache:        cache,
		MemTableSize: defaultMemTableSize,
		Logger:       &pebbleLogger{logger: logger},
	})
	if err != nil {
		return nil, fmt.Errorf("opening pebble db: %w", err)
	}

	writeOpts := pebble.Sync
	if opts.NoSync {
		writeOpts = pebble.NoSync
	}

	logger.Debug("opened pebble store", "path", path)
	return &Store{db: db, writeOpts: writeOpts, logger: logger}, nil
}

// Close flushes and closes the database. Calling Close twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// withOpen runs fn while holding the read lock, failing if the store is closed.
// Pebble panics on use after close.
func (s *Store) withOpen(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return storage.ErrStorageClosed
	}
	return fn()
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	var result []byte
	err := s.withOpen(func() error {
		var err error
		result, err = s.get(key)
		return err
	})
	return result, err
}

func (s *Store) get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	return bytes.Clone(value), nil
}

// Has reports whether key exists.
func (s *Store) Has(ctx context.Context, key []byte) (bool, error) {
	_, err := s.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value []byte) error {
	return s.withOpen(func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		return s.db.Set(key, value, s.writeOpts)
	})
}

// SetIfExists replaces the value under key while holding the write lock.
func (s *Store) SetIfExists(ctx context.Context, key, value []byte) error {
	return s.withOpen(func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		if _, err := s.get(key); err != nil {
			return err
		}
		return s.db.Set(key, value, s.writeOpts)
	})
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key []byte) error {
	return s.withOpen(func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		return s.db.Delete(key, s.writeOpts)
	})
}

// Scan iterates over the closed interval [start, end] in key order.
// Pebble's upper bound is exclusive, so it is moved just past end.
func (s *Store) Scan(ctx context.Context, start, end []byte, fn func(key, value []byte) error) error {
	if bytes.Compare(start, end) > 0 {
		return nil
	}
	return s.withOpen(func() error {
		iter, err := s.db.NewIter(&pebble.IterOptions{
			LowerBound: start,
			UpperBound: storage.UpperBound(end),
		})
		if err != nil {
			return fmt.Errorf("creating iterator: %w", err)
		}
		defer iter.Close()

		for valid := iter.First(); valid; valid = iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			value, err := iter.ValueAndErr()
			if err != nil {
				return err
			}
			if err := fn(bytes.Clone(iter.Key()), bytes.Clone(value)); err != nil {
				return err
			}
		}
		return iter.Error()
	})
}
