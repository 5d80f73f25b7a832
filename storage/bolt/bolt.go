// Package bolt implements storage.Engine on bbolt, an embedded B+ tree.
package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/poiesic/avlondb/storage"
	bolt "go.etcd.io/bbolt"
)

const defaultLockTimeout = time.Second

// bucketName holds every record. bbolt has no keyspace outside buckets.
var bucketName = []byte("records")

// Options configures a Store.
type Options struct {
	// LockTimeout bounds how long Open waits for the file lock held by
	// another process. Default is one second.
	LockTimeout time.Duration

	// NoSync skips fsync after each commit.
	NoSync bool

	// Logger receives engine log output.
	// Default is slog.Default().
	Logger *slog.Logger
}

// Store implements storage.Engine using bbolt.
type Store struct {
	db     *bolt.DB
	logger *slog.Logger
}

var _ storage.Engine = (*Store)(nil)

// Open creates or opens a bbolt database file at the given path.
// Missing parent directories are created.
func Open(path string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: timeout,
		NoSync:  opts.NoSync,
		Logger:  &boltLogger{logger: logger},
	})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	logger.Debug("opened bolt store", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database file and releases its lock.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) view(fn func(b *bolt.Bucket) error) error {
	return translate(s.db.View(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(bucketName))
	}))
}

func (s *Store) update(fn func(b *bolt.Bucket) error) error {
	return translate(s.db.Update(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(bucketName))
	}))
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	var val []byte
	err := s.view(func(b *bolt.Bucket) error {
		v := b.Get(key)
		if v == nil {
			return storage.ErrNotFound
		}
		val = bytes.Clone(v)
		return nil
	})
	return val, err
}

// Has reports whether key exists.
func (s *Store) Has(ctx context.Context, key []byte) (bool, error) {
	var found bool
	err := s.view(func(b *bolt.Bucket) error {
		found = b.Get(key) != nil
		return nil
	})
	return found, err
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value []byte) error {
	return s.update(func(b *bolt.Bucket) error {
		return b.Put(key, value)
	})
}

// SetIfExists replaces the value under key. bbolt allows a single writer,
// so the check and the write share one read-write transaction.
func (s *Store) SetIfExists(ctx context.Context, key, value []byte) error {
	return s.update(func(b *bolt.Bucket) error {
		if b.Get(key) == nil {
			return storage.ErrNotFound
		}
		return b.Put(key, value)
	})
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key []byte) error {
	return s.update(func(b *bolt.Bucket) error {
		return b.Delete(key)
	})
}

// Scan iterates over the closed interval [start, end] in key order.
func (s *Store) Scan(ctx context.Context, start, end []byte, fn func(key, value []byte) error) error {
	if bytes.Compare(start, end) > 0 {
		return nil
	}
	return s.view(func(b *bolt.Bucket) error {
		c := b.Cursor()
		for k, v := c.Seek(start); k != nil && bytes.Compare(k, end) <= 0; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			// Nested buckets have nil values; none are created here.
			if v == nil {
				continue
			}
			if err := fn(bytes.Clone(k), bytes.Clone(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bolt.ErrDatabaseNotOpen):
		return storage.ErrStorageClosed
	default:
		return err
	}
}
