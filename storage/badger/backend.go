package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/avlondb/retry"
	"github.com/poiesic/avlondb/storage"
)

const (
	defaultConflictRetries = 5
	defaultConflictDelay   = 2 * time.Millisecond
)

// Options configures a Backend.
type Options struct {
	// InMemory keeps all data in memory. The path is ignored.
	InMemory bool

	// SyncWrites makes every write wait for an fsync.
	SyncWrites bool

	// Logger receives backend and BadgerDB log output.
	// Default is slog.Default().
	Logger *slog.Logger
}

// Backend wraps a BadgerDB instance and implements storage.Engine.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
	retry  retry.Policy
}

var _ storage.Engine = (*Backend)(nil)

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist.
func Open(filePath string, opts Options) (*Backend, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := ensureDir(filePath); err != nil {
			return nil, err
		}
		bopts = badger.DefaultOptions(filePath).WithSyncWrites(opts.SyncWrites)
	}

	bopts.Logger = &badgerLoggerAdapter{logger: logger}
	bopts.Compression = options.None

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:     db,
		logger: logger,
		retry: retry.Policy{
			MaxAttempts: defaultConflictRetries,
			BaseDelay:   defaultConflictDelay,
			Retryable: func(err error) bool {
				return errors.Is(err, badger.ErrConflict)
			},
			Logger: logger,
		},
	}, nil
}

func ensureDir(filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(filePath, 0755); err != nil {
			return err
		}
		info, err = os.Stat(filePath)
		if err != nil {
			return err
		}
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", filePath, storage.ErrNotDirectory)
	}
	return nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction that fn must commit.
// The transaction is always discarded afterwards.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// Get returns the value stored under key.
func (b *Backend) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := b.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if err != nil {
			return translate(err)
		}
		value, err = item.ValueCopy(nil)
		return err
	}, false)
	return value, err
}

// Has reports whether key exists.
func (b *Backend) Has(ctx context.Context, key []byte) (bool, error) {
	err := b.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		return translate(err)
	}, false)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Set stores value under key.
func (b *Backend) Set(ctx context.Context, key, value []byte) error {
	return b.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// SetIfExists replaces the value under key inside one read-write transaction.
// A concurrent commit touching key makes the transaction fail with
// badger.ErrConflict, in which case the whole check-and-write is retried.
func (b *Backend) SetIfExists(ctx context.Context, key, value []byte) error {
	return b.retry.Do(ctx, func() error {
		return b.WithTx(func(tx *badger.Txn) error {
			if _, err := tx.Get(key); err != nil {
				return translate(err)
			}
			if err := tx.Set(key, value); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
	})
}

// Delete removes key.
func (b *Backend) Delete(ctx context.Context, key []byte) error {
	return b.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Scan iterates over the closed interval [start, end] in key order.
func (b *Backend) Scan(ctx context.Context, start, end []byte, fn func(key, value []byte) error) error {
	if bytes.Compare(start, end) > 0 {
		return nil
	}
	return b.WithTx(func(tx *badger.Txn) error {
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		for iter.Seek(start); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			if bytes.Compare(item.Key(), end) > 0 {
				break
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), value); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// translate maps BadgerDB sentinel errors onto storage errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return storage.ErrNotFound
	case errors.Is(err, badger.ErrDBClosed):
		return storage.ErrStorageClosed
	default:
		return err
	}
}
