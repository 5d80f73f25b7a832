package storage

import (
	"context"
	"fmt"
	"strings"
)

// Engine is an ordered, byte-oriented key-value engine.
// Implementations must be thread-safe and support concurrent access.
type Engine interface {
	// Get returns the value stored under key.
	// Returns ErrNotFound if the key doesn't exist.
	// The returned slice is owned by the caller.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Has reports whether key exists.
	Has(ctx context.Context, key []byte) (bool, error)

	// Set stores value under key, replacing any existing value.
	Set(ctx context.Context, key, value []byte) error

	// SetIfExists replaces the value under key only if the key exists.
	// The existence check and the write are a single atomic step with respect
	// to other writers on the same engine.
	// Returns ErrNotFound if the key doesn't exist.
	SetIfExists(ctx context.Context, key, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key []byte) error

	// Scan calls fn for every key in the closed interval [start, end],
	// in ascending byte order. Iteration stops at the first error from fn,
	// which is returned unchanged. Slices passed to fn are owned by fn.
	Scan(ctx context.Context, start, end []byte, fn func(key, value []byte) error) error

	// Close flushes and releases the engine.
	Close() error
}

// Kind identifies an engine implementation.
type Kind string

const (
	// KindBadger is the BadgerDB LSM engine. It is the default.
	KindBadger Kind = "badger"
	// KindBolt is the bbolt B+ tree engine.
	KindBolt Kind = "bolt"
	// KindPebble is the Pebble LSM engine.
	KindPebble Kind = "pebble"
)

// Kinds lists every supported engine kind.
func Kinds() []Kind {
	return []Kind{KindBadger, KindBolt, KindPebble}
}

// ParseKind converts a configuration string into a Kind.
// The empty string selects KindBadger.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(KindBadger):
		return KindBadger, nil
	case string(KindBolt), "bbolt":
		return KindBolt, nil
	case string(KindPebble):
		return KindPebble, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEngine, s)
	}
}

// UpperBound returns the smallest key that sorts after key.
// It turns a closed upper bound into the exclusive bound some engines expect.
func UpperBound(key []byte) []byte {
	bound := make([]byte, len(key)+1)
	copy(bound, key)
	return bound
}
