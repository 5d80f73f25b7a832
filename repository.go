package avlondb

import (
	"context"
	"errors"
	"reflect"

	"github.com/poiesic/avlondb/codec"
)

// Repository is a typed view of a Store that encodes and decodes records
// of type T with a fixed codec.
type Repository[T any] struct {
	store *Store
	codec codec.Codec[T]
}

// NewRepository creates a Repository over s. A nil codec selects codec.JSON.
func NewRepository[T any](s *Store, c codec.Codec[T]) *Repository[T] {
	if c == nil {
		c = codec.JSON[T]{}
	}
	return &Repository[T]{store: s, codec: c}
}

// Save stores v under key, replacing any existing value.
func (r *Repository[T]) Save(ctx context.Context, key string, v T) error {
	return SaveWith(ctx, r.store, r.codec, key, v)
}

// Load returns the record under key. ok is false if the key doesn't exist.
func (r *Repository[T]) Load(ctx context.Context, key string) (v T, ok bool, err error) {
	return LoadWith(ctx, r.store, r.codec, key)
}

// LoadRange returns every record with a key in [start, end], in key order.
func (r *Repository[T]) LoadRange(ctx context.Context, start, end string) ([]T, error) {
	return LoadRangeWith(ctx, r.store, r.codec, start, end)
}

// Each calls fn for every record with a key in [start, end], in key order.
func (r *Repository[T]) Each(ctx context.Context, start, end string, fn func(key string, v T) error) error {
	return EachWith(ctx, r.store, r.codec, start, end, fn)
}

// Update replaces the record under an existing key.
func (r *Repository[T]) Update(ctx context.Context, key string, v T) error {
	return UpdateWith(ctx, r.store, r.codec, key, v)
}

// Remove deletes key. Removing a missing key is not an error.
func (r *Repository[T]) Remove(ctx context.Context, key string) error {
	return r.store.Remove(ctx, key)
}

// Exists reports whether key is present.
func (r *Repository[T]) Exists(ctx context.Context, key string) (bool, error) {
	return r.store.Exists(ctx, key)
}

// Save encodes v as JSON and stores it under key, replacing any existing value.
func Save[T any](ctx context.Context, s *Store, key string, v T) error {
	return SaveWith(ctx, s, codec.JSON[T]{}, key, v)
}

// Load decodes the JSON record under key into a T.
// A missing key returns ok == false and a nil error; a record that cannot be
// read as T returns a *DecodingError.
func Load[T any](ctx context.Context, s *Store, key string) (v T, ok bool, err error) {
	return LoadWith(ctx, s, codec.JSON[T]{}, key)
}

// LoadRange decodes every JSON record with a key in the closed interval
// [start, end], in ascending byte order of key. The first record that fails
// to decode aborts the scan with a *DecodingError naming its key.
func LoadRange[T any](ctx context.Context, s *Store, start, end string) ([]T, error) {
	return LoadRangeWith(ctx, s, codec.JSON[T]{}, start, end)
}

// Update replaces the JSON record under key. It returns a *NotFoundError if
// the key does not exist. The existence check and the write are atomic.
func Update[T any](ctx context.Context, s *Store, key string, v T) error {
	return UpdateWith(ctx, s, codec.JSON[T]{}, key, v)
}

// SaveWith is Save with an explicit encoder.
func SaveWith[T any](ctx context.Context, s *Store, enc codec.Encoder[T], key string, v T) error {
	if err := checkKey(ctx, key); err != nil {
		return err
	}
	data, err := enc.Encode(v)
	if err != nil {
		return &EncodingError{Key: key, Type: typeName[T](), Err: err}
	}
	if err := s.engine.Set(ctx, []byte(key), data); err != nil {
		return &EngineError{Op: "save", Key: key, Err: err}
	}
	return nil
}

// LoadWith is Load with an explicit decoder.
func LoadWith[T any](ctx context.Context, s *Store, dec codec.Decoder[T], key string) (v T, ok bool, err error) {
	if err := checkKey(ctx, key); err != nil {
		return v, false, err
	}
	data, err := s.engine.Get(ctx, []byte(key))
	if isNotFound(err) {
		return v, false, nil
	}
	if err != nil {
		return v, false, &EngineError{Op: "load", Key: key, Err: err}
	}
	v, err = dec.Decode(data)
	if err != nil {
		var zero T
		return zero, false, &DecodingError{Key: key, Type: typeName[T](), Err: err}
	}
	return v, true, nil
}

// LoadRangeWith is LoadRange with an explicit decoder.
func LoadRangeWith[T any](ctx context.Context, s *Store, dec codec.Decoder[T], start, end string) ([]T, error) {
	results := []T{}
	err := EachWith(ctx, s, dec, start, end, func(_ string, v T) error {
		results = append(results, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// EachWith decodes every record with a key in [start, end] and passes it to
// fn in key order. A decode failure stops the scan with a *DecodingError;
// an error from fn stops the scan and is returned unchanged.
func EachWith[T any](ctx context.Context, s *Store, dec codec.Decoder[T], start, end string, fn func(key string, v T) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var stop error
	err := s.engine.Scan(ctx, []byte(start), []byte(end), func(key, value []byte) error {
		v, err := dec.Decode(value)
		if err != nil {
			stop = &DecodingError{Key: string(key), Type: typeName[T](), Err: err}
			return stop
		}
		if err := fn(string(key), v); err != nil {
			stop = err
			return err
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if stop != nil && errors.Is(err, stop) {
		return stop
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	return &EngineError{Op: "load range", Key: start + ".." + end, Err: err}
}

// UpdateWith is Update with an explicit encoder.
func UpdateWith[T any](ctx context.Context, s *Store, enc codec.Encoder[T], key string, v T) error {
	if err := checkKey(ctx, key); err != nil {
		return err
	}
	data, err := enc.Encode(v)
	if err != nil {
		return &EncodingError{Key: key, Type: typeName[T](), Err: err}
	}
	err = s.engine.SetIfExists(ctx, []byte(key), data)
	if isNotFound(err) {
		s.logger.Debug("update of missing key", "key", key)
		return &NotFoundError{Key: key}
	}
	if err != nil {
		return &EngineError{Op: "update", Key: key, Err: err}
	}
	return nil
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
