package codec

import (
	"fmt"

	"github.com/mus-format/mus-go"
)

// MUS is a compact binary codec backed by a MUS serializer, typically one
// generated with musgen. Data written with MUS can only be read with the
// same serializer; prefer JSON for anything that must stay inspectable.
type MUS[T any] struct {
	Serializer mus.Serializer[T]
}

// NewMUS returns a MUS codec for the given serializer.
func NewMUS[T any](s mus.Serializer[T]) MUS[T] {
	return MUS[T]{Serializer: s}
}

// Encode serializes v into a buffer of exactly the required size.
func (m MUS[T]) Encode(v T) ([]byte, error) {
	buf := make([]byte, m.Serializer.Size(v))
	m.Serializer.Marshal(v, buf)
	return buf, nil
}

// Decode deserializes a T and requires that all of data is consumed.
func (m MUS[T]) Decode(data []byte) (T, error) {
	v, n, err := m.Serializer.Unmarshal(data)
	if err != nil {
		return v, err
	}
	if n != len(data) {
		return v, fmt.Errorf("%w: %d of %d bytes consumed", ErrTrailingData, n, len(data))
	}
	return v, nil
}
