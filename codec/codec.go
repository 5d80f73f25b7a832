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


// Package codec converts typed records to and from the bytes stored by an
// engine.
//
// Encoding and decoding are separate capabilities so a type can be
// write-only or read-only. No type information is stored with the bytes:
// the caller picks the target type when decoding.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"reflect"
)

// ErrTrailingData is returned when bytes remain after a complete value.
var ErrTrailingData = errors.New("trailing data after value")

// Encoder turns a value into bytes.
type Encoder[T any] interface {
	Encode(v T) ([]byte, error)
}

// Decoder turns bytes back into a value.
type Decoder[T any] interface {
	Decode(data []byte) (T, error)
}

// Codec can both encode and decode values of type T.
type Codec[T any] interface {
	Encoder[T]
	Decoder[T]
}

// JSON is the default codec. Its output is the durable on-disk format.
//
// Decoding ignores object fields that T does not declare, so records written
// by a newer or wider type still load. Every exported struct field that is
// not a pointer, interface, omitempty or omitzero must be present, and null
// is rejected where T cannot represent it, so a record of another shape
// fails instead of loading as a partly zero value.
type JSON[T any] struct{}

var _ Codec[struct{}] = JSON[struct{}]{}

// Encode marshals v as JSON.
func (JSON[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

// Decode unmarshals a single JSON value into a T.
func (JSON[T]) Decode(data []byte) (T, error) {
	return decodeJSON[T](data, false)
}

// StrictJSON is JSON that also rejects object fields T does not declare.
type StrictJSON[T any] struct{}

var _ Codec[struct{}] = StrictJSON[struct{}]{}

// Encode marshals v as JSON.
func (StrictJSON[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

// Decode unmarshals a single JSON value into a T, rejecting unknown fields.
func (StrictJSON[T]) Decode(data []byte) (T, error) {
	return decodeJSON[T](data, true)
}

func decodeJSON[T any](data []byte, strict bool) (T, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(data))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&v); err != nil {
		return v, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return v, ErrTrailingData
	}
	if err := checkRequired(reflect.TypeFor[T](), bytes.TrimSpace(data), ""); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// Func adapts a pair of functions into a Codec.
// Either function may be nil, in which case that direction fails.
type Func[T any] struct {
	EncodeFunc func(v T) ([]byte, error)
	DecodeFunc func(data []byte) (T, error)
}

// ErrUnsupported is returned by a Func whose function for a direction is nil.
var ErrUnsupported = errors.New("codec direction not supported")

// Encode calls EncodeFunc.
func (f Func[T]) Encode(v T) ([]byte, error) {
	if f.EncodeFunc == nil {
		return nil, ErrUnsupported
	}
	return f.EncodeFunc(v)
}

// Decode calls DecodeFunc.
func (f Func[T]) Decode(data []byte) (T, error) {
	if f.DecodeFunc == nil {
		var zero T
		return zero, ErrUnsupported
	}
	return f.DecodeFunc(data)
}
