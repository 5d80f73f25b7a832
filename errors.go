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


package avlondb

import (
	"errors"
	"fmt"

	"github.com/poiesic/avlondb/storage"
)

var (
	// ErrEncoding matches every EncodingError.
	ErrEncoding = errors.New("encoding failed")

	// ErrDecoding matches every DecodingError.
	ErrDecoding = errors.New("decoding failed")

	// ErrNotFound matches every NotFoundError.
	ErrNotFound = storage.ErrNotFound

	// ErrEmptyPath indicates that Open was called without a path for an on-disk store.
	ErrEmptyPath = errors.New("store path is required")

	// ErrInMemoryUnsupported indicates that the selected engine cannot run in memory.
	ErrInMemoryUnsupported = errors.New("engine does not support in-memory stores")
)

// ConstructionError reports that a store could not be opened.
type ConstructionError struct {
	Path   string
	Engine storage.Kind
	Err    error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("open %s store at %q: %v", e.Engine, e.Path, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// EncodingError reports that a value could not be serialized. Nothing was written.
type EncodingError struct {
	Key  string
	Type string
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s for key %q: %v", e.Type, e.Key, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrEncoding.
func (e *EncodingError) Is(target error) bool {
	return target == ErrEncoding
}

// DecodingError reports that stored bytes could not be read as the requested type.
// It is distinct from a missing key.
type DecodingError struct {
	Key  string
	Type string
	Err  error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("decode key %q as %s: %v", e.Key, e.Type, e.Err)
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDecoding.
func (e *DecodingError) Is(target error) bool {
	return target == ErrDecoding
}

// NotFoundError reports that Update targeted a key that does not exist.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("key %q does not exist", e.Key)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// EngineError wraps a failure reported by the storage engine.
// The engine's error is preserved verbatim.
type EngineError struct {
	Op  string
	Key string
	Err error
}

func (e *EngineError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
