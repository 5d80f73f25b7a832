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


// Package storage defines the engine abstraction underneath avlondb.
//
// An Engine is an ordered key-value store that deals only in bytes. The
// typed façade in the root package translates records to and from those
// bytes; engines never see Go types.
//
// # Implementations
//
//   - storage/badger: BadgerDB (default, supports in-memory stores)
//   - storage/bolt: bbolt, a single-file B+ tree
//   - storage/pebble: Pebble, an LSM tree
//
// Each implementation package exposes an Open function returning a concrete
// type that satisfies Engine:
//
//	engine, err := badger.Open("/path/to/db", badger.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
// # Ordering
//
// Keys are compared byte-wise. Scan bounds are closed on both ends; engines
// whose native iterators take an exclusive upper bound use UpperBound to
// translate.
//
// # Thread Safety
//
// All engine implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
