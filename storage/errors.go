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


package storage

import "errors"

var (
	// ErrNotFound indicates that the requested key was not found.
	ErrNotFound = errors.New("key not found")

	// ErrEmptyKey indicates that an empty key was supplied.
	ErrEmptyKey = errors.New("key cannot be empty")

	// ErrStorageClosed indicates that the storage engine is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrUnknownEngine indicates an unrecognized engine kind.
	ErrUnknownEngine = errors.New("unknown storage engine")

	// ErrNotDirectory indicates that a store path exists but is not a directory.
	ErrNotDirectory = errors.New("path is not a directory")
)
