// Copyright 2025 MediaStore Authors
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

package common

import "errors"

var (
	// ErrNotFound is returned for operations on an unknown asset id.
	ErrNotFound = errors.New("asset not found")
	// ErrConflict marks a content-hash uniqueness conflict. It is resolved
	// internally by re-fetching the winning row and never reaches callers.
	ErrConflict = errors.New("content hash conflict")
	// ErrFetch marks a network or timeout failure while fetching source bytes.
	ErrFetch = errors.New("source fetch failed")
	// ErrUnsupportedFormat marks a decode failure. Ingestion continues with
	// degraded metadata; the error surfaces only as a warning.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrStorageWrite marks a blob store write failure. Ingestion aborts and
	// no catalog row is created.
	ErrStorageWrite = errors.New("storage write failed")
	// ErrPartialDelete marks a permanent delete where one or more sub-steps
	// failed. Per-step outcomes are reported in the result warnings.
	ErrPartialDelete = errors.New("partial delete")
	// ErrInvalidPath marks a malformed canonical storage path.
	ErrInvalidPath = errors.New("invalid path")
)
