// Copyright 2025 The BigList Authors. All Rights Reserved.
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

package biglist

import (
	"errors"

	"github.com/clabernetes/biglist/filereader"
	"github.com/clabernetes/biglist/path"
)

// Sentinel error kinds. Backends and callers should use errors.Is against
// these rather than matching on message text or concrete types.
//
// The path-layer and filereader-layer kinds are the same errors produced by
// those packages; they're re-exported here so callers of this package don't
// need to import path or filereader just to check an error kind.
var (
	// ErrNotFound indicates a path or store does not exist when one was expected.
	ErrNotFound = path.ErrNotFound
	// ErrAlreadyExists indicates an atomic, non-overwriting write found an existing target,
	// or New was called against an already-initialised root.
	ErrAlreadyExists = path.ErrAlreadyExists
	// ErrLockTimeout indicates an advisory lock could not be acquired within the deadline.
	ErrLockTimeout = path.ErrLockTimeout
	// ErrLockLost indicates a blob-backed lease lock's heartbeat lapsed and the holder
	// observed the loss.
	ErrLockLost = path.ErrLockLost
	// ErrCorruptManifest indicates info.json parsed but violated an invariant (non-monotonic
	// cumulative counts, unknown storage_format, duplicate file names).
	ErrCorruptManifest = errors.New("biglist: corrupt manifest")
	// ErrCorruptData indicates a data file failed to deserialize, or its recorded count
	// disagreed with the decoded length.
	ErrCorruptData = filereader.ErrCorruptData
	// ErrBackendUnavailable indicates a transient I/O failure at the path layer.
	ErrBackendUnavailable = path.ErrBackendUnavailable
	// ErrCancelled indicates an operation was aborted externally.
	ErrCancelled = errors.New("biglist: cancelled")
)
