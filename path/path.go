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

// Package path provides a uniform file-operation and locking abstraction
// ("UPath") that works the same way whether the target location lives on a
// local POSIX filesystem or on a blob storage service (GCS, S3).
//
// Directories are not first-class: a directory exists only as an implicit
// ancestor of some file, and Riterdir/Iterdir report files, never empty
// directory entries.
package path

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DirEntry describes one immediate child discovered by Iterdir.
type DirEntry struct {
	Name  string
	IsDir bool
}

// UPath is a location identifier with a uniform operation surface across
// storage backends.
type UPath interface {
	fmt.Stringer

	// ReadBytes returns the full contents of the file at this path.
	// Returns an error wrapping biglist.ErrNotFound if no file exists here.
	ReadBytes(ctx context.Context) ([]byte, error)

	// WriteBytes durably and atomically writes data to this path. Readers
	// never observe a torn write: either the previous content (or no file)
	// or the complete new content.
	//
	// If overwrite is false and a file already exists at this path, this
	// returns an error wrapping biglist.ErrAlreadyExists and the existing
	// file is left untouched.
	WriteBytes(ctx context.Context, data []byte, overwrite bool) error

	// Exists reports whether a file (not necessarily a directory) is present
	// at, or a descendant of, this path.
	Exists(ctx context.Context) (bool, error)

	// IsFile reports whether this path names a file.
	IsFile(ctx context.Context) (bool, error)

	// IsDir reports whether this path has at least one descendant file,
	// i.e. whether it is a non-empty implicit directory.
	IsDir(ctx context.Context) (bool, error)

	// Iterdir lists the immediate children of this path (files and implicit
	// subdirectories, one level deep).
	Iterdir(ctx context.Context) ([]DirEntry, error)

	// Riterdir recursively lists every file (never directories) at or below
	// this path, as paths relative to this path.
	Riterdir(ctx context.Context) ([]string, error)

	// RemoveFile removes the single file at this path. It is not an error
	// if no such file exists.
	RemoveFile(ctx context.Context) error

	// RemoveDirRecursive removes every file at or below this path.
	RemoveDirRecursive(ctx context.Context) error

	// Joinpath returns a new UPath formed by appending the given segments.
	Joinpath(segments ...string) UPath

	// Parent returns the UPath one level up from this one.
	Parent() UPath

	// Lock acquires an exclusive advisory lock scoped to this path.
	//
	// timeout < 0 blocks indefinitely; timeout == 0 fails immediately if the
	// lock is held; timeout > 0 blocks up to that long before failing with
	// an error wrapping biglist.ErrLockTimeout.
	//
	// Reentry by the same holder is not supported and will deadlock or fail.
	Lock(ctx context.Context, timeout time.Duration) (Guard, error)
}

// Guard is released exactly once, on every exit path (success, failure, or
// cancellation) at the call site that acquired it.
type Guard interface {
	Unlock() error
}

// Parse resolves a URI or filesystem path into a UPath.
//
//   - "gs://bucket/key..." resolves to a GCS-backed Blob.
//   - "s3://bucket/key..." resolves to an S3-backed Blob.
//   - anything else is treated as a local filesystem path (absolute or
//     relative; ".." is collapsed via filepath.Clean).
func Parse(ctx context.Context, uri string) (UPath, error) {
	switch {
	case strings.HasPrefix(uri, "gs://"):
		return newGCSFromURI(ctx, uri)
	case strings.HasPrefix(uri, "s3://"):
		return newS3FromURI(ctx, uri)
	default:
		return NewLocal(uri), nil
	}
}
