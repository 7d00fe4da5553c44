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

// Package filereader provides the lazy per-file handle (Reader)
// and the indexable, prefetching sequence of such handles (Seq) that both
// BigList and ExternalBigList are built on.
package filereader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/clabernetes/biglist/codec"
	"github.com/clabernetes/biglist/path"
)

// ErrCorruptData indicates a data file failed to deserialize, or its
// recorded count disagreed with the decoded length. biglist.ErrCorruptData
// is the same error, re-exported so callers never need to import this
// package just to check the kind.
var ErrCorruptData = errors.New("filereader: corrupt data file")

// Reader is a lazy handle over one data file: it carries only a path and a
// small amount of metadata until something actually asks for its contents.
// Reader itself has no serialized form: an equivalent handle in another
// process/host (e.g. a Multiplexer worker) is built with New from the same
// path, codec and count, and triggers its own I/O on first access.
type Reader struct {
	p     path.UPath
	codec codec.Codec

	mu      sync.Mutex
	count   int // -1 until known
	loaded  []any
	loadErr error
	didLoad bool
}

// New creates a Reader for the file at p. If count is known up front (as it
// always is when constructed from a BigList manifest entry), pass it so Len
// never has to touch the file; otherwise pass -1.
func New(p path.UPath, c codec.Codec, count int) *Reader {
	return &Reader{p: p, codec: c, count: count}
}

// Path returns the underlying location of this file.
func (r *Reader) Path() path.UPath { return r.p }

// Len returns this file's element count, loading the file if the count
// wasn't already known.
func (r *Reader) Len(ctx context.Context) (int, error) {
	r.mu.Lock()
	if r.count >= 0 {
		defer r.mu.Unlock()
		return r.count, nil
	}
	r.mu.Unlock()
	if _, err := r.Load(ctx); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count, nil
}

// Load decodes the whole file into memory. Idempotent and safe for
// concurrent callers: only the first caller does I/O.
func (r *Reader) Load(ctx context.Context) ([]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.didLoad {
		return r.loaded, r.loadErr
	}
	r.didLoad = true

	raw, err := r.p.ReadBytes(ctx)
	if err != nil {
		r.loadErr = fmt.Errorf("read %s: %w", r.p, err)
		return nil, r.loadErr
	}
	elems, err := r.codec.DeserializeBatch(raw)
	if err != nil {
		r.loadErr = fmt.Errorf("%w: decode %s: %v", ErrCorruptData, r.p, err)
		return nil, r.loadErr
	}
	if r.count >= 0 && len(elems) != r.count {
		r.loadErr = fmt.Errorf("%w: decode %s: recorded count %d disagrees with decoded length %d", ErrCorruptData, r.p, r.count, len(elems))
		return nil, r.loadErr
	}
	r.loaded = elems
	r.count = len(elems)
	return r.loaded, nil
}

// At returns the i-th element of this file (0-based), loading on first access.
func (r *Reader) At(ctx context.Context, i int) (any, error) {
	elems, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(elems) {
		return nil, fmt.Errorf("index %d out of range [0,%d)", i, len(elems))
	}
	return elems[i], nil
}

// Evict drops this Reader's decoded payload, leaving count (once known) and
// any decode error in place. A later At/Load call re-reads and re-decodes
// the file from scratch. Used by Seq to bound how many files' payloads stay
// resident in memory under random-access Seq.At traffic.
func (r *Reader) Evict() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		// A failed decode isn't retried by re-evicting; leave it recorded.
		return
	}
	r.loaded = nil
	r.didLoad = false
}
