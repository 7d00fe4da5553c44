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

package filereader

import (
	"context"
	"fmt"
	"sync"

	"github.com/clabernetes/biglist/codec"
	"github.com/clabernetes/biglist/path"
)

// ColumnarReader is a lazy handle over one columnar data file, exposing
// row-group sub-structure in addition to plain row access.
type ColumnarReader struct {
	p     path.UPath
	codec codec.ColumnarCodec

	mu      sync.Mutex
	file    codec.ColumnarFile
	didLoad bool
	loadErr error
}

// NewColumnar creates a ColumnarReader for the file at p.
func NewColumnar(p path.UPath, c codec.ColumnarCodec) *ColumnarReader {
	return &ColumnarReader{p: p, codec: c}
}

// newLoaded wraps an already-open ColumnarFile (e.g. the result of
// Project), so Projected readers never re-read or re-decode their parent's
// bytes.
func newLoaded(p path.UPath, f codec.ColumnarFile) *ColumnarReader {
	return &ColumnarReader{p: p, didLoad: true, file: f}
}

// Path returns the underlying location of this file.
func (r *ColumnarReader) Path() path.UPath { return r.p }

func (r *ColumnarReader) open(ctx context.Context) (codec.ColumnarFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.didLoad {
		return r.file, r.loadErr
	}
	r.didLoad = true
	raw, err := r.p.ReadBytes(ctx)
	if err != nil {
		r.loadErr = fmt.Errorf("read %s: %w", r.p, err)
		return nil, r.loadErr
	}
	f, err := r.codec.OpenColumnar(raw)
	if err != nil {
		r.loadErr = fmt.Errorf("open columnar %s: %w", r.p, err)
		return nil, r.loadErr
	}
	r.file = f
	return r.file, nil
}

// NumRows returns this file's total row count, loading if necessary.
func (r *ColumnarReader) NumRows(ctx context.Context) (int, error) {
	f, err := r.open(ctx)
	if err != nil {
		return 0, err
	}
	return f.NumRows(), nil
}

// NumRowGroups returns this file's row group count, loading if necessary.
func (r *ColumnarReader) NumRowGroups(ctx context.Context) (int, error) {
	f, err := r.open(ctx)
	if err != nil {
		return 0, err
	}
	return f.NumRowGroups(), nil
}

// RowGroup decodes row group i.
func (r *ColumnarReader) RowGroup(ctx context.Context, i int) (codec.Batch, error) {
	f, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	return f.RowGroup(i)
}

// Row returns the i-th row across the whole file (spanning row groups).
func (r *ColumnarReader) Row(ctx context.Context, i int) (any, error) {
	f, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= f.NumRows() {
		return nil, fmt.Errorf("row %d out of range [0,%d)", i, f.NumRows())
	}
	remaining := i
	for g := 0; g < f.NumRowGroups(); g++ {
		b, err := f.RowGroup(g)
		if err != nil {
			return nil, err
		}
		if remaining < b.Len() {
			return b.Row(remaining), nil
		}
		remaining -= b.Len()
	}
	return nil, fmt.Errorf("row %d not found despite being in range", i)
}

// Project returns a new ColumnarReader restricted to the named columns.
// The projection is computed against the already-decoded file (this
// self-contained container decodes a file as a whole rather than
// streaming individual column chunks from disk), but row-group access on
// the result still only materializes one group's rows at a time.
func (r *ColumnarReader) Project(ctx context.Context, names []string) (*ColumnarReader, error) {
	f, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	pf, err := f.Project(names)
	if err != nil {
		return nil, err
	}
	return newLoaded(r.p, pf), nil
}
