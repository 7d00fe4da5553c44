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

package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// DefaultRowGroupSize is used when a caller doesn't specify one explicitly
// when writing a columnar file.
const DefaultRowGroupSize = 64

// ColumnarCodec is implemented by codecs that expose row-group structure
// (the pack contains no Parquet or Avro library at all, across any of the
// six example repos; this is a self-contained row-grouped columnar
// container that fills the same architectural role those formats would —
// see DESIGN.md).
type ColumnarCodec interface {
	Codec
	// OpenColumnar parses a columnar file's bytes into a random-access,
	// row-group-aware view.
	OpenColumnar(data []byte) (ColumnarFile, error)
	// WriteColumnar serializes rows (each a map[string]any over the same
	// set of columns) into a columnar file with the given row-group size.
	WriteColumnar(rows []map[string]any, columns []string, rowGroupSize int) ([]byte, error)
}

// ColumnarFile is a random-access, row-group-granular view over one
// columnar data file.
type ColumnarFile interface {
	// NumRows is the total row count across all row groups.
	NumRows() int
	// NumRowGroups is the number of row groups in this file.
	NumRowGroups() int
	// RowGroup decodes row group i into a Batch.
	RowGroup(i int) (Batch, error)
	// Columns lists this file's column names, in declared order.
	Columns() []string
	// Project returns a new ColumnarFile restricted to the named columns:
	// Row on its row groups yields only those columns. The file's bytes are
	// already fully decoded when it is opened, so no column data is skipped
	// on load.
	Project(names []string) (ColumnarFile, error)
}

// Batch is one row group's worth of decoded rows.
type Batch interface {
	// Len is the number of rows in this batch.
	Len() int
	// Row returns row i. If the batch has exactly one projected column, Row
	// returns that column's bare scalar rather than a single-key map — a
	// deliberate ergonomics quirk preserved from the spec this ported from.
	Row(i int) any
	// Column returns every value of the named column across this batch, in
	// row order.
	Column(name string) []any
}

type columnarCodec struct {
	name string
	ext  string
}

func newColumnarCodec(name, ext string) *columnarCodec {
	return &columnarCodec{name: name, ext: ext}
}

func (c *columnarCodec) Name() string   { return c.name }
func (c *columnarCodec) Ext() string    { return c.ext }
func (c *columnarCodec) Columnar() bool { return true }

// columnarFileData is the on-disk (gob-encoded) representation.
type columnarFileData struct {
	Columns      []string
	RowGroupSize int
	// Rows is stored row-major and decoded as a whole when the file is
	// opened; row groups are computed by slicing this by RowGroupSize, so
	// RowGroup(i) hands out only that group's rows (and, after Project,
	// Row yields only the projected columns).
	Rows []map[string]any
}

func (c *columnarCodec) SerializeBatch(elems []any) ([]byte, error) {
	rows := make([]map[string]any, len(elems))
	var columns []string
	for i, e := range elems {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: element %d is %T, want map[string]any", c.name, i, e)
		}
		rows[i] = m
		if i == 0 {
			for k := range m {
				columns = append(columns, k)
			}
		}
	}
	return c.WriteColumnar(rows, columns, DefaultRowGroupSize)
}

func (c *columnarCodec) DeserializeBatch(data []byte) ([]any, error) {
	f, err := c.OpenColumnar(data)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, f.NumRows())
	for g := 0; g < f.NumRowGroups(); g++ {
		b, err := f.RowGroup(g)
		if err != nil {
			return nil, err
		}
		for i := 0; i < b.Len(); i++ {
			out = append(out, b.Row(i))
		}
	}
	return out, nil
}

func (c *columnarCodec) WriteColumnar(rows []map[string]any, columns []string, rowGroupSize int) ([]byte, error) {
	if rowGroupSize <= 0 {
		rowGroupSize = DefaultRowGroupSize
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(columnarFileData{Columns: columns, RowGroupSize: rowGroupSize, Rows: rows}); err != nil {
		return nil, fmt.Errorf("%s: encode: %w", c.name, err)
	}
	return buf.Bytes(), nil
}

func (c *columnarCodec) OpenColumnar(data []byte) (ColumnarFile, error) {
	var fd columnarFileData
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&fd); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", c.name, err)
	}
	if fd.RowGroupSize <= 0 {
		fd.RowGroupSize = DefaultRowGroupSize
	}
	return &columnarFile{data: fd}, nil
}

type columnarFile struct {
	data    columnarFileData
	project []string // nil means all columns
}

func (f *columnarFile) Columns() []string {
	if f.project != nil {
		return f.project
	}
	return f.data.Columns
}

func (f *columnarFile) NumRows() int { return len(f.data.Rows) }

func (f *columnarFile) NumRowGroups() int {
	n := len(f.data.Rows)
	if n == 0 {
		return 0
	}
	return (n + f.data.RowGroupSize - 1) / f.data.RowGroupSize
}

func (f *columnarFile) RowGroup(i int) (Batch, error) {
	if i < 0 || i >= f.NumRowGroups() {
		return nil, fmt.Errorf("row group %d out of range [0,%d)", i, f.NumRowGroups())
	}
	start := i * f.data.RowGroupSize
	end := start + f.data.RowGroupSize
	if end > len(f.data.Rows) {
		end = len(f.data.Rows)
	}
	return &batch{rows: f.data.Rows[start:end], columns: f.Columns()}, nil
}

func (f *columnarFile) Project(names []string) (ColumnarFile, error) {
	cp := make([]string, len(names))
	copy(cp, names)
	return &columnarFile{data: f.data, project: cp}, nil
}

type batch struct {
	rows    []map[string]any
	columns []string
}

func (b *batch) Len() int { return len(b.rows) }

func (b *batch) Row(i int) any {
	row := b.rows[i]
	if len(b.columns) == 1 {
		return row[b.columns[0]]
	}
	out := make(map[string]any, len(b.columns))
	for _, c := range b.columns {
		out[c] = row[c]
	}
	return out
}

func (b *batch) Column(name string) []any {
	out := make([]any, len(b.rows))
	for i, row := range b.rows {
		out[i] = row[name]
	}
	return out
}
