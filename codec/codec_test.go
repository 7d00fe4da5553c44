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

package codec_test

import (
	"testing"

	"github.com/clabernetes/biglist/codec"
	"github.com/google/go-cmp/cmp"
)

func TestRoundTripRowOrientedCodecs(t *testing.T) {
	for _, name := range []string{"json", "json-zstd", "orjson", "newline-delimited-json", "pickle-zstd", "pickle-lz4"} {
		t.Run(name, func(t *testing.T) {
			c, err := codec.Get(name)
			if err != nil {
				t.Fatalf("Get(%s): %v", name, err)
			}
			in := []any{"a", "b", "c"}
			data, err := c.SerializeBatch(in)
			if err != nil {
				t.Fatalf("SerializeBatch: %v", err)
			}
			out, err := c.DeserializeBatch(data)
			if err != nil {
				t.Fatalf("DeserializeBatch: %v", err)
			}
			if diff := cmp.Diff(in, out); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCSVCodecRoundTrip(t *testing.T) {
	c, err := codec.Get("csv")
	if err != nil {
		t.Fatalf("Get(csv): %v", err)
	}
	in := []any{[]string{"a", "1"}, []string{"b", "2"}}
	data, err := c.SerializeBatch(in)
	if err != nil {
		t.Fatalf("SerializeBatch: %v", err)
	}
	out, err := c.DeserializeBatch(data)
	if err != nil {
		t.Fatalf("DeserializeBatch: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestColumnarRowGroupsAndProjection(t *testing.T) {
	c, err := codec.Get("parquet")
	if err != nil {
		t.Fatalf("Get(parquet): %v", err)
	}
	cc := c.(codec.ColumnarCodec)

	rows := make([]map[string]any, 25)
	for i := range rows {
		rows[i] = map[string]any{"id": int64(i), "sales": int64(i * 10)}
	}
	data, err := cc.WriteColumnar(rows, []string{"id", "sales"}, 10)
	if err != nil {
		t.Fatalf("WriteColumnar: %v", err)
	}

	f, err := cc.OpenColumnar(data)
	if err != nil {
		t.Fatalf("OpenColumnar: %v", err)
	}
	if got, want := f.NumRows(), 25; got != want {
		t.Errorf("NumRows = %d, want %d", got, want)
	}
	if got, want := f.NumRowGroups(), 3; got != want {
		t.Errorf("NumRowGroups = %d, want %d", got, want)
	}

	proj, err := f.Project([]string{"sales"})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	b, err := proj.RowGroup(0)
	if err != nil {
		t.Fatalf("RowGroup(0): %v", err)
	}
	if got, want := b.Row(3), int64(30); got != want {
		t.Errorf("single-column projected Row(3) = %v (%T), want scalar %v", got, got, want)
	}
}
