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

package filereader_test

import (
	"context"
	"testing"

	"github.com/clabernetes/biglist/codec"
	"github.com/clabernetes/biglist/filereader"
	"github.com/clabernetes/biglist/path"
)

func writeTestFile(t *testing.T, dir path.UPath, name string, c codec.Codec, elems []any) *filereader.Reader {
	t.Helper()
	data, err := c.SerializeBatch(elems)
	if err != nil {
		t.Fatalf("SerializeBatch: %v", err)
	}
	p := dir.Joinpath(name)
	if err := p.WriteBytes(context.Background(), data, true); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	return filereader.New(p, c, len(elems))
}

func TestSeqLocateAndAt(t *testing.T) {
	ctx := context.Background()
	dir, err := path.Parse(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c, err := codec.Get("json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	r0 := writeTestFile(t, dir, "0.json", c, []any{"a", "b", "c"})
	r1 := writeTestFile(t, dir, "1.json", c, []any{"d", "e"})
	r2 := writeTestFile(t, dir, "2.json", c, []any{"f"})

	seq, err := filereader.NewSeq([]*filereader.Reader{r0, r1, r2}, []int{3, 2, 1})
	if err != nil {
		t.Fatalf("NewSeq: %v", err)
	}
	if got, want := seq.Len(), 6; got != want {
		t.Fatalf("Len = %d, want %d", got, want)
	}

	for i, want := range []string{"a", "b", "c", "d", "e", "f"} {
		got, err := seq.At(ctx, i)
		if err != nil {
			t.Fatalf("At(%d): %v", i, err)
		}
		if got != want {
			t.Errorf("At(%d) = %v, want %v", i, got, want)
		}
	}

	if _, _, err := seq.Locate(6); err == nil {
		t.Error("Locate(6) should be out of range")
	}
}

func TestSeqAllPreservesOrder(t *testing.T) {
	ctx := context.Background()
	dir, err := path.Parse(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c, err := codec.Get("json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	var readers []*filereader.Reader
	var counts []int
	var want []any
	for f := 0; f < 5; f++ {
		elems := []any{float64(f*10 + 0), float64(f*10 + 1)}
		readers = append(readers, writeTestFile(t, dir, fname(f), c, elems))
		counts = append(counts, len(elems))
		want = append(want, elems...)
	}

	seq, err := filereader.NewSeq(readers, counts)
	if err != nil {
		t.Fatalf("NewSeq: %v", err)
	}

	var got []any
	for v, err := range seq.All(ctx) {
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		got = append(got, v)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d elements, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSeqAllStopsEarly(t *testing.T) {
	ctx := context.Background()
	dir, err := path.Parse(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c, err := codec.Get("json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	var readers []*filereader.Reader
	var counts []int
	for f := 0; f < 10; f++ {
		elems := []any{float64(f)}
		readers = append(readers, writeTestFile(t, dir, fname(f), c, elems))
		counts = append(counts, len(elems))
	}
	seq, err := filereader.NewSeq(readers, counts)
	if err != nil {
		t.Fatalf("NewSeq: %v", err)
	}

	n := 0
	for range seq.All(ctx) {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Fatalf("stopped after %d elements, want 3", n)
	}
}

func TestSeqAtEvictsBeyondResidentCacheSize(t *testing.T) {
	ctx := context.Background()
	dir, err := path.Parse(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c, err := codec.Get("json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	const numFiles = filereader.PrefetchDepth + 40
	var readers []*filereader.Reader
	var counts []int
	for f := 0; f < numFiles; f++ {
		readers = append(readers, writeTestFile(t, dir, fname(f), c, []any{float64(f)}))
		counts = append(counts, 1)
	}
	seq, err := filereader.NewSeq(readers, counts)
	if err != nil {
		t.Fatalf("NewSeq: %v", err)
	}

	for i := 0; i < numFiles; i++ {
		if _, err := seq.At(ctx, i); err != nil {
			t.Fatalf("At(%d): %v", i, err)
		}
	}
	// Re-reading an early file after touching many later ones must still
	// decode the correct value: eviction only drops cached payloads, never
	// the file's identity or known length.
	v, err := seq.At(ctx, 0)
	if err != nil {
		t.Fatalf("At(0) after eviction: %v", err)
	}
	if v != float64(0) {
		t.Errorf("At(0) after eviction = %v, want 0", v)
	}
}

func fname(i int) string {
	return string(rune('a'+i)) + ".json"
}
