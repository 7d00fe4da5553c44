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

package biglist_test

import (
	"context"
	"testing"

	"github.com/clabernetes/biglist"
	"github.com/clabernetes/biglist/codec"
	"github.com/clabernetes/biglist/path"
)

func writeColumnarFixture(t *testing.T, root path.UPath, name string, numRows int, rowGroupSize int) {
	t.Helper()
	c, err := codec.Get("parquet")
	if err != nil {
		t.Fatalf("Get(parquet): %v", err)
	}
	cc := c.(codec.ColumnarCodec)

	rows := make([]map[string]any, numRows)
	for i := range rows {
		rows[i] = map[string]any{"id": int64(i), "sales": int64(200 + i)}
	}
	data, err := cc.WriteColumnar(rows, []string{"id", "sales"}, rowGroupSize)
	if err != nil {
		t.Fatalf("WriteColumnar: %v", err)
	}
	if err := root.Joinpath(name).WriteBytes(context.Background(), data, true); err != nil {
		t.Fatalf("WriteBytes(%s): %v", name, err)
	}
}

func TestExternalBigListDiscoveryAndOrder(t *testing.T) {
	ctx := context.Background()
	root, err := path.Parse(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	manifestRoot, err := path.Parse(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	writeColumnarFixture(t, root, "ford.parquet", 61, 10)
	writeColumnarFixture(t, root, "honda.parquet", 51, 10)

	x, err := biglist.NewExternal(ctx, root, manifestRoot, "parquet")
	if err != nil {
		t.Fatalf("NewExternal: %v", err)
	}
	if got, want := x.Len(), 112; got != want {
		t.Fatalf("Len = %d, want %d", got, want)
	}

	files := x.Files()
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	n, err := files[0].NumRowGroups(ctx)
	if err != nil {
		t.Fatalf("NumRowGroups: %v", err)
	}
	if n != 7 {
		t.Errorf("files[0].NumRowGroups = %d, want 7 (ford should sort first)", n)
	}
	n, err = files[1].NumRowGroups(ctx)
	if err != nil {
		t.Fatalf("NumRowGroups: %v", err)
	}
	if n != 6 {
		t.Errorf("files[1].NumRowGroups = %d, want 6 (honda)", n)
	}

	// ford rows come first (0..60), honda rows follow (61..111).
	first, err := x.At(ctx, 0)
	if err != nil {
		t.Fatalf("At(0): %v", err)
	}
	if got := first.(map[string]any)["sales"]; got != int64(200) {
		t.Errorf("At(0) sales = %v, want 200", got)
	}
	last, err := x.At(ctx, 111)
	if err != nil {
		t.Fatalf("At(111): %v", err)
	}
	if got := last.(map[string]any)["sales"]; got != int64(200+50) {
		t.Errorf("At(111) sales = %v, want %v", got, 250)
	}
}

func TestExternalBigListColumnProjectionScalarShape(t *testing.T) {
	ctx := context.Background()
	root, err := path.Parse(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	manifestRoot, err := path.Parse(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	writeColumnarFixture(t, root, "ford.parquet", 61, 10)

	x, err := biglist.NewExternal(ctx, root, manifestRoot, "parquet")
	if err != nil {
		t.Fatalf("NewExternal: %v", err)
	}
	ford := x.Files()[0]
	proj, err := ford.Project(ctx, []string{"sales"})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	v, err := proj.Row(ctx, 3)
	if err != nil {
		t.Fatalf("Row(3): %v", err)
	}
	if got, want := v, int64(203); got != want {
		t.Errorf("projected Row(3) = %v (%T), want scalar %v", got, got, want)
	}
}
