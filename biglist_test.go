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
	"errors"
	"sync"
	"testing"

	"github.com/clabernetes/biglist"
	"github.com/clabernetes/biglist/path"
)

func tempRoot(t *testing.T) path.UPath {
	t.Helper()
	ctx := context.Background()
	p, err := path.Parse(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return p.Joinpath("biglist-root")
}

func TestSingleWriterAppendIterate(t *testing.T) {
	ctx := context.Background()
	root := tempRoot(t)
	bl, err := biglist.New(ctx, root, 100, "json")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const n = 10023
	for i := 0; i < n; i++ {
		if err := bl.Append(ctx, float64(i)); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}
	if err := bl.Flush(ctx, true); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	reopened, err := biglist.Open(ctx, root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got, want := reopened.Len(), n; got != want {
		t.Fatalf("Len = %d, want %d", got, want)
	}
	if got, want := reopened.Files().NumFiles(), 101; got != want {
		t.Errorf("NumFiles = %d, want %d", got, want)
	}

	sum := 0.0
	for v, err := range reopened.All(ctx) {
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		sum += v.(float64)
	}
	if got, want := sum, 50225253.0; got != want {
		t.Errorf("sum = %v, want %v", got, want)
	}

	v, err := reopened.At(ctx, 18)
	if err != nil {
		t.Fatalf("At(18): %v", err)
	}
	if got, want := v.(float64), 18.0; got != want {
		t.Errorf("At(18) = %v, want %v", got, want)
	}

	v, err = reopened.At(ctx, -3)
	if err != nil {
		t.Fatalf("At(-3): %v", err)
	}
	if got, want := v.(float64), 10020.0; got != want {
		t.Errorf("At(-3) = %v, want %v", got, want)
	}
}

func TestMultiProcessAppendMultisetEquality(t *testing.T) {
	ctx := context.Background()
	root := tempRoot(t)
	if _, err := biglist.New(ctx, root, 4, "json"); err != nil {
		t.Fatalf("New: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := biglist.Open(ctx, root)
			if err != nil {
				t.Errorf("Open (writer %d): %v", i, err)
				return
			}
			for j := 0; j < i; j++ {
				if err := w.Append(ctx, float64(100*i+j)); err != nil {
					t.Errorf("Append (writer %d): %v", i, err)
					return
				}
			}
			if err := w.Flush(ctx, true); err != nil {
				t.Errorf("Flush (writer %d): %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	reader, err := biglist.Open(ctx, root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got, want := reader.Len(), 45; got != want {
		t.Fatalf("Len = %d, want %d", got, want)
	}

	got := map[float64]int{}
	for v, err := range reader.All(ctx) {
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		got[v.(float64)]++
	}
	for i := 1; i < 10; i++ {
		for j := 0; j < i; j++ {
			want := float64(100*i + j)
			if got[want] != 1 {
				t.Errorf("element %v seen %d times, want 1", want, got[want])
			}
		}
	}
}

func TestRoundTripLastElement(t *testing.T) {
	ctx := context.Background()
	root := tempRoot(t)
	bl, err := biglist.New(ctx, root, 1000, "json")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := bl.Append(ctx, "hello"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := bl.Flush(ctx, true); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	reopened, err := biglist.Open(ctx, root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	v, err := reopened.At(ctx, reopened.Len()-1)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if got, want := v.(string), "hello"; got != want {
		t.Errorf("At(len-1) = %v, want %v", got, want)
	}
}

func TestCrashOrphanTolerance(t *testing.T) {
	ctx := context.Background()
	root := tempRoot(t)
	bl, err := biglist.New(ctx, root, 100, "json")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := bl.Append(ctx, float64(i)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	// Simulate a writer crashing between the data-file write and the
	// manifest update: write an orphan file directly under store/ without
	// ever going through Flush/commitPending.
	orphan := root.Joinpath("store").Joinpath("20200101000000.000000_deadbeef-0000-0000-0000-000000000000_3.json")
	if err := orphan.WriteBytes(ctx, []byte(`[100,101,102]`), false); err != nil {
		t.Fatalf("write orphan: %v", err)
	}

	if err := bl.Flush(ctx, true); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	reopened, err := biglist.Open(ctx, root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got, want := reopened.Len(), 5; got != want {
		t.Fatalf("Len = %d, want %d (orphan must not be counted)", got, want)
	}

	exists, err := orphan.Exists(ctx)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Error("orphan file should remain on disk")
	}

	if err := reopened.Append(ctx, 999); err != nil {
		t.Fatalf("Append after orphan: %v", err)
	}
	if err := reopened.Flush(ctx, true); err != nil {
		t.Fatalf("Flush after orphan: %v", err)
	}
	if got, want := reopened.Len(), 6; got != want {
		t.Errorf("Len after further append = %d, want %d", got, want)
	}
}

func TestAtAndAllSurfaceCorruptData(t *testing.T) {
	ctx := context.Background()
	root := tempRoot(t)
	bl, err := biglist.New(ctx, root, 5, "json")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := bl.Append(ctx, float64(i)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := bl.Flush(ctx, true); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// Clobber the one data file on disk with something that won't decode as
	// the recorded count of JSON elements, simulating a truncated or
	// otherwise damaged data file.
	dataFile := bl.Files().Reader(0).Path()
	if err := dataFile.WriteBytes(ctx, []byte(`not json`), true); err != nil {
		t.Fatalf("clobber data file: %v", err)
	}

	reopened, err := biglist.Open(ctx, root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := reopened.At(ctx, 0); !errors.Is(err, biglist.ErrCorruptData) {
		t.Errorf("At(0) err = %v, want errors.Is(err, ErrCorruptData)", err)
	}

	sawErr := false
	for _, err := range reopened.All(ctx) {
		if err != nil {
			sawErr = true
			if !errors.Is(err, biglist.ErrCorruptData) {
				t.Errorf("All() err = %v, want errors.Is(err, ErrCorruptData)", err)
			}
			break
		}
	}
	if !sawErr {
		t.Error("All() never surfaced the corrupt data file")
	}
}
