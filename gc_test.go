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
)

func TestGCReportsOrphansWithoutDeleting(t *testing.T) {
	ctx := context.Background()
	root := tempRoot(t)
	bl, err := biglist.New(ctx, root, 100, "json")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := bl.Append(ctx, "a"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := bl.Flush(ctx, true); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	orphan := root.Joinpath("store").Joinpath("20200101000000.000000_deadbeef-0000-0000-0000-000000000001_1.json")
	if err := orphan.WriteBytes(ctx, []byte(`["orphaned"]`), false); err != nil {
		t.Fatalf("write orphan: %v", err)
	}

	report, err := biglist.GC(ctx, root)
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if got, want := report.Scanned, 2; got != want {
		t.Errorf("Scanned = %d, want %d", got, want)
	}
	if len(report.Orphans) != 1 {
		t.Fatalf("got %d orphans, want 1: %v", len(report.Orphans), report.Orphans)
	}

	exists, err := orphan.Exists(ctx)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Error("GC must not delete orphans")
	}
}

func TestFsckCleanStore(t *testing.T) {
	ctx := context.Background()
	root := tempRoot(t)
	bl, err := biglist.New(ctx, root, 10, "json")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 25; i++ {
		if err := bl.Append(ctx, float64(i)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := bl.Flush(ctx, true); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	report, err := biglist.Fsck(ctx, root)
	if err != nil {
		t.Fatalf("Fsck: %v", err)
	}
	if !report.OK() {
		t.Errorf("Fsck found violations on a clean store: %v", report.Violations)
	}
}

func TestFsckDetectsMissingDataFile(t *testing.T) {
	ctx := context.Background()
	root := tempRoot(t)
	bl, err := biglist.New(ctx, root, 10, "json")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := bl.Append(ctx, "x"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := bl.Flush(ctx, true); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	f := bl.Files().Reader(0)
	if err := f.Path().RemoveFile(ctx); err != nil {
		t.Fatalf("RemoveFile: %v", err)
	}

	report, err := biglist.Fsck(ctx, root)
	if err != nil {
		t.Fatalf("Fsck: %v", err)
	}
	if report.OK() {
		t.Error("Fsck should have detected the missing data file")
	}
}
