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
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/clabernetes/biglist/path"
)

// OrphanReport describes the outcome of a GC scan: files present under
// store/ but absent from the manifest. GC never deletes; it only reports,
// since orphans are tolerated by design and reconciliation is the
// operator's call.
type OrphanReport struct {
	Orphans []string
	Scanned int
}

// GC lists every file under root's store/ directory and diffs it against
// the manifest's relative_path set, reporting (never deleting) orphans —
// data files written by a writer that crashed before its manifest commit.
// The store is listed once; the per-file manifest membership checks run
// across a pool of at most 8 goroutines. No data file is read or stat'ed.
func GC(ctx context.Context, root path.UPath) (*OrphanReport, error) {
	info := root.Joinpath("info.json")
	m, err := readManifest(ctx, info)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(m.DataFilesInfo))
	for _, d := range m.DataFilesInfo {
		known[d.RelativePath] = struct{}{}
	}

	store := root.Joinpath("store")
	rel, err := store.Riterdir(ctx)
	if err != nil {
		return nil, fmt.Errorf("biglist: gc scan: %w", err)
	}

	report := &OrphanReport{Scanned: len(rel)}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	results := make(chan string, len(rel))
	for _, r := range rel {
		r := r
		g.Go(func() error {
			full := "store/" + r
			if _, ok := known[full]; !ok {
				results <- full
			}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()
	for orphan := range results {
		report.Orphans = append(report.Orphans, orphan)
	}
	return report, nil
}
