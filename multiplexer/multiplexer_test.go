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

package multiplexer_test

import (
	"context"
	"sync"
	"testing"

	"github.com/clabernetes/biglist/multiplexer"
	"github.com/clabernetes/biglist/path"
)

func TestDistributionExactness(t *testing.T) {
	ctx := context.Background()
	p, err := path.Parse(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	items := make([]any, 20)
	for i := range items {
		items[i] = float64(i)
	}
	m, err := multiplexer.New(ctx, items, p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sessionID, err := m.CreateReadSession(ctx)
	if err != nil {
		t.Fatalf("CreateReadSession: %v", err)
	}

	var mu sync.Mutex
	seen := map[float64]int{}
	var wg sync.WaitGroup
	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := m.OpenSession(sessionID)
			for v, _, err := range s.All(ctx) {
				if err != nil {
					t.Errorf("Next: %v", err)
					return
				}
				mu.Lock()
				seen[v.(float64)]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 20 {
		t.Fatalf("saw %d distinct values, want 20", len(seen))
	}
	for i := 0; i < 20; i++ {
		if got := seen[float64(i)]; got != 1 {
			t.Errorf("value %d consumed %d times, want exactly once", i, got)
		}
	}

	done, err := m.Done(ctx, sessionID)
	if err != nil {
		t.Fatalf("Done: %v", err)
	}
	if !done {
		t.Error("Done = false, want true after full consumption")
	}
}

func TestSessionFinishedSentinel(t *testing.T) {
	ctx := context.Background()
	p, err := path.Parse(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m, err := multiplexer.New(ctx, []any{"a", "b"}, p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, err := m.CreateReadSession(ctx)
	if err != nil {
		t.Fatalf("CreateReadSession: %v", err)
	}
	s := m.OpenSession(id)

	finished, err := s.IsFinished(ctx)
	if err != nil {
		t.Fatalf("IsFinished: %v", err)
	}
	if finished {
		t.Fatal("IsFinished = true before MarkFinished")
	}
	if err := s.MarkFinished(ctx); err != nil {
		t.Fatalf("MarkFinished: %v", err)
	}
	finished, err = s.IsFinished(ctx)
	if err != nil {
		t.Fatalf("IsFinished: %v", err)
	}
	if !finished {
		t.Error("IsFinished = false after MarkFinished")
	}
}

func TestDestroy(t *testing.T) {
	ctx := context.Background()
	p, err := path.Parse(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m, err := multiplexer.New(ctx, []any{"a"}, p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.CreateReadSession(ctx); err != nil {
		t.Fatalf("CreateReadSession: %v", err)
	}
	if err := m.Destroy(ctx); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	exists, err := p.Joinpath("info.json").Exists(ctx)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("info.json should be gone after Destroy")
	}
}
