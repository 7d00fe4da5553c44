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
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
)

// PrefetchDepth is the number of files the streaming iterator decodes
// ahead of the consumer. Kept small and constant per the design: decoding
// overlaps consumption without unbounded memory growth.
const PrefetchDepth = 2

// residentCacheSize bounds how many files' decoded payloads Seq.At keeps
// resident at once under random-access traffic. All() bypasses this: its
// own prefetch window already bounds memory and each file is read once.
const residentCacheSize = 32

// Seq is a lazy, indexable, iterable sequence over an ordered list of file
// Readers, with cumulative counts giving O(log n) index-to-file lookup.
type Seq struct {
	readers    []*Reader
	cumulative []int // cumulative[i] = sum of counts[0..=i]
	resident   *lru.Cache[int, struct{}]
}

// NewSeq builds a Seq from readers whose element counts are already known
// (e.g. read straight from a BigList manifest, so no I/O is needed here).
func NewSeq(readers []*Reader, counts []int) (*Seq, error) {
	if len(readers) != len(counts) {
		return nil, fmt.Errorf("filereader: %d readers but %d counts", len(readers), len(counts))
	}
	cum := make([]int, len(counts))
	running := 0
	for i, c := range counts {
		if c < 0 {
			return nil, fmt.Errorf("filereader: negative count %d at file %d", c, i)
		}
		running += c
		cum[i] = running
	}
	s := &Seq{readers: readers, cumulative: cum}
	s.resident, _ = lru.NewWithEvict[int, struct{}](residentCacheSize, func(fileIdx int, _ struct{}) {
		s.readers[fileIdx].Evict()
	})
	return s, nil
}

// Len is the total element count across every file in this sequence.
func (s *Seq) Len() int {
	if len(s.cumulative) == 0 {
		return 0
	}
	return s.cumulative[len(s.cumulative)-1]
}

// NumFiles is the number of files in this sequence.
func (s *Seq) NumFiles() int { return len(s.readers) }

// Reader returns the i-th file's Reader handle, shippable to another worker.
func (s *Seq) Reader(i int) *Reader { return s.readers[i] }

// Locate resolves a global index to (file index, offset within that file)
// via binary search over the cumulative counts.
func (s *Seq) Locate(i int) (fileIdx, offset int, err error) {
	if i < 0 || i >= s.Len() {
		return 0, 0, fmt.Errorf("index %d out of range [0,%d)", i, s.Len())
	}
	fileIdx = sort.Search(len(s.cumulative), func(k int) bool { return s.cumulative[k] > i })
	prev := 0
	if fileIdx > 0 {
		prev = s.cumulative[fileIdx-1]
	}
	return fileIdx, i - prev, nil
}

// At returns the global i-th element. Repeated random access across many
// files keeps at most residentCacheSize files' decoded payloads in memory,
// evicting the least-recently-used file's payload once that bound is hit.
func (s *Seq) At(ctx context.Context, i int) (any, error) {
	fileIdx, offset, err := s.Locate(i)
	if err != nil {
		return nil, err
	}
	elem, err := s.readers[fileIdx].At(ctx, offset)
	if err != nil {
		return nil, err
	}
	s.resident.Add(fileIdx, struct{}{})
	return elem, nil
}

// futureResult is the outcome of decoding one file in the background.
type futureResult struct {
	elems []any
	err   error
}

// All returns a range-over-func iterator that walks every element of every
// file in order, prefetching up to PrefetchDepth files' decodes ahead of
// the consumer. If the caller stops ranging early (breaks out of the loop),
// in-flight and not-yet-started decodes are abandoned via context
// cancellation rather than left to complete uselessly.
func (s *Seq) All(ctx context.Context) func(yield func(any, error) bool) {
	return func(yield func(any, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		n := len(s.readers)
		futures := make([]chan futureResult, n)
		launch := func(i int) {
			if i < 0 || i >= n || futures[i] != nil {
				return
			}
			ch := make(chan futureResult, 1)
			futures[i] = ch
			go func(i int) {
				elems, err := s.readers[i].Load(ctx)
				select {
				case ch <- futureResult{elems: elems, err: err}:
				case <-ctx.Done():
				}
			}(i)
		}

		for i := 0; i < PrefetchDepth && i < n; i++ {
			launch(i)
		}

		for i := 0; i < n; i++ {
			launch(i + PrefetchDepth)
			select {
			case res := <-futures[i]:
				if res.err != nil {
					yield(nil, res.err)
					return
				}
				for _, e := range res.elems {
					if !yield(e, nil) {
						return
					}
				}
				s.readers[i].Evict()
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}
		}
	}
}
