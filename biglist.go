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

// Package biglist implements a chunked, append-only, distributed list
// store. Elements are serialized into many immutable data files under a
// single directory that may live on a local filesystem or on a blob store;
// many independent writers may append concurrently, and readers get
// indexed access and streaming iteration over the logical concatenation of
// every file.
package biglist

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/globocom/go-buffer"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/clabernetes/biglist/codec"
	"github.com/clabernetes/biglist/filereader"
	"github.com/clabernetes/biglist/path"
)

// DefaultStorageFormat is used by New when the caller doesn't name one.
const DefaultStorageFormat = "pickle-zstd"

// LockTimeout bounds how long a manifest read-modify-write waits for
// info.json's lock before giving up with ErrLockTimeout.
var LockTimeout = 30 * time.Second

// pendingFile is one flushed-but-not-yet-committed data file: written to
// storage, but not yet folded into the manifest. Mirrors the source's
// append_files_buffer.
type pendingFile struct {
	relativePath string
	count        int
}

// BigList is a handle on one store. Many handles, in many processes or on
// many hosts, may point at the same root concurrently.
type BigList struct {
	root  path.UPath
	store path.UPath
	info  path.UPath
	codec codec.Codec

	tmp       bool // auto-destroy on Close when true
	destroyed bool

	// Write side. bufMu guards everything below it; the go-buffer Buffer
	// calls flusherFn synchronously from within Push/Flush, on the same
	// goroutine that is already holding bufMu, so flusherFn may touch
	// pending/flushErr/flushCtx directly without re-locking.
	bufMu     sync.Mutex
	buf       *buffer.Buffer
	pending   []pendingFile
	flushErr  error
	flushCtx  context.Context

	// Read side. readMu guards manifest and seq, refreshed by Reload and
	// by every successful manifest commit.
	readMu   sync.RWMutex
	manifest *manifest
	seq      *filereader.Seq
}

// New creates a fresh BigList at root with the given batch size and
// storage format, writing an initial empty manifest. It is an error for a
// manifest to already exist at root.
func New(ctx context.Context, root path.UPath, batchSize int, storageFormat string) (*BigList, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("biglist: batch_size must be positive, got %d", batchSize)
	}
	if storageFormat == "" {
		storageFormat = DefaultStorageFormat
	}
	c, err := codec.Get(storageFormat)
	if err != nil {
		return nil, err
	}

	info := root.Joinpath("info.json")
	m := &manifest{StorageFormat: storageFormat, StorageVersion: storageVersion, BatchSize: batchSize}
	if err := writeInitialManifest(ctx, info, m); err != nil {
		return nil, err
	}

	bl := newHandle(root, info, c, batchSize)
	bl.manifest = m
	bl.seq, err = bl.buildSeq(m)
	if err != nil {
		return nil, err
	}
	return bl, nil
}

// NewTemp creates a BigList under a fresh, process-unique temporary root;
// Close destroys it automatically.
func NewTemp(ctx context.Context, batchSize int, storageFormat string) (*BigList, error) {
	dir, err := os.MkdirTemp("", "biglist-")
	if err != nil {
		return nil, fmt.Errorf("biglist: create temp root: %w", err)
	}
	root, err := path.Parse(ctx, dir)
	if err != nil {
		return nil, err
	}
	bl, err := New(ctx, root, batchSize, storageFormat)
	if err != nil {
		return nil, err
	}
	bl.tmp = true
	return bl, nil
}

// Open reopens an existing BigList at root, reading its current manifest.
func Open(ctx context.Context, root path.UPath) (*BigList, error) {
	info := root.Joinpath("info.json")
	m, err := readManifest(ctx, info)
	if err != nil {
		return nil, err
	}
	c, err := codec.Get(m.StorageFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptManifest, err)
	}
	bl := newHandle(root, info, c, m.BatchSize)
	bl.manifest = m
	bl.seq, err = bl.buildSeq(m)
	if err != nil {
		return nil, err
	}
	return bl, nil
}

func newHandle(root, info path.UPath, c codec.Codec, batchSize int) *BigList {
	bl := &BigList{
		root:  root,
		store: root.Joinpath("store"),
		info:  info,
		codec: c,
	}
	flusherFn := func(items []interface{}) {
		elems := make([]any, len(items))
		copy(elems, items)
		ctx := bl.flushCtx
		if ctx == nil {
			ctx = context.Background()
		}
		bl.flushErr = bl.publish(ctx, elems)
	}
	bl.buf = buffer.New(
		buffer.WithSize(uint(batchSize)),
		buffer.WithFlusher(buffer.FlusherFunc(flusherFn)),
	)
	return bl
}

// Append pushes x onto the in-memory buffer. When the buffer reaches the
// configured batch size, it is flushed implicitly: a new data file is
// written and the manifest is updated before Append returns.
func (bl *BigList) Append(ctx context.Context, x any) error {
	bl.bufMu.Lock()
	defer bl.bufMu.Unlock()
	if bl.destroyed {
		return fmt.Errorf("biglist: append to destroyed store")
	}
	bl.flushCtx = ctx
	bl.flushErr = nil
	if err := bl.buf.Push(x); err != nil {
		return fmt.Errorf("biglist: push to buffer: %w", err)
	}
	return bl.flushErr
}

// Flush forces any buffered elements to be written as a (possibly
// smaller-than-batch_size) trailing data file, then commits the manifest
// update; also retries any data file that was written but never
// successfully folded into the manifest by an earlier flush. eager exists
// for API parity with the source this was ported from; this implementation
// has no age-based auto-flush, so both values behave the same.
func (bl *BigList) Flush(ctx context.Context, eager bool) error {
	bl.bufMu.Lock()
	defer bl.bufMu.Unlock()

	bl.flushCtx = ctx
	bl.flushErr = nil
	if err := bl.buf.Flush(); err != nil {
		return fmt.Errorf("biglist: flush buffer: %w", err)
	}
	if err := bl.flushErr; err != nil {
		return err
	}
	if len(bl.pending) > 0 {
		return bl.commitPending(ctx)
	}
	return nil
}

// publish writes one data file for elems and folds it, plus any
// still-outstanding pending files from an earlier failed commit, into the
// manifest. Called with bufMu already held (synchronously, from within the
// go-buffer Flusher callback).
func (bl *BigList) publish(ctx context.Context, elems []any) error {
	if len(elems) == 0 {
		if len(bl.pending) > 0 {
			return bl.commitPending(ctx)
		}
		return nil
	}
	data, err := bl.codec.SerializeBatch(elems)
	if err != nil {
		return fmt.Errorf("biglist: serialize batch: %w", err)
	}
	name := dataFileName(len(elems), bl.codec.Ext())
	dst := bl.store.Joinpath(name)
	if err := dst.WriteBytes(ctx, data, false); err != nil {
		return fmt.Errorf("biglist: write data file: %w", err)
	}
	bl.pending = append(bl.pending, pendingFile{relativePath: "store/" + name, count: len(elems)})

	return bl.commitPending(ctx)
}

// commitPending takes info.json's lock, read-modify-writes the manifest to
// include every pending file, and clears bl.pending only once that write
// succeeds — an unsuccessful commit leaves the already-written data
// file(s) as orphans-in-waiting, retried by the next Flush or
// threshold-triggered publish.
func (bl *BigList) commitPending(ctx context.Context) error {
	guard, err := bl.info.Lock(ctx, LockTimeout)
	if err != nil {
		return fmt.Errorf("biglist: lock manifest: %w", err)
	}
	defer func() {
		if uerr := guard.Unlock(); uerr != nil {
			klog.Errorf("biglist: unlock manifest: %v", uerr)
		}
	}()

	m, err := readManifest(ctx, bl.info)
	if err != nil {
		return err
	}
	running := m.total()
	for _, p := range bl.pending {
		running += p.count
		m.DataFilesInfo = append(m.DataFilesInfo, dataFileInfo{
			RelativePath:    p.relativePath,
			Count:           p.count,
			CumulativeCount: running,
		})
	}
	if err := writeManifest(ctx, bl.info, m); err != nil {
		return fmt.Errorf("biglist: write manifest: %w", err)
	}
	bl.pending = nil

	seq, err := bl.buildSeq(m)
	if err != nil {
		return err
	}
	bl.readMu.Lock()
	bl.manifest = m
	bl.seq = seq
	bl.readMu.Unlock()
	return nil
}

// dataFileName generates a filename matching
// <UTC-timestamp-micros>_<uuid4>_<count>.<ext>.
func dataFileName(count int, ext string) string {
	ts := time.Now().UTC().Format("20060102150405.000000")
	return fmt.Sprintf("%s_%s_%d.%s", ts, uuid.New().String(), count, ext)
}

func (bl *BigList) buildSeq(m *manifest) (*filereader.Seq, error) {
	readers := make([]*filereader.Reader, len(m.DataFilesInfo))
	counts := make([]int, len(m.DataFilesInfo))
	for i, d := range m.DataFilesInfo {
		readers[i] = filereader.New(bl.root.Joinpath(d.RelativePath), bl.codec, d.Count)
		counts[i] = d.Count
	}
	return filereader.NewSeq(readers, counts)
}

// Reload re-reads the manifest to pick up files flushed by other writers
// since this handle last loaded it.
func (bl *BigList) Reload(ctx context.Context) error {
	m, err := readManifest(ctx, bl.info)
	if err != nil {
		return err
	}
	seq, err := bl.buildSeq(m)
	if err != nil {
		return err
	}
	bl.readMu.Lock()
	defer bl.readMu.Unlock()
	bl.manifest = m
	bl.seq = seq
	return nil
}

// Len returns the cumulative element count recorded in the manifest as of
// the last Reload, New, Open, or successful Flush.
func (bl *BigList) Len() int {
	bl.readMu.RLock()
	defer bl.readMu.RUnlock()
	return bl.manifest.total()
}

// At returns the i-th element across the whole store. Negative i counts
// from the end.
func (bl *BigList) At(ctx context.Context, i int) (any, error) {
	bl.readMu.RLock()
	seq := bl.seq
	bl.readMu.RUnlock()
	if i < 0 {
		i += seq.Len()
	}
	return seq.At(ctx, i)
}

// All returns a range-over-func iterator over every element currently
// recorded in the manifest, in insertion order within each writer's
// stream, with cross-file prefetch.
func (bl *BigList) All(ctx context.Context) func(yield func(any, error) bool) {
	bl.readMu.RLock()
	seq := bl.seq
	bl.readMu.RUnlock()
	return seq.All(ctx)
}

// Files returns the underlying file sequence directly; its handles are
// shippable to worker processes.
func (bl *BigList) Files() *filereader.Seq {
	bl.readMu.RLock()
	defer bl.readMu.RUnlock()
	return bl.seq
}

// Root returns this store's root path.
func (bl *BigList) Root() path.UPath { return bl.root }

// Close flushes any buffered elements and, for temporary stores created by
// NewTemp, destroys the whole root. Safe to call once.
func (bl *BigList) Close(ctx context.Context) error {
	if err := bl.Flush(ctx, true); err != nil {
		return err
	}
	if bl.tmp {
		return bl.Destroy(ctx)
	}
	return nil
}

// Destroy recursively removes the store root. The caller is responsible
// for quiescing other handles on this store first; Destroy performs no
// cross-handle coordination.
func (bl *BigList) Destroy(ctx context.Context) error {
	bl.bufMu.Lock()
	bl.destroyed = true
	bl.bufMu.Unlock()
	return bl.root.RemoveDirRecursive(ctx)
}
