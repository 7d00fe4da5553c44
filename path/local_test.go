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

package path_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/clabernetes/biglist/path"
)

func TestLocalWriteBytesAtomicity(t *testing.T) {
	dir := t.TempDir()
	p := path.NewLocal(filepath.Join(dir, "info.json"))
	ctx := context.Background()

	if err := p.WriteBytes(ctx, []byte("v1"), true); err != nil {
		t.Fatalf("WriteBytes v1: %v", err)
	}
	if err := p.WriteBytes(ctx, []byte("v1"), false); !errors.Is(err, path.ErrAlreadyExists) {
		t.Fatalf("WriteBytes overwrite=false on existing file: got %v, want ErrAlreadyExists", err)
	}
	if err := p.WriteBytes(ctx, []byte("v2"), true); err != nil {
		t.Fatalf("WriteBytes v2: %v", err)
	}
	got, err := p.ReadBytes(ctx)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("ReadBytes = %q, want %q", got, "v2")
	}
}

func TestLocalReadBytesNotFound(t *testing.T) {
	dir := t.TempDir()
	p := path.NewLocal(filepath.Join(dir, "missing"))
	if _, err := p.ReadBytes(context.Background()); !errors.Is(err, path.ErrNotFound) {
		t.Fatalf("ReadBytes on missing file: got %v, want ErrNotFound", err)
	}
}

func TestLocalIterdirAndRiterdir(t *testing.T) {
	dir := t.TempDir()
	root := path.NewLocal(dir)
	ctx := context.Background()

	for _, f := range []string{"a.txt", "store/b.txt", "store/sub/c.txt"} {
		if err := root.Joinpath(f).WriteBytes(ctx, []byte("x"), true); err != nil {
			t.Fatalf("WriteBytes(%s): %v", f, err)
		}
	}

	ents, err := root.Iterdir(ctx)
	if err != nil {
		t.Fatalf("Iterdir: %v", err)
	}
	if len(ents) != 2 {
		t.Fatalf("Iterdir returned %d entries, want 2 (a.txt, store/)", len(ents))
	}

	all, err := root.Riterdir(ctx)
	if err != nil {
		t.Fatalf("Riterdir: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Riterdir returned %d files, want 3, got %v", len(all), all)
	}
}

func TestLocalLockExclusion(t *testing.T) {
	dir := t.TempDir()
	p := path.NewLocal(filepath.Join(dir, "info.json"))
	ctx := context.Background()

	g, err := p.Lock(ctx, time.Second)
	if err != nil {
		t.Fatalf("first Lock: %v", err)
	}

	if _, err := p.Lock(ctx, 0); !errors.Is(err, path.ErrLockTimeout) {
		t.Fatalf("second Lock with timeout=0 while held: got %v, want ErrLockTimeout", err)
	}

	unlocked := make(chan struct{})
	go func() {
		g2, err := p.Lock(ctx, 5*time.Second)
		if err != nil {
			t.Errorf("blocked Lock: %v", err)
			return
		}
		close(unlocked)
		_ = g2.Unlock()
	}()

	time.Sleep(50 * time.Millisecond)
	if err := g.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	select {
	case <-unlocked:
	case <-time.After(2 * time.Second):
		t.Fatal("blocked Lock never acquired after release")
	}
}

func TestLocalRemoveDirRecursive(t *testing.T) {
	dir := t.TempDir()
	root := path.NewLocal(dir)
	ctx := context.Background()
	store := root.Joinpath("store")
	if err := store.Joinpath("a").WriteBytes(ctx, []byte("x"), true); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if err := store.RemoveDirRecursive(ctx); err != nil {
		t.Fatalf("RemoveDirRecursive: %v", err)
	}
	if ok, err := store.Exists(ctx); err != nil || ok {
		t.Fatalf("store.Exists after RemoveDirRecursive = %v, %v, want false, nil", ok, err)
	}
}
