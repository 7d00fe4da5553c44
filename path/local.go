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

package path

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"k8s.io/klog/v2"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Local is a UPath backed by the local POSIX filesystem.
//
// Locking is realised via fcntl advisory record locks (syscall.FcntlFlock)
// on a sentinel file kept next to the target path, matching how a single
// POSIX host serialises concurrent writers. A process-local mutex
// additionally serialises concurrent goroutines within this process, since
// fcntl locks are held per process, not per thread.
type Local struct {
	abs string
}

var (
	localLocksMu sync.Mutex
	localLocks   = map[string]*sync.Mutex{}
)

// NewLocal wraps a filesystem path as a UPath. Relative paths are cleaned
// but not made absolute; ".." segments collapse per filepath.Clean.
func NewLocal(p string) *Local {
	return &Local{abs: filepath.Clean(p)}
}

func (l *Local) String() string { return l.abs }

func (l *Local) ReadBytes(_ context.Context) ([]byte, error) {
	b, err := os.ReadFile(l.abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", l.abs, ErrNotFound)
		}
		return nil, err
	}
	return b, nil
}

func (l *Local) WriteBytes(_ context.Context, data []byte, overwrite bool) error {
	if !overwrite {
		return createExclusive(l.abs, data)
	}
	return atomicOverwrite(l.abs, data)
}

func (l *Local) Exists(_ context.Context) (bool, error) {
	if fi, err := os.Stat(l.abs); err == nil {
		if !fi.IsDir() {
			return true, nil
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	// Might be an implicit directory: exists iff it has descendant files.
	found := false
	err := filepath.WalkDir(l.abs, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if !d.IsDir() {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	return found, nil
}

func (l *Local) IsFile(_ context.Context) (bool, error) {
	fi, err := os.Stat(l.abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !fi.IsDir(), nil
}

func (l *Local) IsDir(ctx context.Context) (bool, error) {
	fi, err := os.Stat(l.abs)
	if err == nil && !fi.IsDir() {
		return false, nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	return l.Exists(ctx)
}

func (l *Local) Iterdir(ctx context.Context) ([]DirEntry, error) {
	ents, err := os.ReadDir(l.abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]DirEntry, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			ok, err := l.Joinpath(e.Name()).Exists(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, DirEntry{Name: e.Name(), IsDir: e.IsDir()})
	}
	return out, nil
}

func (l *Local) Riterdir(_ context.Context) ([]string, error) {
	var out []string
	err := filepath.WalkDir(l.abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.abs, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Local) RemoveFile(_ context.Context) error {
	if err := os.Remove(l.abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Local) RemoveDirRecursive(_ context.Context) error {
	return os.RemoveAll(l.abs)
}

func (l *Local) Joinpath(segments ...string) UPath {
	parts := append([]string{l.abs}, segments...)
	return &Local{abs: filepath.Clean(filepath.Join(parts...))}
}

func (l *Local) Parent() UPath {
	return &Local{abs: filepath.Dir(l.abs)}
}

// Lock acquires an exclusive fcntl write lock on a ".lock" sentinel next to
// l.abs.
//
// Note that this is advisory, and (per the fcntl API's inherent brittleness)
// any Close of this file descriptor, or removal/overwrite of the sentinel
// by another process, breaks the lock.
//
// With timeout == 0 both the in-process and the cross-process attempt fail
// at once if the lock is held. Otherwise timeout and ctx bound only the
// wait for other goroutines of this process; the wait for a lock held by
// another process (F_SETLKW) is not bounded by timeout or ctx and lasts
// until that process releases it.
func (l *Local) Lock(ctx context.Context, timeout time.Duration) (Guard, error) {
	sentinel := l.abs + ".lock"
	if err := os.MkdirAll(filepath.Dir(sentinel), dirPerm); err != nil {
		return nil, fmt.Errorf("mkdir for lock sentinel %q: %w", sentinel, err)
	}

	localLocksMu.Lock()
	pm, ok := localLocks[sentinel]
	if !ok {
		pm = &sync.Mutex{}
		localLocks[sentinel] = pm
	}
	localLocksMu.Unlock()

	if timeout == 0 {
		if !pm.TryLock() {
			return nil, fmt.Errorf("lock %q: %w", sentinel, ErrLockTimeout)
		}
	} else {
		acquired := make(chan struct{})
		go func() { pm.Lock(); close(acquired) }()
		select {
		case <-acquired:
		case <-time.After(deadlineOrForever(timeout)):
			go func() { <-acquired; pm.Unlock() }()
			return nil, fmt.Errorf("lock %q: %w", sentinel, ErrLockTimeout)
		case <-ctx.Done():
			go func() { <-acquired; pm.Unlock() }()
			return nil, ctx.Err()
		}
	}

	f, err := os.OpenFile(sentinel, syscall.O_CREAT|syscall.O_RDWR|syscall.O_CLOEXEC, filePerm)
	if err != nil {
		pm.Unlock()
		return nil, err
	}

	flockT := syscall.Flock_t{Type: syscall.F_WRLCK, Whence: io.SeekStart, Start: 0, Len: 0}
	if timeout == 0 {
		if err := syscall.FcntlFlock(f.Fd(), syscall.F_SETLK, &flockT); err != nil {
			_ = f.Close()
			pm.Unlock()
			return nil, fmt.Errorf("lock %q: %w: %v", sentinel, ErrLockTimeout, err)
		}
	} else {
		for {
			err := syscall.FcntlFlock(f.Fd(), syscall.F_SETLKW, &flockT)
			if err == syscall.EINTR {
				continue
			}
			if err != nil {
				_ = f.Close()
				pm.Unlock()
				return nil, fmt.Errorf("lock %q: %w", sentinel, err)
			}
			break
		}
	}

	return &localGuard{f: f, pm: pm, sentinel: sentinel}, nil
}

func deadlineOrForever(timeout time.Duration) time.Duration {
	if timeout < 0 {
		return time.Duration(1<<63 - 1)
	}
	return timeout
}

type localGuard struct {
	f        *os.File
	pm       *sync.Mutex
	sentinel string
}

func (g *localGuard) Unlock() error {
	flockT := syscall.Flock_t{Type: syscall.F_UNLCK, Whence: io.SeekStart, Start: 0, Len: 0}
	err := syscall.FcntlFlock(g.f.Fd(), syscall.F_SETLK, &flockT)
	if cerr := g.f.Close(); err == nil {
		err = cerr
	}
	g.pm.Unlock()
	return err
}

// createExclusive atomically creates a file at p containing d, failing if a
// file already exists there. Grounded on the teacher's createEx: write to a
// uniquely-named temp sibling, then hard-link it into place so a concurrent
// creator loses the race cleanly instead of truncating the winner's file.
func createExclusive(p string, d []byte) error {
	dir, f := filepath.Split(p)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("mkdir %q: %w", dir, err)
	}
	tmpF, err := os.CreateTemp(dir, f+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmpF.Name()
	defer func() {
		if tmpF != nil {
			if err := tmpF.Close(); err != nil {
				klog.Warningf("failed to close temp file %q: %v", tmpName, err)
			}
		}
		if err := os.Remove(tmpName); err != nil && !errors.Is(err, fs.ErrNotExist) {
			klog.Warningf("failed to remove temp file %q: %v", tmpName, err)
		}
	}()
	if err := tmpF.Chmod(filePerm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if n, err := tmpF.Write(d); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	} else if n != len(d) {
		return fmt.Errorf("short write (%d < %d bytes) to temp file", n, len(d))
	}
	if err := tmpF.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	tmpF = nil

	if err := os.Link(tmpName, p); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", p, ErrAlreadyExists)
		}
		return fmt.Errorf("link temp file to %q: %w", p, err)
	}
	return nil
}

// atomicOverwrite atomically replaces (or creates) the file at p with d.
func atomicOverwrite(p string, d []byte) error {
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("mkdir %q: %w", dir, err)
	}
	tmpN := p + ".tmp-" + fmt.Sprintf("%d", time.Now().UnixNano())
	if err := os.WriteFile(tmpN, d, filePerm); err != nil {
		return fmt.Errorf("write temp file %q: %w", tmpN, err)
	}
	if err := os.Rename(tmpN, p); err != nil {
		_ = os.Remove(tmpN)
		return fmt.Errorf("rename temp file into %q: %w", p, err)
	}
	return nil
}
