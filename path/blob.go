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
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// withBackendRetry retries a transient blob-backend call up to 3 attempts
// with jittered exponential backoff. ErrNotFound and ErrAlreadyExists are
// permanent outcomes, never retried; anything else that survives every
// attempt comes back wrapped in ErrBackendUnavailable.
func withBackendRetry(ctx context.Context, op func() error) error {
	err := retry.Do(
		op,
		retry.Context(ctx),
		retry.Attempts(3),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(100*time.Millisecond),
		retry.RetryIf(isTransientBackendErr),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return nil
	}
	if isTransientBackendErr(err) {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return err
}

func isTransientBackendErr(err error) bool {
	return !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrAlreadyExists)
}

// LeaseDuration is how long a blob lock's heartbeat may go unrefreshed
// before a challenger is permitted to steal it. Exposed so callers running
// long critical sections can tune it.
var LeaseDuration = 30 * time.Second

// leaseHeartbeat is how often a holder refreshes its lease, derived from the
// current LeaseDuration.
func leaseHeartbeat() time.Duration { return LeaseDuration / 3 }

// objStore describes the minimal backend operations a Blob needs. GCS and
// S3 each provide one of these; Blob itself contains all the UPath logic
// that doesn't vary between blob providers.
type objStore interface {
	// get returns the object's bytes, or an error wrapping ErrNotFound.
	get(ctx context.Context, key string) ([]byte, error)
	// put writes the object unconditionally.
	put(ctx context.Context, key string, data []byte) error
	// putIfAbsent writes the object only if it doesn't already exist,
	// returning an error wrapping ErrAlreadyExists otherwise.
	putIfAbsent(ctx context.Context, key string, data []byte) error
	// delete removes the object. Not an error if it doesn't exist.
	delete(ctx context.Context, key string) error
	// list returns every object key with the given prefix.
	list(ctx context.Context, prefix string) ([]string, error)
	// scheme is the URI scheme this store answers to, e.g. "gs" or "s3".
	scheme() string
	// bucket is the bucket/container name.
	bucket() string
}

// Blob is a UPath backed by a blob storage service.
type Blob struct {
	store objStore
	key   string // object key with no leading slash; "" means bucket root.
}

func (b *Blob) String() string {
	return fmt.Sprintf("%s://%s/%s", b.store.scheme(), b.store.bucket(), b.key)
}

func (b *Blob) ReadBytes(ctx context.Context) ([]byte, error) {
	return b.store.get(ctx, b.key)
}

func (b *Blob) WriteBytes(ctx context.Context, data []byte, overwrite bool) error {
	if overwrite {
		return b.store.put(ctx, b.key, data)
	}
	return b.store.putIfAbsent(ctx, b.key, data)
}

func (b *Blob) Exists(ctx context.Context) (bool, error) {
	if ok, err := b.IsFile(ctx); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	keys, err := b.store.list(ctx, prefixOf(b.key))
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

func (b *Blob) IsFile(ctx context.Context) (bool, error) {
	_, err := b.store.get(ctx, b.key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (b *Blob) IsDir(ctx context.Context) (bool, error) {
	keys, err := b.store.list(ctx, prefixOf(b.key))
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

func (b *Blob) Iterdir(ctx context.Context) ([]DirEntry, error) {
	prefix := prefixOf(b.key)
	keys, err := b.store.list(ctx, prefix)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []DirEntry
	for _, k := range keys {
		rest := strings.TrimPrefix(k, prefix)
		parts := strings.SplitN(rest, "/", 2)
		name := parts[0]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, DirEntry{Name: name, IsDir: len(parts) > 1})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (b *Blob) Riterdir(ctx context.Context) ([]string, error) {
	prefix := prefixOf(b.key)
	keys, err := b.store.list(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, prefix))
	}
	sort.Strings(out)
	return out, nil
}

func (b *Blob) RemoveFile(ctx context.Context) error {
	return b.store.delete(ctx, b.key)
}

func (b *Blob) RemoveDirRecursive(ctx context.Context) error {
	prefix := prefixOf(b.key)
	keys, err := b.store.list(ctx, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := b.store.delete(ctx, k); err != nil {
			return err
		}
	}
	return b.store.delete(ctx, b.key)
}

func (b *Blob) Joinpath(segments ...string) UPath {
	parts := append([]string{b.key}, segments...)
	return &Blob{store: b.store, key: strings.Trim(strings.Join(parts, "/"), "/")}
}

func (b *Blob) Parent() UPath {
	idx := strings.LastIndex(b.key, "/")
	if idx < 0 {
		return &Blob{store: b.store, key: ""}
	}
	return &Blob{store: b.store, key: b.key[:idx]}
}

func prefixOf(key string) string {
	if key == "" {
		return ""
	}
	return key + "/"
}

// lease is the body of a lock's rendezvous object.
type lease struct {
	Holder    string    `json:"holder"`
	RenewedAt time.Time `json:"renewed_at"`
}

// Lock realises the cross-host lock contract over blob storage as described
// in the design notes: a rendezvous object is written with create-if-absent
// semantics; the holder refreshes a heartbeat in its body; a challenger may
// overwrite the lease once its heartbeat is older than LeaseDuration.
func (b *Blob) Lock(ctx context.Context, timeout time.Duration) (Guard, error) {
	leaseKey := b.key + ".lock"
	holder := uuid.NewString()

	deadline := time.Now().Add(deadlineOrForever(timeout))
	for {
		if err := b.tryAcquire(ctx, leaseKey, holder); err == nil {
			break
		} else if !errors.Is(err, ErrAlreadyExists) {
			return nil, err
		}
		if timeout == 0 {
			return nil, fmt.Errorf("lock %q: %w", b, ErrLockTimeout)
		}
		if timeout > 0 && time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %q: %w", b, ErrLockTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	lockCtx, cancel := context.WithCancel(context.Background())
	g := &blobGuard{b: b, leaseKey: leaseKey, holder: holder, cancel: cancel}
	go g.heartbeatLoop(lockCtx)
	return g, nil
}

// tryAcquire attempts to claim the lease, stealing it from a stale holder if
// necessary.
func (b *Blob) tryAcquire(ctx context.Context, leaseKey, holder string) error {
	raw, err := json.Marshal(lease{Holder: holder, RenewedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	err = b.store.putIfAbsent(ctx, leaseKey, raw)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrAlreadyExists) {
		return err
	}
	// Check whether the existing lease is stale enough to steal.
	cur, gerr := b.store.get(ctx, leaseKey)
	if gerr != nil {
		if errors.Is(gerr, ErrNotFound) {
			// Raced with the holder releasing; retry the caller's loop.
			return ErrAlreadyExists
		}
		return gerr
	}
	var l lease
	if jerr := json.Unmarshal(cur, &l); jerr != nil {
		return fmt.Errorf("parse lease %q: %w", leaseKey, jerr)
	}
	if time.Since(l.RenewedAt) < LeaseDuration {
		return ErrAlreadyExists
	}
	klog.Warningf("stealing stale lease %q (held by %q, unrefreshed since %v)", leaseKey, l.Holder, l.RenewedAt)
	if perr := b.store.put(ctx, leaseKey, raw); perr != nil {
		return perr
	}
	return nil
}

type blobGuard struct {
	b        *Blob
	leaseKey string
	holder   string
	cancel   context.CancelFunc
	lost     bool
}

func (g *blobGuard) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(leaseHeartbeat())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			raw, err := json.Marshal(lease{Holder: g.holder, RenewedAt: time.Now().UTC()})
			if err != nil {
				klog.Errorf("marshal lease heartbeat for %q: %v", g.leaseKey, err)
				continue
			}
			cur, err := g.b.store.get(ctx, g.leaseKey)
			if err != nil {
				klog.Errorf("heartbeat lost lease %q: %v", g.leaseKey, err)
				g.lost = true
				return
			}
			var l lease
			if err := json.Unmarshal(cur, &l); err == nil && l.Holder != g.holder {
				klog.Errorf("heartbeat lost lease %q: stolen by %q", g.leaseKey, l.Holder)
				g.lost = true
				return
			}
			if err := g.b.store.put(ctx, g.leaseKey, raw); err != nil {
				klog.Warningf("failed to refresh lease %q: %v", g.leaseKey, err)
			}
		}
	}
}

func (g *blobGuard) Unlock() error {
	g.cancel()
	if g.lost {
		return fmt.Errorf("unlock %q: %w", g.leaseKey, ErrLockLost)
	}
	return g.b.store.delete(context.Background(), g.leaseKey)
}
