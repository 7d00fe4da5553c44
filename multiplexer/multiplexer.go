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

// Package multiplexer implements a persistent, FIFO work-distribution
// queue over a pre-enumerated list of items: any number of cooperating
// workers may claim items from a session with at-most-once delivery, the
// union of every worker's claims covering exactly the item range.
package multiplexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/clabernetes/biglist/path"
)

// LockTimeout bounds how long a session's counter claim waits for its lock
// before giving up with path.ErrLockTimeout.
var LockTimeout = 30 * time.Second

// info.json's schema: the full enumerated item list plus its size.
type controlInfo struct {
	NItems    int   `json:"n_items"`
	CreatedAt int64 `json:"created_at"`
	Items     []any `json:"items"`
}

// Multiplexer is the control-plane handle: it owns the enumerated item
// list and hands out fresh read sessions against it.
type Multiplexer struct {
	root path.UPath
	info controlInfo
}

// New persists items and a control directory at p. It is an error for a
// control document to already exist at p.
func New(ctx context.Context, items []any, p path.UPath) (*Multiplexer, error) {
	info := controlInfo{NItems: len(items), CreatedAt: time.Now().Unix(), Items: items}
	raw, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("multiplexer: encode control doc: %w", err)
	}
	if err := p.Joinpath("info.json").WriteBytes(ctx, raw, false); err != nil {
		return nil, fmt.Errorf("multiplexer: write control doc: %w", err)
	}
	return &Multiplexer{root: p, info: info}, nil
}

// Open reopens an existing Multiplexer's control document at p.
func Open(ctx context.Context, p path.UPath) (*Multiplexer, error) {
	raw, err := p.Joinpath("info.json").ReadBytes(ctx)
	if err != nil {
		return nil, err
	}
	var info controlInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("multiplexer: decode control doc: %w", err)
	}
	return &Multiplexer{root: p, info: info}, nil
}

// NItems is the number of items this Multiplexer distributes.
func (m *Multiplexer) NItems() int { return m.info.NItems }

// CreateReadSession creates a fresh session with a zeroed counter and
// returns its id.
func (m *Multiplexer) CreateReadSession(ctx context.Context) (string, error) {
	id := uuid.New().String()
	sessionDir := m.root.Joinpath("sessions", id)
	if err := sessionDir.Joinpath("next_index").WriteBytes(ctx, []byte("0"), false); err != nil {
		return "", fmt.Errorf("multiplexer: create session %s: %w", id, err)
	}
	return id, nil
}

// OpenSession returns a worker-side handle on an existing session.
func (m *Multiplexer) OpenSession(sessionID string) *Session {
	dir := m.root.Joinpath("sessions", sessionID)
	return &Session{
		m:         m,
		id:        sessionID,
		counter:   dir.Joinpath("next_index"),
		finished:  dir.Joinpath("finished"),
	}
}

// Done reports whether sessionID's counter has reached NItems.
func (m *Multiplexer) Done(ctx context.Context, sessionID string) (bool, error) {
	return m.OpenSession(sessionID).Done(ctx)
}

// Destroy wipes the whole control directory, including every session.
func (m *Multiplexer) Destroy(ctx context.Context) error {
	return m.root.RemoveDirRecursive(ctx)
}

// Session is a worker's handle on one cooperative distribution episode.
// Any number of Sessions may be opened against the same session id,
// across any number of processes or hosts; the counter file's lock
// serializes their claims.
type Session struct {
	m        *Multiplexer
	id       string
	counter  path.UPath
	finished path.UPath
}

// ID returns this session's id.
func (s *Session) ID() string { return s.id }

// ErrExhausted is returned by Next once the session's counter has reached
// the item count; it is not a failure, just the termination signal.
var ErrExhausted = errors.New("multiplexer: session exhausted")

// Next atomically claims the next unclaimed index and returns its item.
// Returns ErrExhausted once every index has been claimed by some worker
// (not necessarily this one). Since assignment races across workers, no
// single worker is guaranteed a contiguous range of indices; only the
// union over every worker in the session covers [0, n_items).
func (s *Session) Next(ctx context.Context) (item any, index int, err error) {
	guard, err := s.counter.Lock(ctx, LockTimeout)
	if err != nil {
		return nil, 0, fmt.Errorf("multiplexer: lock session %s: %w", s.id, err)
	}
	defer func() {
		if uerr := guard.Unlock(); uerr != nil && err == nil {
			err = fmt.Errorf("multiplexer: unlock session %s: %w", s.id, uerr)
		}
	}()

	counter, rerr := s.readCounter(ctx)
	if rerr != nil {
		return nil, 0, rerr
	}
	if counter >= s.m.info.NItems {
		return nil, 0, ErrExhausted
	}
	if werr := s.counter.WriteBytes(ctx, []byte(strconv.Itoa(counter+1)), true); werr != nil {
		return nil, 0, fmt.Errorf("multiplexer: advance session %s counter: %w", s.id, werr)
	}
	return s.m.info.Items[counter], counter, nil
}

// All returns a range-over-func iterator that yields (item, index) pairs
// until this session is exhausted.
func (s *Session) All(ctx context.Context) func(yield func(any, int, error) bool) {
	return func(yield func(any, int, error) bool) {
		for {
			item, idx, err := s.Next(ctx)
			if errors.Is(err, ErrExhausted) {
				return
			}
			if !yield(item, idx, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}

// Done reports whether this session's counter has reached n_items.
func (s *Session) Done(ctx context.Context) (bool, error) {
	counter, err := s.readCounter(ctx)
	if err != nil {
		return false, err
	}
	return counter >= s.m.info.NItems, nil
}

// MarkFinished writes the session's "finished" sentinel. Call once every
// worker cooperating on this session has exited; the Multiplexer performs
// no automatic detection of that condition.
func (s *Session) MarkFinished(ctx context.Context) error {
	return s.finished.WriteBytes(ctx, []byte{}, true)
}

// IsFinished reports whether MarkFinished has been called for this session.
func (s *Session) IsFinished(ctx context.Context) (bool, error) {
	return s.finished.Exists(ctx)
}

func (s *Session) readCounter(ctx context.Context) (int, error) {
	raw, err := s.counter.ReadBytes(ctx)
	if err != nil {
		return 0, fmt.Errorf("multiplexer: read session %s counter: %w", s.id, err)
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("multiplexer: corrupt session %s counter: %w", s.id, err)
	}
	return n, nil
}
