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

package main

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// throttle hands out tokens at an adjustable rate, supplied once per second
// onto a buffered channel; workers block on the channel before each op.
type throttle struct {
	tokenChan chan bool

	mu           sync.Mutex
	opsPerSecond int
	oversupply   int
}

func newThrottle(opsPerSecond int) *throttle {
	return &throttle{opsPerSecond: opsPerSecond, tokenChan: make(chan bool, opsPerSecond+1)}
}

func (t *throttle) increase() {
	t.mu.Lock()
	defer t.mu.Unlock()
	delta := max(1, int(float64(t.opsPerSecond)*0.1))
	t.opsPerSecond += delta
}

func (t *throttle) decrease() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.opsPerSecond <= 1 {
		return
	}
	delta := max(1, int(float64(t.opsPerSecond)*0.1))
	t.opsPerSecond -= delta
}

func (t *throttle) run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.supply(ctx)
		}
	}
}

func (t *throttle) supply(ctx context.Context) {
	t.mu.Lock()
	n := t.opsPerSecond
	t.mu.Unlock()
	for i := 0; i < n; i++ {
		select {
		case t.tokenChan <- true:
		case <-ctx.Done():
			t.mu.Lock()
			t.oversupply = n - i
			t.mu.Unlock()
			return
		default:
			t.mu.Lock()
			t.oversupply = n - i
			t.mu.Unlock()
			return
		}
	}
	t.mu.Lock()
	t.oversupply = 0
	t.mu.Unlock()
}

func (t *throttle) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("target %d/s, unconsumed last tick %d", t.opsPerSecond, t.oversupply)
}
