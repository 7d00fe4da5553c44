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

// biglist-hammer drives concurrent append and random-read load against a
// BigList and renders a live terminal dashboard of throughput and per-op
// latency. +/- adjusts read throughput, </> adjusts write throughput.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"k8s.io/klog/v2"

	"github.com/clabernetes/biglist"
	"github.com/clabernetes/biglist/path"
)

var (
	root          = flag.String("root", "", "Root URI of the BigList to hammer; created if it doesn't exist.")
	storageFormat = flag.String("storage_format", "pickle-zstd", "Serializer to use if -root doesn't already exist.")
	batchSize     = flag.Int("batch_size", 500, "Flush threshold if -root doesn't already exist.")
	writeRate     = flag.Int("initial_write_qps", 20, "Starting append rate.")
	readRate      = flag.Int("initial_read_qps", 20, "Starting random-read rate.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	ctx := context.Background()

	if *root == "" {
		klog.Exit("-root is required")
	}
	r, err := path.Parse(ctx, *root)
	if err != nil {
		klog.Exitf("parse -root %q: %v", *root, err)
	}

	bl, err := biglist.Open(ctx, r)
	if err != nil {
		bl, err = biglist.New(ctx, r, *batchSize, *storageFormat)
		if err != nil {
			klog.Exitf("open or create BigList at %q: %v", *root, err)
		}
	}

	h := &hammerState{
		bl:            bl,
		writeThrottle: newThrottle(*writeRate),
		readThrottle:  newThrottle(*readRate),
		writeTimes:    newMovingAvgMs(120),
		readTimes:     newMovingAvgMs(120),
	}
	go h.writeThrottle.run(ctx)
	go h.readThrottle.run(ctx)
	for i := 0; i < 4; i++ {
		go h.writeLoop(ctx)
		go h.readLoop(ctx)
	}

	newTUI(h).run(ctx)
}

// hammerState is the shared load-generation state the TUI reads from and
// the key bindings adjust.
type hammerState struct {
	bl            *biglist.BigList
	writeThrottle *throttle
	readThrottle  *throttle

	writes     atomic.Int64
	reads      atomic.Int64
	writeErrs  atomic.Int64
	readErrs   atomic.Int64
	writeTimes movingAvgMs
	readTimes  movingAvgMs
}

// movingAvgMs wraps a ConcurrentMovingAverage behind a mutex-free Add, since
// the underlying type already synchronizes internally.
type movingAvgMs struct {
	ma *movingaverage.ConcurrentMovingAverage
}

func newMovingAvgMs(slots int) movingAvgMs {
	return movingAvgMs{ma: movingaverage.Concurrent(movingaverage.New(slots))}
}

func (m movingAvgMs) add(d time.Duration) { m.ma.Add(float64(d.Milliseconds())) }

func (h *hammerState) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.writeThrottle.tokenChan:
			start := time.Now()
			err := h.bl.Append(ctx, fmt.Sprintf("hammer-%d-%d", time.Now().UnixNano(), rand.Int63()))
			h.writeTimes.add(time.Since(start))
			h.writes.Add(1)
			if err != nil {
				h.writeErrs.Add(1)
				klog.Warningf("append: %v", err)
			}
		}
	}
}

func (h *hammerState) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.readThrottle.tokenChan:
			n := h.bl.Len()
			if n == 0 {
				continue
			}
			start := time.Now()
			_, err := h.bl.At(ctx, rand.Intn(n))
			h.readTimes.add(time.Since(start))
			h.reads.Add(1)
			if err != nil {
				h.readErrs.Add(1)
				klog.Warningf("at: %v", err)
			}
		}
	}
}

// tui is the tview dashboard: a status box, a scrolling log view fed by
// klog, and a static help line.
type tui struct {
	h          *hammerState
	app        *tview.Application
	statusView *tview.TextView
	logView    *tview.TextView
}

func newTUI(h *hammerState) *tui {
	t := &tui{h: h, app: tview.NewApplication()}
	grid := tview.NewGrid().SetRows(6, 0, 1).SetColumns(0).SetBorders(true)

	t.statusView = tview.NewTextView()
	grid.AddItem(t.statusView, 0, 0, 1, 1, 0, 0, false)

	t.logView = tview.NewTextView()
	t.logView.ScrollToEnd()
	t.logView.SetMaxLines(10000)
	grid.AddItem(t.logView, 1, 0, 1, 1, 0, 0, false)

	help := tview.NewTextView()
	help.SetText("+/- read rate   </> write rate   ctrl-c quit")
	grid.AddItem(help, 2, 0, 1, 1, 0, 0, false)

	t.app.SetRoot(grid, true)
	return t
}

func (t *tui) run(ctx context.Context) {
	klog.SetOutput(t.logView)

	go t.statsLoop(ctx, 500*time.Millisecond)

	t.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case '+':
			t.h.readThrottle.increase()
		case '-':
			t.h.readThrottle.decrease()
		case '>':
			t.h.writeThrottle.increase()
		case '<':
			t.h.writeThrottle.decrease()
		}
		return event
	})
	if err := t.app.Run(); err != nil {
		klog.Exitf("tui: %v", err)
	}
}

func (t *tui) statsLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	format := func(name string, ma movingAvgMs, n, errs *atomic.Int64) string {
		avg := ma.ma.Avg()
		return fmt.Sprintf("%s: %d ops (%d errors), %.1fms avg latency", name, n.Load(), errs.Load(), avg)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lines := []string{
				format("writes", t.h.writeTimes, &t.h.writes, &t.h.writeErrs),
				format("reads", t.h.readTimes, &t.h.reads, &t.h.readErrs),
				fmt.Sprintf("write throttle: %s", t.h.writeThrottle.String()),
				fmt.Sprintf("read throttle:  %s", t.h.readThrottle.String()),
				fmt.Sprintf("BigList length: %d", t.h.bl.Len()),
			}
			t.statusView.SetText(strings.Join(lines, "\n"))
			t.app.Draw()
		}
	}
}
