// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"sync"
	"time"

	"github.com/burrow-systems/burrow/lib/clock"
)

// Flusher periodically flushes a Store's dirty state to disk.
type Flusher struct {
	store    *Store
	clk      clock.Clock
	interval time.Duration

	startOnce sync.Once
	done      chan struct{}
}

// NewFlusher wires a flush loop. Start must be called to run it.
func NewFlusher(store *Store, clk clock.Clock, interval time.Duration) *Flusher {
	return &Flusher{
		store:    store,
		clk:      clk,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the flush loop. Idempotent: repeated calls start one
// loop. The loop exits when ctx is cancelled, after a final flush.
func (f *Flusher) Start(ctx context.Context) {
	f.startOnce.Do(func() {
		go f.run(ctx)
	})
}

// Wait blocks until the loop has exited and the final flush finished.
func (f *Flusher) Wait() {
	<-f.done
}

func (f *Flusher) run(ctx context.Context) {
	defer close(f.done)
	ticker := f.clk.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := f.store.Flush(); err != nil {
				f.store.logger.Error("final state flush failed", "error", err)
			}
			return
		case <-ticker.C:
			if err := f.store.Flush(); err != nil {
				f.store.logger.Error("state flush failed", "error", err)
			}
		}
	}
}
