// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "sync"

// outcomeCell resolves the race between a natural exit, the deadline,
// and a spawn failure: exactly one resolution wins, later attempts
// are dropped.
type outcomeCell struct {
	once sync.Once
	done chan struct{}

	exitCode int
	timedOut bool
	err      error
}

func newOutcomeCell() *outcomeCell {
	return &outcomeCell{done: make(chan struct{})}
}

func (c *outcomeCell) resolveExit(code int) {
	c.once.Do(func() {
		c.exitCode = code
		close(c.done)
	})
}

func (c *outcomeCell) resolveTimeout() {
	c.once.Do(func() {
		c.timedOut = true
		close(c.done)
	})
}

func (c *outcomeCell) resolveError(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// wait blocks until the cell is resolved.
func (c *outcomeCell) wait() {
	<-c.done
}
