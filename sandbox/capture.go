// Copyright 2026 The Burrow Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"io"
	"sync"
)

// boundedBuffer captures a stream up to a byte limit, then keeps
// draining so the sandbox process never blocks on a full pipe.
type boundedBuffer struct {
	mu        sync.Mutex
	data      []byte
	limit     int
	truncated bool
}

func newBoundedBuffer(limit int) *boundedBuffer {
	return &boundedBuffer{limit: limit}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := b.limit - len(b.data)
	if remaining > 0 {
		if len(p) <= remaining {
			b.data = append(b.data, p...)
		} else {
			b.data = append(b.data, p[:remaining]...)
			b.truncated = true
		}
	} else if len(p) > 0 {
		b.truncated = true
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}

func (b *boundedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}

// capture drains reader into a bounded buffer on its own goroutine
// and returns the buffer plus a done channel closed when the stream
// ends.
func capture(reader io.Reader, limit int) (*boundedBuffer, <-chan struct{}) {
	buffer := newBoundedBuffer(limit)
	done := make(chan struct{})
	go func() {
		defer close(done)
		io.Copy(buffer, reader)
	}()
	return buffer, done
}
