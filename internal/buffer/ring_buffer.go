// Package buffer provides the bounded scrollback store for terminal output.
package buffer

import (
	"sync"
)

// DefaultScrollback is the scrollback capacity used when none is configured.
const DefaultScrollback = 4096

// RingBuffer is a thread-safe bounded FIFO byte store. When the buffer is
// full, the oldest bytes are evicted to make room for new data.
//
// It holds the most recent terminal output so that late-joining subscribers
// receive recent history as their first frame.
type RingBuffer struct {
	data     []byte
	capacity int
	mu       sync.RWMutex
}

// NewRingBuffer creates a RingBuffer with the given capacity.
// A capacity of zero or less falls back to DefaultScrollback.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultScrollback
	}
	return &RingBuffer{
		data:     make([]byte, 0, capacity),
		capacity: capacity,
	}
}

// Write appends data to the buffer, evicting the oldest bytes once the
// capacity is exceeded. It implements io.Writer and never fails.
func (rb *RingBuffer) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	// Incoming chunk alone exceeds capacity: keep only its tail.
	if len(p) >= rb.capacity {
		rb.data = make([]byte, rb.capacity)
		copy(rb.data, p[len(p)-rb.capacity:])
		return len(p), nil
	}

	newLen := len(rb.data) + len(p)
	if newLen <= rb.capacity {
		rb.data = append(rb.data, p...)
	} else {
		// Evict just enough of the oldest bytes to fit the new chunk.
		discard := newLen - rb.capacity
		newData := make([]byte, rb.capacity)
		copy(newData, rb.data[discard:])
		copy(newData[len(rb.data)-discard:], p)
		rb.data = newData
	}

	return len(p), nil
}

// Snapshot returns a copy of the current contents in buffered order.
// The returned slice is safe to use without holding the lock; it is nil
// when the buffer is empty.
func (rb *RingBuffer) Snapshot() []byte {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if len(rb.data) == 0 {
		return nil
	}

	result := make([]byte, len(rb.data))
	copy(result, rb.data)
	return result
}

// Clear removes all data from the buffer.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.data = rb.data[:0]
}

// Len returns the current number of bytes in the buffer.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	return len(rb.data)
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer) Cap() int {
	return rb.capacity
}
