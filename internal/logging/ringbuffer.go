package logging

import (
	"os"
	"sync"
)

// RingBuffer is a fixed-capacity byte ring that keeps the most recent
// writes. It implements io.Writer; old data is overwritten silently.
// Used as a secondary log sink so crashes can dump the recent tail
// even when file logging is rotated or disabled.
type RingBuffer struct {
	mu      sync.Mutex
	buf     []byte
	w       int // next write position
	wrapped bool
}

// NewRingBuffer creates a ring buffer holding at most size bytes.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1024 * 1024
	}
	return &RingBuffer{buf: make([]byte, size)}
}

// Write implements io.Writer and never fails.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(p)
	size := len(rb.buf)

	// Oversized writes only keep their own tail
	if n >= size {
		copy(rb.buf, p[n-size:])
		rb.w = 0
		rb.wrapped = true
		return n, nil
	}

	head := copy(rb.buf[rb.w:], p)
	if head < n {
		copy(rb.buf, p[head:])
		rb.w = n - head
		rb.wrapped = true
	} else {
		rb.w += n
		if rb.w == size {
			rb.w = 0
			rb.wrapped = true
		}
	}
	return n, nil
}

// Bytes returns the retained data in write order.
func (rb *RingBuffer) Bytes() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.wrapped {
		out := make([]byte, rb.w)
		copy(out, rb.buf[:rb.w])
		return out
	}

	out := make([]byte, len(rb.buf))
	n := copy(out, rb.buf[rb.w:])
	copy(out[n:], rb.buf[:rb.w])
	return out
}

// DumpToFile writes the retained data to path.
func (rb *RingBuffer) DumpToFile(path string) error {
	return os.WriteFile(path, rb.Bytes(), 0o644)
}
