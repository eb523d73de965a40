package shared

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// ErrBufferClosed is returned by Write after Close.
var ErrBufferClosed = errors.New("output buffer closed")

const flushSize = 64 * 1024

// OutputBuffer is a thread-safe outbound queue between one producer and one flusher.
// The producer appends with Write and may suspend with WaitDrained once Len exceeds
// its high-water mark; the flusher pumps the data to the socket with WriteTo.
type OutputBuffer struct {
	mu        sync.Mutex
	cond      *sync.Cond
	b         bytes.Buffer
	inflight  int
	highWater int
	closed    bool
	err       error
}

// NewOutputBuffer creates a buffer with the given high-water mark in bytes.
func NewOutputBuffer(highWater int) *OutputBuffer {
	ob := &OutputBuffer{highWater: highWater}
	ob.cond = sync.NewCond(&ob.mu)
	return ob
}

// Write appends p. It never blocks on the flusher.
func (ob *OutputBuffer) Write(p []byte) (int, error) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	if ob.err != nil {
		return 0, ob.err
	}
	if ob.closed {
		return 0, ErrBufferClosed
	}
	n, _ := ob.b.Write(p)
	ob.cond.Broadcast()
	return n, nil
}

// Len returns buffered bytes plus bytes currently being written by the flusher.
func (ob *OutputBuffer) Len() int {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.b.Len() + ob.inflight
}

// AboveHighWater reports whether Len exceeds the high-water mark.
func (ob *OutputBuffer) AboveHighWater() bool {
	return ob.Len() > ob.highWater
}

// WaitDrained blocks until every queued byte has been handed to the flusher's writer,
// or the flusher failed. It returns the flush error, if any.
func (ob *OutputBuffer) WaitDrained() error {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	for ob.err == nil && ob.b.Len()+ob.inflight > 0 {
		ob.cond.Wait()
	}
	return ob.err
}

// WriteTo pumps queued data into w until the buffer is closed and empty.
// A write error fails the buffer: pending data is dropped and waiters are released.
func (ob *OutputBuffer) WriteTo(w io.Writer) (int64, error) {
	var total int64
	chunk := make([]byte, flushSize)
	for {
		ob.mu.Lock()
		for ob.b.Len() == 0 && !ob.closed && ob.err == nil {
			ob.cond.Wait()
		}
		if ob.err != nil {
			err := ob.err
			ob.mu.Unlock()
			return total, err
		}
		if ob.b.Len() == 0 && ob.closed {
			ob.mu.Unlock()
			return total, nil
		}
		n, _ := ob.b.Read(chunk)
		ob.inflight = n
		ob.mu.Unlock()

		written, err := w.Write(chunk[:n])
		total += int64(written)

		ob.mu.Lock()
		ob.inflight = 0
		if err != nil {
			ob.err = err
			ob.b.Reset()
		}
		ob.cond.Broadcast()
		ob.mu.Unlock()
		if err != nil {
			return total, err
		}
	}
}

// Close stops accepting writes; WriteTo returns once the remaining data is flushed.
func (ob *OutputBuffer) Close() {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.closed = true
	ob.cond.Broadcast()
}

// Fail aborts the buffer with err, releasing the flusher and any drain waiters.
func (ob *OutputBuffer) Fail(err error) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	if ob.err == nil {
		ob.err = err
	}
	ob.b.Reset()
	ob.cond.Broadcast()
}
