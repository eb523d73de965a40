package loadserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// failingListener returns a non-close error from Accept until it is closed.
type failingListener struct {
	calls     atomic.Int64
	closeOnce sync.Once
	closed    chan struct{}
}

func (l *failingListener) Accept() (net.Conn, error) {
	l.calls.Add(1)
	select {
	case <-l.closed:
		return nil, net.ErrClosed
	default:
		return nil, errors.New("accept4: too many open files")
	}
}

func (l *failingListener) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

func (l *failingListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}

func TestServer_AcceptErrorsBackOff(t *testing.T) {
	ln := &failingListener{closed: make(chan struct{})}
	srv := New(testServerConf())
	srv.listener = ln

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Expected Serve to return nil, but got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	// 5+10+20+40+80ms fit in 200ms; a hot loop would make thousands of calls.
	if calls := ln.calls.Load(); calls > 10 {
		t.Errorf("Expected Accept to be retried with backoff, but it was called %d times", calls)
	}
}
