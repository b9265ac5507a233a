//go:build linux

package ioloop

import (
	"syscall"
	"testing"
	"time"
)

func TestPollerDetectsReadableFD(t *testing.T) {
	t.Parallel()

	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer syscall.Close(fds[0])
	defer syscall.Close(fds[1])

	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	if err := p.Register(fds[0], fds[0], InterestRead); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := syscall.Write(fds[1], []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	events, err := p.Wait(100 * time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].Token != fds[0] || !events[0].Read {
		t.Errorf("events[0] = %+v, want Token=%d Read=true", events[0], fds[0])
	}
}

func TestPollerWaitTimesOutWithNoEvents(t *testing.T) {
	t.Parallel()

	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	events, err := p.Wait(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("len(events) = %d, want 0", len(events))
	}
}
