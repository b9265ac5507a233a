//go:build linux

// Package ioloop wraps Linux epoll behind the minimal readiness-poll
// interface the hot thread's single loop needs, plus best-effort core
// pinning so the hot and cold threads each get a dedicated CPU.
package ioloop

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Interest is a bitmask of the events a registered fd should be polled for.
type Interest uint32

const (
	InterestRead  Interest = unix.EPOLLIN
	InterestWrite Interest = unix.EPOLLOUT
)

// Event is one readiness notification from Wait.
type Event struct {
	Token int
	Read  bool
	Write bool
}

// Poller is a thin wrapper around one epoll instance.
type Poller struct {
	epfd int
}

// New creates a Poller backed by a fresh epoll instance.
func New() (*Poller, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("ioloop: epoll_create1: %w", err)
	}
	return &Poller{epfd: fd}, nil
}

// Register adds fd to the poll set with the given interest. Matching Events
// carry fd as their Token, so token is only meaningful when it equals fd.
func (p *Poller) Register(fd, token int, interest Interest) error {
	ev := unix.EpollEvent{Events: uint32(interest), Fd: int32(fd)}
	if token != fd {
		// EpollEvent has no separate user-data field distinct from Fd in
		// this binding; callers are expected to register with token==fd
		// and use fd itself to look up session state.
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

// Modify updates the interest mask for an already-registered fd. Called
// once per iteration since each session recomputes its interest mask every
// pass through the hot loop.
func (p *Poller) Modify(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: uint32(interest), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

// Remove drops fd from the poll set.
func (p *Poller) Remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks for up to timeout for any registered fd to become ready.
func (p *Poller) Wait(timeout time.Duration) ([]Event, error) {
	var raw [8]unix.EpollEvent
	n, err := unix.EpollWait(p.epfd, raw[:], int(timeout/time.Millisecond))
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("ioloop: epoll_wait: %w", err)
	}
	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, Event{
			Token: int(raw[i].Fd),
			Read:  raw[i].Events&unix.EPOLLIN != 0,
			Write: raw[i].Events&unix.EPOLLOUT != 0,
		})
	}
	return events, nil
}

// Close releases the epoll instance.
func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}

// PinCurrentThread pins the calling OS thread to core. The caller must have
// already called runtime.LockOSThread. Best-effort: errors are returned for
// the caller to log, not to treat as fatal — an unpinned thread still works
// correctly, just without the cache-locality benefit.
func PinCurrentThread(core int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	return unix.SchedSetaffinity(0, &set)
}

// NumCPU returns the number of CPUs available to this process.
func NumCPU() (int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return 0, err
	}
	return set.Count(), nil
}
