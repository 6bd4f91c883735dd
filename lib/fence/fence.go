// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fence

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/bufmap/lib/handle"
	"github.com/bureau-foundation/bufmap/lib/status"
)

// noFD is the in-memory representation of an already-signaled fence.
const noFD = -1

// Fence wraps a pollable synchronization descriptor. The zero-fd
// (invalid descriptor) state means already signaled: Wait returns
// immediately and Handle produces an empty wire handle.
type Fence struct {
	fd int
}

// FromHandle extracts a fence from its wire handle. The handle may
// carry zero or one descriptors: zero (or a nil handle) yields the
// already-signaled fence; more than one is a malformed fence and
// fails with [status.BadValue] before any duplication happens. A
// present descriptor is duplicated — the caller keeps ownership of
// the handle it passed in, the returned Fence owns the duplicate —
// and duplication failure maps to [status.NoResources].
func FromHandle(h *handle.Handle) (*Fence, error) {
	if h == nil || len(h.FDs) == 0 {
		return &Fence{fd: noFD}, nil
	}
	if len(h.FDs) > 1 {
		return nil, fmt.Errorf("fence: handle carries %d fds, want at most 1: %w",
			len(h.FDs), status.BadValue)
	}
	dup, err := unix.FcntlInt(uintptr(h.FDs[0]), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("fence: duplicating fd %d: %v: %w",
			h.FDs[0], err, status.NoResources)
	}
	return &Fence{fd: dup}, nil
}

// Signaled returns a fence that is already signaled and stays
// signaled: an eventfd with a nonzero counter, readable forever
// because nothing ever drains it. Used to build release fences for
// backends that complete their work synchronously.
func Signaled() (*Fence, error) {
	fd, err := unix.Eventfd(1, unix.EFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("fence: creating signaled eventfd: %v: %w",
			err, status.NoResources)
	}
	return &Fence{fd: fd}, nil
}

// Wait blocks the calling goroutine until the fence signals. An
// already-signaled fence returns immediately. The wait is unbounded
// and reports nothing: a fence that never signals is an unbounded
// stall, by contract with producers that only hand out short-lived
// fences. Poll errors other than EINTR/EAGAIN are treated as
// signaled — the descriptor is unusable and blocking on it further
// cannot help.
func (f *Fence) Wait() {
	if f.fd < 0 {
		return
	}
	for {
		pfd := []unix.PollFd{{Fd: int32(f.fd), Events: unix.POLLIN}}
		_, err := unix.Poll(pfd, -1)
		if err == nil {
			return
		}
		if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
			continue
		}
		return
	}
}

// WaitTimeout blocks until the fence signals or d elapses, reporting
// whether it signaled. This is the additive bounded variant; the
// mapper's lock path uses the unbounded [Fence.Wait].
func (f *Fence) WaitTimeout(d time.Duration) bool {
	if f.fd < 0 {
		return true
	}
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining < 0 {
			return false
		}
		pfd := []unix.PollFd{{Fd: int32(f.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(pfd, int(remaining.Milliseconds()))
		if err != nil {
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				continue
			}
			return true
		}
		if n > 0 {
			return true
		}
		return false
	}
}

// Handle duplicates the fence into a fresh single-fd wire handle.
// The returned handle owns its descriptor; the fence is unchanged.
// An already-signaled fence yields nil — absence of a descriptor is
// the wire encoding of "nothing to wait for".
func (f *Fence) Handle() (*handle.Handle, error) {
	if f.fd < 0 {
		return nil, nil
	}
	dup, err := unix.FcntlInt(uintptr(f.fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("fence: duplicating fd %d for wire: %v: %w",
			f.fd, err, status.NoResources)
	}
	return handle.New([]int{dup}, nil), nil
}

// Close releases the fence descriptor. Safe on an already-signaled
// (descriptorless) fence and safe to call twice.
func (f *Fence) Close() error {
	if f.fd < 0 {
		return nil
	}
	fd := f.fd
	f.fd = noFD
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("fence: closing fd %d: %w", fd, err)
	}
	return nil
}
