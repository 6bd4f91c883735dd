// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package handle

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Handle is a cross-process transferable reference to allocated
// buffer memory. FDs never serialize inline — transports move them
// out-of-band (SCM_RIGHTS) and reattach them on receipt, so the
// field carries no cbor tag by design of the wire package, which
// sends only the fd count.
type Handle struct {
	// FDs are the file descriptors backing the buffer. Owned by the
	// Handle: Close releases them.
	FDs []int `cbor:"-"`

	// Words is backend-private integer metadata (dimensions, stride,
	// format, verification tags). Opaque to everything but the
	// backend that minted the handle.
	Words []uint32 `cbor:"words,omitempty"`
}

// New returns a handle owning the given descriptors and words. The
// slices are retained, not copied.
func New(fds []int, words []uint32) *Handle {
	return &Handle{FDs: fds, Words: words}
}

// Clone duplicates every descriptor (CLOEXEC) and copies the words,
// returning a handle with a lifetime independent of h. On failure any
// descriptors already duplicated are closed before the error returns,
// so a failed clone never leaks.
func (h *Handle) Clone() (*Handle, error) {
	fds := make([]int, 0, len(h.FDs))
	for _, fd := range h.FDs {
		dup, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
		if err != nil {
			for _, d := range fds {
				unix.Close(d)
			}
			return nil, fmt.Errorf("handle: duplicating fd %d: %w", fd, err)
		}
		fds = append(fds, dup)
	}
	words := make([]uint32, len(h.Words))
	copy(words, h.Words)
	return &Handle{FDs: fds, Words: words}, nil
}

// Close releases every descriptor the handle owns. Safe to call on a
// handle that has already been closed; a second call is a no-op.
// Returns the first close error encountered, after attempting all.
func (h *Handle) Close() error {
	var firstErr error
	for _, fd := range h.FDs {
		if err := unix.Close(fd); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("handle: closing fd %d: %w", fd, err)
		}
	}
	h.FDs = nil
	return firstErr
}

// String describes the handle shape for logs without exposing
// descriptor values as anything but numbers.
func (h *Handle) String() string {
	if h == nil {
		return "handle(nil)"
	}
	return fmt.Sprintf("handle(fds=%d words=%d)", len(h.FDs), len(h.Words))
}
