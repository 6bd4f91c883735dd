// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/bufmap/lib/handle"
)

// maxTransferFDs bounds one ancillary message. The kernel caps
// SCM_RIGHTS at 253 descriptors per message (SCM_MAX_FD); refusing
// larger batches here gives the sender a clear error instead of an
// EMSGSIZE from deep inside sendmsg.
const maxTransferFDs = 253

// SendHandles transfers the descriptors of hs in one ancillary
// message, in handle order. A marker byte is always sent, descriptors
// or not, so the receiver can issue exactly one recvmsg per batch.
// The sender keeps ownership of its descriptors — the kernel
// duplicates them into the receiver.
func SendHandles(conn *net.UnixConn, hs []*handle.Handle) error {
	var fds []int
	for _, h := range hs {
		fds = append(fds, h.FDs...)
	}
	if len(fds) > maxTransferFDs {
		return fmt.Errorf("wire: %d fds exceeds the %d per-message transfer limit",
			len(fds), maxTransferFDs)
	}
	var rights []byte
	if len(fds) > 0 {
		rights = unix.UnixRights(fds...)
	}
	if _, _, err := conn.WriteMsgUnix([]byte{0}, rights, nil); err != nil {
		return fmt.Errorf("wire: sending %d fds: %w", len(fds), err)
	}
	return nil
}

// RecvHandles receives the descriptors announced by shapes and
// reassembles full handles, marking every received descriptor
// CLOEXEC. The returned handles own their descriptors. If the
// ancillary data does not match the announced shape, everything
// received is closed before the error returns.
func RecvHandles(conn *net.UnixConn, shapes []Handle) ([]*handle.Handle, error) {
	want := 0
	for _, s := range shapes {
		want += s.FDCount
	}
	buf := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(want*4)+unix.CmsgSpace(4))
	_, oobn, _, _, err := conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return nil, fmt.Errorf("wire: receiving fds: %w", err)
	}

	var fds []int
	if oobn > 0 {
		msgs, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err != nil {
			return nil, fmt.Errorf("wire: parsing control messages: %w", err)
		}
		for _, msg := range msgs {
			parsed, err := unix.ParseUnixRights(&msg)
			if err != nil {
				return nil, fmt.Errorf("wire: parsing rights: %w", err)
			}
			fds = append(fds, parsed...)
		}
	}
	closeAll := func() {
		for _, fd := range fds {
			unix.Close(fd)
		}
	}
	if len(fds) != want {
		closeAll()
		return nil, fmt.Errorf("wire: received %d fds, announced %d", len(fds), want)
	}
	for _, fd := range fds {
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
			closeAll()
			return nil, fmt.Errorf("wire: setting CLOEXEC on fd %d: %w", fd, err)
		}
	}

	handles := make([]*handle.Handle, 0, len(shapes))
	next := 0
	for _, s := range shapes {
		own := make([]int, s.FDCount)
		copy(own, fds[next:next+s.FDCount])
		next += s.FDCount
		words := make([]uint32, len(s.Words))
		copy(words, s.Words)
		handles = append(handles, handle.New(own, words))
	}
	return handles, nil
}
