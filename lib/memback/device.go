// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memback

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/bufmap/lib/handle"
)

// Device is the backend context: the memfd "driver connection" plus
// the table of registered buffers. The table is guarded by its own
// mutex — the mapper core takes no locks, so per-handle thread
// safety lives here.
type Device struct {
	logger *slog.Logger

	// MaxBytes caps one buffer's allocation size. Zero means
	// unlimited. Set before the first Allocate.
	MaxBytes uint32

	mu         sync.Mutex
	registered map[*handle.Handle]*buffer
	closed     bool
}

// buffer is the per-registration state: geometry decoded from the
// handle words at register time, and the live mapping if locked.
type buffer struct {
	geo     geometry
	mapping []byte
}

// Open establishes the backend connection. It probes memfd support
// once so that a kernel without it fails loudly at startup instead of
// on the first allocation. The caller owns the Device and must Close
// it.
func Open(logger *slog.Logger) (*Device, error) {
	probe, err := unix.MemfdCreate("bufmap-probe", unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, fmt.Errorf("memback: kernel memfd probe: %w", err)
	}
	unix.Close(probe)
	return &Device{
		logger:     logger,
		registered: make(map[*handle.Handle]*buffer),
	}, nil
}

// Close tears down the device. Buffers still registered are unmapped
// and logged — a leftover registration is a client bug, but leaving
// mappings behind would pin the memory until process exit.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("memback: device already closed")
	}
	d.closed = true
	for h, buf := range d.registered {
		if buf.mapping != nil {
			unix.Munmap(buf.mapping)
		}
		d.logger.Warn("buffer still registered at device close", "handle", h)
	}
	d.registered = nil
	return nil
}

// Register validates the handle shape against the backend word layout
// and adds it to the table. Registration is per-clone: two imports of
// the same underlying buffer are two independent registrations.
func (d *Device) Register(h *handle.Handle) error {
	geo, err := decodeGeometry(h)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("memback: device closed")
	}
	if _, ok := d.registered[h]; ok {
		return fmt.Errorf("memback: handle already registered")
	}
	d.registered[h] = &buffer{geo: geo}
	return nil
}

// Unregister removes a registered handle. A handle with a live
// mapping is unmapped first; the memory behind it stays valid for
// other registrations of the same memfd.
func (d *Device) Unregister(h *handle.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.registered[h]
	if !ok {
		return fmt.Errorf("memback: handle not registered")
	}
	if buf.mapping != nil {
		if err := unix.Munmap(buf.mapping); err != nil {
			return fmt.Errorf("memback: unmapping on unregister: %w", err)
		}
	}
	delete(d.registered, h)
	return nil
}
