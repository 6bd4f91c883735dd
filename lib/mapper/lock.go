// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mapper

import (
	"fmt"

	"github.com/bureau-foundation/bufmap/lib/fence"
	"github.com/bureau-foundation/bufmap/lib/handle"
	"github.com/bureau-foundation/bufmap/lib/status"
	"github.com/bureau-foundation/bufmap/lib/usage"
)

// translateLockUsage turns CPU access intent into the combined
// producer/consumer mask the backend maps with. The producer side
// carries the intent unchanged; the consumer side drops CPU-write
// bits, because a read-only consumer never implies write intent.
func translateLockUsage(cpu usage.Usage) usage.Usage {
	producer := cpu
	consumer := cpu &^ usage.CPUWriteMask
	return producer | consumer
}

// waitAcquire extracts the acquire fence from its wire handle and
// blocks until it signals. Extraction errors (malformed fence shape,
// descriptor exhaustion) propagate; the wait itself never fails.
func waitAcquire(acquire *handle.Handle) error {
	f, err := fence.FromHandle(acquire)
	if err != nil {
		return err
	}
	f.Wait()
	return f.Close()
}

// Lock maps the region of an imported buffer for CPU access and
// returns the CPU-visible bytes. The call blocks until the acquire
// fence signals; a nil or empty acquire handle means no wait. Backend
// refusal to map is a capability gap, reported as Unsupported.
func (m *Mapper) Lock(h *handle.Handle, cpuUsage usage.Usage, region Region, acquire *handle.Handle) ([]byte, error) {
	if h == nil {
		return nil, fmt.Errorf("mapper: lock of nil handle: %w", status.BadBuffer)
	}
	if err := waitAcquire(acquire); err != nil {
		return nil, err
	}
	data, err := m.backend.Map(h, translateLockUsage(cpuUsage), region)
	if err != nil {
		m.logger.Error("backend map failed", "handle", h, "error", err)
		return nil, fmt.Errorf("mapper: backend map: %v: %w", err, status.Unsupported)
	}
	return data, nil
}

// LockPlanar is Lock for planar YCbCr buffers: same validation and
// fence sequence, but the backend returns per-plane base slices and
// strides instead of one contiguous mapping. Only available when the
// profile has PlanarLock.
func (m *Mapper) LockPlanar(h *handle.Handle, cpuUsage usage.Usage, region Region, acquire *handle.Handle) (PlanarLayout, error) {
	if !m.profile.PlanarLock {
		return PlanarLayout{}, fmt.Errorf("mapper: planar lock not in profile: %w", status.Unsupported)
	}
	if h == nil {
		return PlanarLayout{}, fmt.Errorf("mapper: planar lock of nil handle: %w", status.BadBuffer)
	}
	if err := waitAcquire(acquire); err != nil {
		return PlanarLayout{}, err
	}
	layout, err := m.backend.MapPlanar(h, translateLockUsage(cpuUsage), region)
	if err != nil {
		m.logger.Error("backend planar map failed", "handle", h, "error", err)
		return PlanarLayout{}, fmt.Errorf("mapper: backend planar map: %v: %w", err, status.Unsupported)
	}
	return layout, nil
}

// Unlock releases the CPU mapping of a locked buffer and returns a
// release fence for the consumer to wait on. This backend completes
// its cache maintenance synchronously inside Unmap, so the release
// fence is always an already-signaled one — but the contract is that
// unlock yields a fence, and callers must wait on it regardless. If
// the backend refuses to unmap, the buffer stays logically locked and
// no fence is produced.
func (m *Mapper) Unlock(h *handle.Handle) (*handle.Handle, error) {
	if h == nil {
		return nil, fmt.Errorf("mapper: unlock of nil handle: %w", status.BadBuffer)
	}
	if err := m.backend.Unmap(h); err != nil {
		m.logger.Error("backend unmap failed", "handle", h, "error", err)
		return nil, fmt.Errorf("mapper: backend unmap: %v: %w", err, status.Unsupported)
	}
	return releaseFenceHandle()
}

// FlushLocked flushes CPU writes on a locked buffer. In this backend
// flushing is defined as unlock-with-flush — Unmap performs the cache
// maintenance — so the contract is identical to Unlock. The operation
// keeps its own name for backends that can flush without releasing
// the mapping. Only available when the profile has LockedFlush.
func (m *Mapper) FlushLocked(h *handle.Handle) (*handle.Handle, error) {
	if !m.profile.LockedFlush {
		return nil, fmt.Errorf("mapper: locked flush not in profile: %w", status.Unsupported)
	}
	return m.Unlock(h)
}

// Reread refreshes CPU visibility of out-of-band writes to a locked
// buffer. This backend's mappings are coherent, so there is nothing
// to re-fetch and the call is a validity check only. Only available
// when the profile has LockedFlush.
func (m *Mapper) Reread(h *handle.Handle) error {
	if !m.profile.LockedFlush {
		return fmt.Errorf("mapper: reread not in profile: %w", status.Unsupported)
	}
	if h == nil {
		return fmt.Errorf("mapper: reread of nil handle: %w", status.BadBuffer)
	}
	return nil
}

// releaseFenceHandle builds the wire handle for an already-signaled
// release fence: a fresh fence descriptor owned by the returned
// handle.
func releaseFenceHandle() (*handle.Handle, error) {
	f, err := fence.Signaled()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Handle()
}
