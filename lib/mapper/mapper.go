// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mapper

import (
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/bufmap/lib/descriptor"
	"github.com/bureau-foundation/bufmap/lib/handle"
	"github.com/bureau-foundation/bufmap/lib/status"
	"github.com/bureau-foundation/bufmap/lib/usage"
)

// Mapper is the buffer mapper core. Construct with New; the backend
// connection is owned by the caller (typically a backend device
// object with its own Close), not by the Mapper.
type Mapper struct {
	backend Backend
	profile Profile
	logger  *slog.Logger
}

// New binds a mapper to a backend and a capability profile.
func New(backend Backend, profile Profile, logger *slog.Logger) *Mapper {
	return &Mapper{
		backend: backend,
		profile: profile,
		logger:  logger,
	}
}

// Profile returns the capability profile the mapper was built with.
func (m *Mapper) Profile() Profile {
	return m.profile
}

// CreateDescriptor validates a buffer request and serializes it into
// an opaque descriptor for the allocator. Requests carrying usage
// bits this version has no name for are logged and passed through —
// unknown bits are a forward-compatibility case, not an error. On
// failure the returned descriptor is empty.
func (m *Mapper) CreateDescriptor(info descriptor.Info) (descriptor.Descriptor, error) {
	if err := descriptor.Validate(info); err != nil {
		return nil, err
	}
	if unknown := usage.Unknown(info.Usage); unknown != 0 {
		m.logger.Warn("buffer descriptor with unknown usage bits",
			"bits", fmt.Sprintf("%#x", uint64(unknown)))
	}
	return descriptor.Encode(info)
}

// Import clones an incoming buffer handle and registers the clone
// with the backend. The caller's raw handle is untouched — its
// descriptors and the returned handle's have independent lifetimes.
// If registration fails the clone is closed before the error
// returns, so a failed import never leaks a descriptor.
func (m *Mapper) Import(raw *handle.Handle) (*handle.Handle, error) {
	if raw == nil {
		return nil, fmt.Errorf("mapper: import of nil handle: %w", status.BadBuffer)
	}
	clone, err := raw.Clone()
	if err != nil {
		return nil, fmt.Errorf("mapper: cloning handle: %v: %w", err, status.NoResources)
	}
	if err := m.backend.Register(clone); err != nil {
		m.logger.Error("buffer registration failed", "handle", clone, "error", err)
		clone.Close()
		return nil, fmt.Errorf("mapper: registering buffer: %v: %w", err, status.NoResources)
	}
	return clone, nil
}

// Free unregisters an imported handle and releases its descriptors.
// If the backend refuses to unregister, nothing is released: the
// backend may still consider the buffer live, and closing
// descriptors under it trades a bounded leak for a use-after-free.
func (m *Mapper) Free(h *handle.Handle) error {
	if h == nil {
		return fmt.Errorf("mapper: free of nil handle: %w", status.BadBuffer)
	}
	if err := m.backend.Unregister(h); err != nil {
		m.logger.Error("buffer unregistration failed", "handle", h, "error", err)
		return fmt.Errorf("mapper: unregistering buffer: %v: %w", err, status.Unsupported)
	}
	if err := h.Close(); err != nil {
		return fmt.Errorf("mapper: releasing handle: %w", err)
	}
	return nil
}
