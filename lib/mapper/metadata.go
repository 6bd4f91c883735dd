// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mapper

import (
	"fmt"

	"github.com/bureau-foundation/bufmap/lib/descriptor"
	"github.com/bureau-foundation/bufmap/lib/handle"
	"github.com/bureau-foundation/bufmap/lib/metadata"
	"github.com/bureau-foundation/bufmap/lib/status"
)

// The metadata surface distinguishes two kinds of "nothing here":
// Unsupported means the capability is absent, while a nil error with
// an empty result means the capability is present but yields nothing.
// List/dump operations use the latter — a backend that can enumerate
// its metadata and finds none is declaring a fact, not failing.

// BufferDump is one buffer's metadata, as produced by DumpBuffer.
type BufferDump struct {
	Metadata []TypeValue `cbor:"metadata,omitempty"`
}

// TypeValue pairs a metadata type with its encoded value.
type TypeValue struct {
	Type  metadata.Type `cbor:"type"`
	Value []byte        `cbor:"value,omitempty"`
}

// IsSupported reports whether a well-formed descriptor is
// allocatable by this backend. The current backends allocate any
// request the descriptor encoder accepts, so the answer is always
// true; the operation exists for backends with format or size
// restrictions the encoder cannot see.
func (m *Mapper) IsSupported(info descriptor.Info) (bool, error) {
	if !m.profile.Metadata {
		return false, fmt.Errorf("mapper: metadata surface not in profile: %w", status.Unsupported)
	}
	_ = info
	return true, nil
}

// Get returns the encoded value of one metadata type for an imported
// buffer. Only the standard dataspace type is implemented, and the
// backend tracks no per-buffer dataspace, so it always reports
// Unknown. Every other type answers Unsupported with an empty value.
func (m *Mapper) Get(h *handle.Handle, t metadata.Type) ([]byte, error) {
	if h == nil {
		return nil, fmt.Errorf("mapper: metadata get on nil handle: %w", status.BadBuffer)
	}
	if !m.profile.Metadata {
		return nil, fmt.Errorf("mapper: metadata surface not in profile: %w", status.Unsupported)
	}
	if t.IsStandard() && t.ID == metadata.Dataspace {
		return metadata.EncodeDataspace(metadata.DataspaceUnknown)
	}
	return nil, fmt.Errorf("mapper: metadata type %s not implemented: %w", t, status.Unsupported)
}

// Set writes one metadata value on an imported buffer. No metadata
// is writable in the current backends, so a non-nil handle always
// answers Unsupported.
func (m *Mapper) Set(h *handle.Handle, t metadata.Type, value []byte) error {
	if h == nil {
		return fmt.Errorf("mapper: metadata set on nil handle: %w", status.BadBuffer)
	}
	if !m.profile.Metadata {
		return fmt.Errorf("mapper: metadata surface not in profile: %w", status.Unsupported)
	}
	return fmt.Errorf("mapper: metadata type %s is not writable: %w", t, status.Unsupported)
}

// GetFromDescriptorInfo answers a metadata query against a request
// that has not been allocated yet. Nothing is derivable before
// allocation in this backend; the empty result with a nil error
// declares the capability present but yielding nothing.
func (m *Mapper) GetFromDescriptorInfo(info descriptor.Info, t metadata.Type) ([]byte, error) {
	if !m.profile.Metadata {
		return nil, fmt.Errorf("mapper: metadata surface not in profile: %w", status.Unsupported)
	}
	_, _ = info, t
	return nil, nil
}

// ListSupportedTypes enumerates the metadata types this backend
// implements. The list is empty — the dataspace shim in Get is a
// compatibility answer, not an advertised capability.
func (m *Mapper) ListSupportedTypes() ([]metadata.TypeDescription, error) {
	if !m.profile.Metadata {
		return nil, fmt.Errorf("mapper: metadata surface not in profile: %w", status.Unsupported)
	}
	return nil, nil
}

// DumpBuffer collects the readable metadata of one imported buffer.
// Empty for the same reason ListSupportedTypes is.
func (m *Mapper) DumpBuffer(h *handle.Handle) (BufferDump, error) {
	if !m.profile.Metadata {
		return BufferDump{}, fmt.Errorf("mapper: metadata surface not in profile: %w", status.Unsupported)
	}
	_ = h
	return BufferDump{}, nil
}

// DumpBuffers collects the readable metadata of every imported
// buffer. The mapper keeps no buffer table of its own, so the answer
// is empty.
func (m *Mapper) DumpBuffers() ([]BufferDump, error) {
	if !m.profile.Metadata {
		return nil, fmt.Errorf("mapper: metadata surface not in profile: %w", status.Unsupported)
	}
	return nil, nil
}

// GetReservedRegion returns the client-reserved region of an imported
// buffer. The current backends reserve no region, so the result is
// empty with a nil error. Only available when the profile has
// ReservedRegion.
func (m *Mapper) GetReservedRegion(h *handle.Handle) ([]byte, error) {
	if h == nil {
		return nil, fmt.Errorf("mapper: reserved region of nil handle: %w", status.BadBuffer)
	}
	if !m.profile.ReservedRegion {
		return nil, fmt.Errorf("mapper: reserved region not in profile: %w", status.Unsupported)
	}
	return nil, nil
}
