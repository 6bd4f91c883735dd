// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mapper

import (
	"github.com/bureau-foundation/bufmap/lib/handle"
	"github.com/bureau-foundation/bufmap/lib/usage"
)

// Region bounds the portion of a buffer to be mapped.
type Region struct {
	Left   int32 `cbor:"left"`
	Top    int32 `cbor:"top"`
	Width  int32 `cbor:"width"`
	Height int32 `cbor:"height"`
}

// PlanarLayout describes a mapped YCbCr buffer: per-plane base
// slices, row strides in bytes, and the byte distance between
// successive chroma samples of the same channel.
type PlanarLayout struct {
	Y  []byte
	Cb []byte
	Cr []byte

	YStride    int32
	CStride    int32
	ChromaStep int32
}

// Backend is the allocator driver the mapper fronts. The mapper
// never interprets backend errors beyond success/failure; whatever
// detail a backend reports is wrapped verbatim into the status the
// caller sees. Backends own the thread safety of their handle table.
type Backend interface {
	// Register makes an imported handle known to the backend. The
	// mapper owns the handle's descriptors; the backend may retain
	// state keyed on them until Unregister.
	Register(h *handle.Handle) error

	// Unregister drops backend state for a registered handle. After a
	// failed Unregister the mapper treats the buffer as still live
	// and releases nothing.
	Unregister(h *handle.Handle) error

	// Map returns CPU-visible bytes for the region of a registered
	// buffer, valid until Unmap.
	Map(h *handle.Handle, u usage.Usage, r Region) ([]byte, error)

	// MapPlanar is Map for planar YCbCr buffers.
	MapPlanar(h *handle.Handle, u usage.Usage, r Region) (PlanarLayout, error)

	// Unmap invalidates the mapping established by Map or MapPlanar,
	// flushing CPU writes so they are visible to other clients.
	Unmap(h *handle.Handle) error
}

// Profile declares which optional capabilities the fronted backend
// generation implements. Operations behind an unset flag answer
// Unsupported instead of reaching the backend. One core parameterized
// by a Profile replaces the per-version mapper implementations.
type Profile struct {
	// PlanarLock enables LockPlanar.
	PlanarLock bool

	// LockedFlush enables FlushLocked and Reread, the locked-buffer
	// maintenance operations.
	LockedFlush bool

	// Metadata enables the get/set/list metadata surface and
	// IsSupported.
	Metadata bool

	// ReservedRegion enables GetReservedRegion.
	ReservedRegion bool
}

// LegacyProfile is the capability set of first-generation backends:
// planar CPU access but no metadata surface.
func LegacyProfile() Profile {
	return Profile{PlanarLock: true}
}

// MetadataProfile is the capability set of current backends: the
// metadata surface and locked-buffer maintenance, with planar access
// retired in favor of per-plane metadata.
func MetadataProfile() Profile {
	return Profile{LockedFlush: true, Metadata: true, ReservedRegion: true}
}
