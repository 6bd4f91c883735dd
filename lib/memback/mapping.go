// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memback

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/bufmap/lib/descriptor"
	"github.com/bureau-foundation/bufmap/lib/handle"
	"github.com/bureau-foundation/bufmap/lib/mapper"
	"github.com/bureau-foundation/bufmap/lib/usage"
)

var _ mapper.Backend = (*Device)(nil)

// protFor maps usage intent to mmap protection. Reads are always
// granted; writes only when the producer side declares them.
func protFor(u usage.Usage) int {
	prot := unix.PROT_READ
	if u&usage.CPUWriteMask != 0 || u&usage.GPURenderTarget != 0 {
		prot |= unix.PROT_WRITE
	}
	return prot
}

// checkRegion validates the access region against the buffer
// geometry. A zero-sized region is allowed and means "whole buffer" —
// callers that only want a pointer pass one.
func checkRegion(r mapper.Region, geo geometry) error {
	if r == (mapper.Region{}) {
		return nil
	}
	if r.Left < 0 || r.Top < 0 || r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("memback: malformed access region %+v", r)
	}
	if uint32(r.Left)+uint32(r.Width) > geo.width || uint32(r.Top)+uint32(r.Height) > geo.height {
		return fmt.Errorf("memback: access region %+v exceeds %dx%d buffer",
			r, geo.width, geo.height)
	}
	return nil
}

// mapLocked mmaps the buffer behind a registered handle and records
// the mapping. Caller holds d.mu.
func (d *Device) mapLocked(h *handle.Handle, u usage.Usage, r mapper.Region) (*buffer, error) {
	buf, ok := d.registered[h]
	if !ok {
		return nil, fmt.Errorf("memback: handle not registered")
	}
	if buf.mapping != nil {
		return nil, fmt.Errorf("memback: buffer already mapped")
	}
	if err := checkRegion(r, buf.geo); err != nil {
		return nil, err
	}
	data, err := unix.Mmap(h.FDs[0], 0, int(buf.geo.size), protFor(u), unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("memback: mmap of %d bytes: %w", buf.geo.size, err)
	}
	buf.mapping = data
	return buf, nil
}

// Map returns the CPU-visible bytes of a registered buffer. The
// returned slice spans the whole buffer starting at its base — the
// access region bounds what the client may touch, it does not offset
// the mapping.
func (d *Device) Map(h *handle.Handle, u usage.Usage, r mapper.Region) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, err := d.mapLocked(h, u, r)
	if err != nil {
		return nil, err
	}
	return buf.mapping, nil
}

// MapPlanar maps a planar buffer and slices the semi-planar layout
// out of the mapping: full-resolution Y, then interleaved Cb/Cr rows
// at half resolution with a chroma step of 2.
func (d *Device) MapPlanar(h *handle.Handle, u usage.Usage, r mapper.Region) (mapper.PlanarLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.registered[h]
	if !ok {
		return mapper.PlanarLayout{}, fmt.Errorf("memback: handle not registered")
	}
	if buf.geo.format != descriptor.FormatYCbCr420 {
		return mapper.PlanarLayout{}, fmt.Errorf("memback: format %d has no planar layout", buf.geo.format)
	}
	mapped, err := d.mapLocked(h, u, r)
	if err != nil {
		return mapper.PlanarLayout{}, err
	}
	ySize := mapped.geo.stride * mapped.geo.height
	data := mapped.mapping
	return mapper.PlanarLayout{
		Y:          data[:ySize],
		Cb:         data[ySize:],
		Cr:         data[ySize+1:],
		YStride:    int32(mapped.geo.stride),
		CStride:    int32(mapped.geo.stride),
		ChromaStep: 2,
	}, nil
}

// Unmap releases the mapping of a registered buffer. MAP_SHARED
// writes are visible to other mappings of the memfd as soon as they
// happen, so munmap is the only cache maintenance needed.
func (d *Device) Unmap(h *handle.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.registered[h]
	if !ok {
		return fmt.Errorf("memback: handle not registered")
	}
	if buf.mapping == nil {
		return fmt.Errorf("memback: buffer not mapped")
	}
	if err := unix.Munmap(buf.mapping); err != nil {
		return fmt.Errorf("memback: munmap: %w", err)
	}
	buf.mapping = nil
	return nil
}
