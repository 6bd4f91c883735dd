// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memback

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/bufmap/lib/descriptor"
	"github.com/bureau-foundation/bufmap/lib/handle"
)

// wordMagic tags handles minted by this backend. Register refuses
// handles without it — a handle from a different backend has words
// this code must not interpret.
const wordMagic = 0x6d627566 // "mbuf"

// rowAlign is the byte alignment of every row. 64 matches the cache
// line and covers the texture-upload alignment of the GPUs this
// backend stands in for.
const rowAlign = 64

// Handle word layout. One fd (the memfd), six words.
const (
	wordMagicIdx = iota
	wordWidth
	wordHeight
	wordFormat
	wordStride
	wordSize
	wordCount
)

type geometry struct {
	width  uint32
	height uint32
	format descriptor.Format
	stride uint32 // bytes per row
	size   uint32 // total allocation
}

func decodeGeometry(h *handle.Handle) (geometry, error) {
	if len(h.FDs) != 1 || len(h.Words) != wordCount {
		return geometry{}, fmt.Errorf("memback: handle shape %s not recognized", h)
	}
	if h.Words[wordMagicIdx] != wordMagic {
		return geometry{}, fmt.Errorf("memback: handle minted by another backend (magic %#x)",
			h.Words[wordMagicIdx])
	}
	return geometry{
		width:  h.Words[wordWidth],
		height: h.Words[wordHeight],
		format: descriptor.Format(h.Words[wordFormat]),
		stride: h.Words[wordStride],
		size:   h.Words[wordSize],
	}, nil
}

// bytesPerPixel returns the packed pixel size, or 0 for formats laid
// out per-plane rather than per-pixel.
func bytesPerPixel(f descriptor.Format) uint32 {
	switch f {
	case descriptor.FormatRGBA8888, descriptor.FormatRGBX8888, descriptor.FormatBGRA8888:
		return 4
	case descriptor.FormatRGB888:
		return 3
	case descriptor.FormatRGB565:
		return 2
	}
	return 0
}

func alignUp(n, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}

// layoutFor computes stride and total size for a request. Planar
// YCbCr420 is a full-resolution Y plane followed by interleaved
// half-resolution Cb/Cr rows (semi-planar).
func layoutFor(info descriptor.Info) (stride, size uint32, err error) {
	switch info.Format {
	case descriptor.FormatYCbCr420:
		if info.Width%2 != 0 || info.Height%2 != 0 {
			return 0, 0, fmt.Errorf("memback: planar format requires even dimensions, got %dx%d",
				info.Width, info.Height)
		}
		stride = alignUp(info.Width, rowAlign)
		size = stride*info.Height + stride*info.Height/2
		return stride, size, nil
	default:
		bpp := bytesPerPixel(info.Format)
		if bpp == 0 {
			return 0, 0, fmt.Errorf("memback: format %d not supported", info.Format)
		}
		stride = alignUp(info.Width*bpp, rowAlign)
		size = stride * info.Height
		return stride, size, nil
	}
}

// Allocate creates one buffer for a validated request and returns its
// handle plus the pixel stride. The memfd is sealed against shrinking
// so an imported handle can trust the size word. The caller owns the
// handle.
func (d *Device) Allocate(info descriptor.Info) (*handle.Handle, uint32, error) {
	stride, size, err := layoutFor(info)
	if err != nil {
		return nil, 0, err
	}
	if d.MaxBytes != 0 && size > d.MaxBytes {
		return nil, 0, fmt.Errorf("memback: %d-byte buffer exceeds the %d-byte cap", size, d.MaxBytes)
	}
	fd, err := unix.MemfdCreate("bufmap-buffer", unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, 0, fmt.Errorf("memback: creating memfd: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, 0, fmt.Errorf("memback: sizing memfd to %d: %w", size, err)
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, unix.F_SEAL_SHRINK); err != nil {
		unix.Close(fd)
		return nil, 0, fmt.Errorf("memback: sealing memfd: %w", err)
	}

	words := make([]uint32, wordCount)
	words[wordMagicIdx] = wordMagic
	words[wordWidth] = info.Width
	words[wordHeight] = info.Height
	words[wordFormat] = uint32(info.Format)
	words[wordStride] = stride
	words[wordSize] = size

	// Stride is reported in pixels for packed formats, matching what
	// clients index with; planar strides stay in bytes per plane row.
	pixelStride := stride
	if bpp := bytesPerPixel(info.Format); bpp != 0 {
		pixelStride = stride / bpp
	}
	return handle.New([]int{fd}, words), pixelStride, nil
}
