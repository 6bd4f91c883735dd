// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package usage defines the buffer usage bitmask shared by the
// descriptor encoder, the mapper, and the allocator. A usage value
// declares the producer and consumer access patterns a buffer must
// support; the allocator picks placement and the mapper picks cache
// behavior from it.
package usage

// Usage is a bitmask of producer and consumer capability flags.
type Usage uint64

// CPU access flags occupy the low byte as two 4-bit enumerations:
// bits 0-3 encode read frequency, bits 4-7 encode write frequency.
const (
	CPUReadMask   Usage = 0xf
	CPUReadNever  Usage = 0
	CPUReadRarely Usage = 2
	CPUReadOften  Usage = 3

	CPUWriteMask   Usage = 0xf << 4
	CPUWriteNever  Usage = 0
	CPUWriteRarely Usage = 2 << 4
	CPUWriteOften  Usage = 3 << 4
)

const (
	GPUTexture      Usage = 1 << 8
	GPURenderTarget Usage = 1 << 9

	ComposerOverlay      Usage = 1 << 11
	ComposerClientTarget Usage = 1 << 12

	// Protected marks content that must never be CPU-readable.
	Protected Usage = 1 << 14

	ComposerCursor Usage = 1 << 15

	VideoEncoder Usage = 1 << 16
	CameraOutput Usage = 1 << 17
	CameraInput  Usage = 1 << 18

	Renderscript Usage = 1 << 20

	VideoDecoder     Usage = 1 << 22
	SensorDirectData Usage = 1 << 23
	GPUDataBuffer    Usage = 1 << 24

	// Vendor-reserved ranges. Bits here are opaque to bufmap and pass
	// through to the backend untouched.
	VendorMask   Usage = 0xf << 28
	VendorMaskHi Usage = 0xffff << 48
)

// validMask is the union of every usage bit this version knows about.
var validMask = CPUReadMask | CPUWriteMask | GPUTexture |
	GPURenderTarget | ComposerOverlay | ComposerClientTarget |
	Protected | ComposerCursor | VideoEncoder | CameraOutput |
	CameraInput | Renderscript | VideoDecoder | SensorDirectData |
	GPUDataBuffer | VendorMask | VendorMaskHi

// Unknown returns the bits of u outside the known-valid union.
// Unknown bits are advisory, never a rejection: a newer client may
// legitimately carry usage flags this version has no name for, and
// the backend is the authority on whether it can honor them. Callers
// log a warning when the result is nonzero and pass the full mask
// through unchanged.
func Unknown(u Usage) Usage {
	return u &^ validMask
}
