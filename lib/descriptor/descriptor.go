// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package descriptor turns a buffer allocation request into the
// opaque blob the allocator consumes. The blob is versioned,
// deterministic CBOR: the same request always encodes to the same
// bytes, and the allocator rejects blobs minted by an incompatible
// encoder before trusting any field.
package descriptor

import (
	"fmt"

	"github.com/bureau-foundation/bufmap/lib/codec"
	"github.com/bureau-foundation/bufmap/lib/status"
	"github.com/bureau-foundation/bufmap/lib/usage"
)

// Format is the pixel format of a requested buffer. The zero value
// is undefined and never allocatable.
type Format uint32

const (
	FormatUndefined Format = 0
	FormatRGBA8888  Format = 1
	FormatRGBX8888  Format = 2
	FormatRGB888    Format = 3
	FormatRGB565    Format = 4
	FormatBGRA8888  Format = 5

	// FormatYCbCr420 is the planar format served by LockPlanar: a
	// full-resolution Y plane followed by interleaved half-resolution
	// Cb/Cr.
	FormatYCbCr420 Format = 0x23
)

// Info is a buffer allocation request. Immutable once built; the
// encoder consumes it by value.
type Info struct {
	Width      uint32      `cbor:"width"`
	Height     uint32      `cbor:"height"`
	LayerCount uint32      `cbor:"layer_count"`
	Format     Format      `cbor:"format"`
	Usage      usage.Usage `cbor:"usage"`
}

// Descriptor is the opaque serialized form of an Info. Produced only
// by Encode, consumed only by the paired allocator.
type Descriptor []byte

// blobMagic and blobVersion tag every descriptor so a decoder can
// refuse blobs from a different encoder generation.
const (
	blobMagic   = 0x62756664 // "bufd"
	blobVersion = 1
)

type blob struct {
	Magic   uint32 `cbor:"magic"`
	Version uint32 `cbor:"version"`
	Info    Info   `cbor:"info"`
}

// Validate checks the request shape. Order matters and is part of the
// contract: zero dimensions or layer count fail with BadValue before
// the layer-count capability check, so a request that is malformed
// and unsupported reports malformed.
func Validate(info Info) error {
	if info.Width == 0 || info.Height == 0 || info.LayerCount == 0 {
		return fmt.Errorf("descriptor: zero width, height, or layer count: %w", status.BadValue)
	}
	if info.LayerCount != 1 {
		return fmt.Errorf("descriptor: layer count %d not supported, want 1: %w",
			info.LayerCount, status.Unsupported)
	}
	if info.Format == FormatUndefined {
		return fmt.Errorf("descriptor: undefined pixel format: %w", status.BadValue)
	}
	return nil
}

// Encode validates info and serializes it into an opaque descriptor.
// On error the returned descriptor is always empty — no partial blob
// escapes. Encoding failure itself (a request the blob format cannot
// express) maps to BadValue.
func Encode(info Info) (Descriptor, error) {
	if err := Validate(info); err != nil {
		return nil, err
	}
	data, err := codec.Marshal(blob{
		Magic:   blobMagic,
		Version: blobVersion,
		Info:    info,
	})
	if err != nil {
		return nil, fmt.Errorf("descriptor: encoding request: %v: %w", err, status.BadValue)
	}
	return Descriptor(data), nil
}

// Decode recovers the request from an opaque descriptor. Blobs that
// fail to parse, carry the wrong magic, or come from a different
// encoder version fail with BadValue. The recovered Info is
// re-validated so a decoder never hands out a request Encode would
// have refused.
func Decode(d Descriptor) (Info, error) {
	var b blob
	if err := codec.Unmarshal([]byte(d), &b); err != nil {
		return Info{}, fmt.Errorf("descriptor: parsing blob: %v: %w", err, status.BadValue)
	}
	if b.Magic != blobMagic {
		return Info{}, fmt.Errorf("descriptor: bad magic %#x: %w", b.Magic, status.BadValue)
	}
	if b.Version != blobVersion {
		return Info{}, fmt.Errorf("descriptor: unknown version %d: %w", b.Version, status.BadValue)
	}
	if err := Validate(b.Info); err != nil {
		return Info{}, err
	}
	return b.Info, nil
}
