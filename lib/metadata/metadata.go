// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metadata defines the typed keys and encoded values of the
// buffer metadata surface. A metadata type is a (vendor, id) pair;
// the standard vendor namespace holds the ids every backend agrees
// on, and vendors extend the surface under their own namespace.
// Values are CBOR-encoded so they stay opaque to transports.
package metadata

import (
	"fmt"

	"github.com/bureau-foundation/bufmap/lib/codec"
	"github.com/bureau-foundation/bufmap/lib/status"
)

// StandardVendor is the namespace of metadata types defined by bufmap
// itself rather than a backend vendor.
const StandardVendor = "bufmap.standard"

// Type identifies a buffer property. Vendor scopes the ID: ids are
// only meaningful within their vendor namespace.
type Type struct {
	Vendor string `cbor:"vendor"`
	ID     int64  `cbor:"id"`
}

// Standard metadata ids. The set mirrors the descriptor fields plus
// the interpretation properties a composer needs.
const (
	BufferID       int64 = 1
	Name           int64 = 2
	Width          int64 = 3
	Height         int64 = 4
	LayerCount     int64 = 5
	PixelFormat    int64 = 6
	Usage          int64 = 7
	AllocationSize int64 = 8
	Dataspace      int64 = 9
	BlendMode      int64 = 10
)

// IsStandard reports whether t lives in the standard namespace.
func (t Type) IsStandard() bool {
	return t.Vendor == StandardVendor
}

func (t Type) String() string {
	return fmt.Sprintf("%s/%d", t.Vendor, t.ID)
}

// TypeDescription describes one supported metadata type for
// capability listing.
type TypeDescription struct {
	Type        Type   `cbor:"type"`
	Description string `cbor:"description,omitempty"`
	Gettable    bool   `cbor:"gettable"`
	Settable    bool   `cbor:"settable"`
}

// DataspaceValue names the color/encoding interpretation of buffer
// contents.
type DataspaceValue uint32

// DataspaceUnknown is the only dataspace the current backends report:
// contents have no declared interpretation.
const DataspaceUnknown DataspaceValue = 0

// EncodeDataspace serializes a dataspace for the metadata surface.
func EncodeDataspace(d DataspaceValue) ([]byte, error) {
	return codec.Marshal(uint32(d))
}

// DecodeDataspace is the inverse of EncodeDataspace. Malformed bytes
// fail with [status.BadValue].
func DecodeDataspace(data []byte) (DataspaceValue, error) {
	var v uint32
	if err := codec.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("metadata: decoding dataspace: %v: %w", err, status.BadValue)
	}
	return DataspaceValue(v), nil
}
