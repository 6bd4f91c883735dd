// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"github.com/bureau-foundation/bufmap/lib/codec"
	"github.com/bureau-foundation/bufmap/lib/handle"
	"github.com/bureau-foundation/bufmap/lib/status"
)

// ActionAllocate is the only action the allocator serves. The
// envelope carries an action field anyway so the protocol can grow
// without breaking old clients.
const ActionAllocate = "allocate"

// AllocateRequest asks the allocator for count identical buffers
// described by an opaque descriptor blob.
type AllocateRequest struct {
	Action     string `cbor:"action"`
	Descriptor []byte `cbor:"descriptor"`
	Count      int    `cbor:"count"`
}

// Handle is the in-body half of a buffer handle: the integer words
// plus the number of descriptors to claim from the ancillary message.
type Handle struct {
	FDCount int      `cbor:"fd_count"`
	Words   []uint32 `cbor:"words,omitempty"`
}

// AllocateResult is the success payload: the uniform pixel stride of
// the batch and one wire handle per buffer, in ancillary-data order.
type AllocateResult struct {
	Stride  uint32   `cbor:"stride"`
	Buffers []Handle `cbor:"buffers"`
}

// Response is the envelope for every allocator reply. Code carries
// the mapper status taxonomy so clients can dispatch on it without
// parsing the message text.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Code  status.Code      `cbor:"code,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// ToWire strips a handle to its wire form.
func ToWire(h *handle.Handle) Handle {
	return Handle{FDCount: len(h.FDs), Words: h.Words}
}
