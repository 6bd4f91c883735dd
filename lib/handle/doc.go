// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package handle defines the cross-process buffer handle: a set of
// file descriptors plus integer words of backend metadata. Handles
// are the unit of ownership transfer in bufmap — the allocator mints
// them, the wire moves them between processes (fds via SCM_RIGHTS,
// words in the CBOR body), and the mapper clones them on import so
// the caller's original and the registered copy have independent
// lifetimes.
//
// A Handle owns its descriptors: Close releases them, Clone produces
// a duplicate whose descriptors outlive the original. Nothing here
// interprets the words — their meaning belongs to the backend that
// minted the handle.
package handle
