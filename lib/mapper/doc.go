// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mapper implements the buffer mapper core: descriptor
// creation, the import/free lifecycle of cross-process buffer
// handles, fence-gated lock/unlock of buffer memory, and the
// capability-versioned metadata surface.
//
// A Mapper is an in-process object bound to one [Backend] (the
// allocator driver) and one [Profile] (the capability set of the
// backend generation it fronts). Every operation executes
// synchronously on the calling goroutine and resolves to exactly one
// status code; there is no internal queue, no retry, and no lock over
// shared state — per-handle thread safety belongs to the backend.
//
// The single blocking point is the acquire-fence wait inside
// [Mapper.Lock] and [Mapper.LockPlanar]: the caller suspends until
// the producer's fence signals, unbounded, because producers hand out
// only short-lived fences.
//
// Ownership transfers at two points. Import clones the incoming
// handle, so the caller's original and the registered handle have
// independent lifetimes; a failed registration closes the clone
// before returning, leaking nothing. Fence extraction duplicates the
// caller's descriptor, so the caller keeps what it passed in.
package mapper
