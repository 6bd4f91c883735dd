// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fence implements file-descriptor-backed synchronization
// fences. A fence signals completion of a pending GPU-side read or
// write: the producer hands the consumer a pollable descriptor, and
// the consumer blocks until it becomes readable before touching the
// buffer.
//
// On the wire a fence is a handle carrying zero or one descriptors.
// Zero descriptors means "already signaled" and is represented by an
// invalid descriptor, not an error — the cheap common case where no
// work is outstanding. [FromHandle] enforces the shape and duplicates
// the descriptor so the caller's original and the extracted fence
// have independent lifetimes.
//
// [Fence.Wait] is deliberately unbounded, matching the producer/
// consumer contract: callers pass short-lived, soon-to-signal fences.
// [Fence.WaitTimeout] is the opt-in bounded variant for callers that
// cannot tolerate a stall.
package fence
