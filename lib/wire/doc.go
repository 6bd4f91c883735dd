// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the allocator socket protocol: CBOR message
// types for the request/response envelope, and the out-of-band
// transfer of buffer handle descriptors over SCM_RIGHTS.
//
// A handle on the wire splits in two: its integer words travel in the
// CBOR body as a [Handle] (which also records how many descriptors to
// expect), and the descriptors themselves travel in a single ancillary
// message following the response. [SendHandles] and [RecvHandles] are
// the two ends of that transfer. The kernel duplicates descriptors
// into the receiving process during sendmsg, so the sender still owns
// (and must close) its copies after a send.
//
// Both the allocator service and its client import this package so
// the wire types are defined once rather than mirrored.
package wire
