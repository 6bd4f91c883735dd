// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package allocator implements the buffer allocator service and its
// client. The allocator is the only daemon in bufmap: mapping happens
// in-process via lib/mapper, but allocation is centralized so one
// process owns placement policy and every client receives handles it
// can import independently.
//
// The protocol is one request-response cycle per connection on a Unix
// socket: the client sends an opaque descriptor blob and a count, the
// service decodes and re-validates the blob, allocates the batch
// all-or-nothing, and returns the handles — words in the CBOR body,
// descriptors in an ancillary SCM_RIGHTS message (see lib/wire).
//
// A batch is uniform: every buffer has the same geometry and the same
// stride. A backend that reports divergent strides within one batch
// is broken, and the whole batch is rolled back rather than handing
// the client buffers it cannot index interchangeably.
package allocator
