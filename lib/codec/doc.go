// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides bufmap's standard CBOR encoding configuration.
//
// Everything bufmap serializes is CBOR: buffer descriptor blobs,
// encoded metadata values, and the allocator socket protocol. This
// package provides the shared encoding and decoding modes so that
// every package encodes identically without duplicating configuration.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// Same logical data always produces identical bytes. This matters for
// descriptor blobs in particular — a descriptor is an opaque value
// that clients may hash or compare byte-wise, so the same request must
// always encode to the same blob.
//
// For buffer-oriented operations (descriptor blobs, metadata values):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (the allocator socket):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
package codec
