// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package memback is the shared-memory reference backend: buffers are
// anonymous memfds, mapping is mmap, and handles carry the buffer
// geometry as backend-private words. It implements both sides of the
// split — allocation for the allocator service and the
// register/map/unmap primitives behind [mapper.Backend] — the way a
// DRM or GBM backend would, minus the hardware.
//
// The device is an explicit object: [Open] probes that the kernel
// supports sealed memfds and returns a *Device whose Close tears down
// whatever the process still has registered. Nothing here is process
// global; every component that needs the backend holds the *Device it
// was given.
package memback
