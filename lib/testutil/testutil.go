// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for bufmap packages.
//
// [OpenFDs] counts the process's open file descriptors via
// /proc/self/fd. The import/free and fence contracts promise fd-count
// invariance on their failure paths, and counting descriptors around
// an operation is the only way to verify that promise from a test.
//
// [SocketDir] creates a temporary directory in /tmp suitable for Unix
// domain sockets. Unix domain sockets have a 108-byte path limit
// (sun_path in sockaddr_un), and build systems can nest TEST_TMPDIR
// deeply enough to exceed it, making t.TempDir() unsuitable for
// socket files.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil

import (
	"os"
	"testing"
)

// OpenFDs returns the number of file descriptors the process has
// open. The descriptor used to read /proc/self/fd is excluded, so
// two calls with no fd activity in between return the same number.
func OpenFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Fatalf("reading /proc/self/fd: %v", err)
	}
	return len(entries) - 1
}

// SocketDir creates a short-named temporary directory directly in
// /tmp, removed when the test completes.
func SocketDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "bufmap-test-*")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return directory
}
