// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package status

import "errors"

// Code is a mapper/allocator result code. The zero value is None
// (success). Code implements error so operations can return a Code
// directly where no additional context is useful, and wrap it with
// fmt.Errorf("...: %w", code) where it is.
type Code uint32

const (
	// None is success. Never returned as an error value — successful
	// operations return a nil error and None only appears on the wire.
	None Code = 0

	// BadValue reports a malformed request: a descriptor with zero
	// dimensions or an undefined format, or a fence handle with an
	// impossible shape.
	BadValue Code = 1

	// BadBuffer reports an operation on a nil or empty buffer handle.
	BadBuffer Code = 2

	// NoResources reports resource exhaustion while duplicating file
	// descriptors or registering a buffer with the backend.
	NoResources Code = 3

	// Unsupported reports a well-formed request for a capability this
	// backend or profile does not implement.
	Unsupported Code = 4
)

func (c Code) String() string {
	switch c {
	case None:
		return "NONE"
	case BadValue:
		return "BAD_VALUE"
	case BadBuffer:
		return "BAD_BUFFER"
	case NoResources:
		return "NO_RESOURCES"
	case Unsupported:
		return "UNSUPPORTED"
	}
	return "UNKNOWN"
}

func (c Code) Error() string {
	return "status: " + c.String()
}

// Of extracts the Code from err for wire serialization. A nil error
// is None. An error that does not wrap a Code maps to Unsupported,
// the catch-all for failures the protocol cannot express.
func Of(err error) Code {
	if err == nil {
		return None
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Unsupported
}
