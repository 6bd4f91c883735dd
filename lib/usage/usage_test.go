// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package usage

import "testing"

func TestUnknownOnKnownBits(t *testing.T) {
	known := CPUReadOften | CPUWriteOften | GPUTexture | GPURenderTarget |
		ComposerOverlay | ComposerClientTarget | Protected | ComposerCursor |
		VideoEncoder | VideoDecoder | CameraInput | CameraOutput |
		SensorDirectData | GPUDataBuffer | Renderscript
	if got := Unknown(known); got != 0 {
		t.Errorf("Unknown(%#x) = %#x, want 0", uint64(known), uint64(got))
	}
}

func TestUnknownVendorBitsAreKnown(t *testing.T) {
	// Both vendor-reserved ranges are inside the valid union: vendors
	// may use them without tripping the advisory warning.
	if got := Unknown(VendorMask | VendorMaskHi); got != 0 {
		t.Errorf("vendor ranges reported unknown: %#x", uint64(got))
	}
}

func TestUnknownFlagsUnassignedBits(t *testing.T) {
	// Bit 25 is unassigned in this version.
	unknown := Usage(1 << 25)
	if got := Unknown(unknown | CPUReadOften); got != unknown {
		t.Errorf("Unknown = %#x, want %#x", uint64(got), uint64(unknown))
	}
}

func TestUnknownPreservesNothing(t *testing.T) {
	// Unknown never rejects: it only reports. The caller keeps the
	// full mask, so Unknown(u) must always be a subset of u.
	u := Usage(0xdeadbeefcafe)
	if got := Unknown(u); got&^u != 0 {
		t.Errorf("Unknown(%#x) = %#x contains bits not in the input", uint64(u), uint64(got))
	}
}
