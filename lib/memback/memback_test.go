// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memback

import (
	"io"
	"log/slog"
	"testing"

	"github.com/bureau-foundation/bufmap/lib/descriptor"
	"github.com/bureau-foundation/bufmap/lib/handle"
	"github.com/bureau-foundation/bufmap/lib/mapper"
	"github.com/bureau-foundation/bufmap/lib/usage"
)

func openDevice(t *testing.T) *Device {
	t.Helper()
	d, err := Open(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func rgbaInfo(w, h uint32) descriptor.Info {
	return descriptor.Info{
		Width: w, Height: h, LayerCount: 1,
		Format: descriptor.FormatRGBA8888,
		Usage:  usage.CPUReadOften | usage.CPUWriteOften,
	}
}

func TestOpenCloseTwice(t *testing.T) {
	d, err := Open(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.Close(); err == nil {
		t.Error("second Close succeeded, want error")
	}
}

func TestAllocateGeometry(t *testing.T) {
	d := openDevice(t)

	h, pixelStride, err := d.Allocate(rgbaInfo(100, 50))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer h.Close()

	// 100 pixels * 4 bytes = 400 bytes, aligned up to 448.
	if h.Words[wordStride] != 448 {
		t.Errorf("byte stride = %d, want 448", h.Words[wordStride])
	}
	if pixelStride != 112 {
		t.Errorf("pixel stride = %d, want 112", pixelStride)
	}
	if h.Words[wordSize] != 448*50 {
		t.Errorf("size = %d, want %d", h.Words[wordSize], 448*50)
	}
	if len(h.FDs) != 1 {
		t.Errorf("handle carries %d fds, want 1", len(h.FDs))
	}
}

func TestAllocateMaxBytes(t *testing.T) {
	d := openDevice(t)
	d.MaxBytes = 1024

	if _, _, err := d.Allocate(rgbaInfo(100, 100)); err == nil {
		t.Error("allocation above MaxBytes succeeded")
	}
}

func TestAllocateUnsupportedFormat(t *testing.T) {
	d := openDevice(t)
	info := rgbaInfo(8, 8)
	info.Format = descriptor.Format(0x77)
	if _, _, err := d.Allocate(info); err == nil {
		t.Error("allocation with unknown format succeeded")
	}
}

func TestRegisterRejectsForeignHandle(t *testing.T) {
	d := openDevice(t)
	h, _, err := d.Allocate(rgbaInfo(8, 8))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer h.Close()

	foreign := handle.New(h.FDs, []uint32{1, 2, 3, 4, 5, 6})
	if err := d.Register(foreign); err == nil {
		t.Error("Register accepted a handle minted elsewhere")
	}
}

func TestWritesVisibleAcrossClones(t *testing.T) {
	d := openDevice(t)
	producer, _, err := d.Allocate(rgbaInfo(16, 16))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer producer.Close()

	consumer, err := producer.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	defer consumer.Close()

	for _, h := range []*handle.Handle{producer, consumer} {
		if err := d.Register(h); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	wData, err := d.Map(producer, usage.CPUWriteOften, mapper.Region{})
	if err != nil {
		t.Fatalf("Map producer: %v", err)
	}
	copy(wData, []byte("written through clone A"))
	if err := d.Unmap(producer); err != nil {
		t.Fatalf("Unmap producer: %v", err)
	}

	rData, err := d.Map(consumer, usage.CPUReadOften, mapper.Region{})
	if err != nil {
		t.Fatalf("Map consumer: %v", err)
	}
	if string(rData[:23]) != "written through clone A" {
		t.Errorf("consumer read %q", rData[:23])
	}
	if err := d.Unmap(consumer); err != nil {
		t.Fatalf("Unmap consumer: %v", err)
	}

	for _, h := range []*handle.Handle{producer, consumer} {
		if err := d.Unregister(h); err != nil {
			t.Fatalf("Unregister: %v", err)
		}
	}
}

func TestMapUnregistered(t *testing.T) {
	d := openDevice(t)
	h, _, err := d.Allocate(rgbaInfo(8, 8))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer h.Close()

	if _, err := d.Map(h, usage.CPUReadOften, mapper.Region{}); err == nil {
		t.Error("Map of unregistered handle succeeded")
	}
}

func TestDoubleMap(t *testing.T) {
	d := openDevice(t)
	h, _, err := d.Allocate(rgbaInfo(8, 8))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer h.Close()
	if err := d.Register(h); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := d.Map(h, usage.CPUReadOften, mapper.Region{}); err != nil {
		t.Fatalf("first Map: %v", err)
	}
	if _, err := d.Map(h, usage.CPUReadOften, mapper.Region{}); err == nil {
		t.Error("second Map without Unmap succeeded")
	}
	if err := d.Unmap(h); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if err := d.Unmap(h); err == nil {
		t.Error("Unmap of unmapped buffer succeeded")
	}
	if err := d.Unregister(h); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
}

func TestRegionBounds(t *testing.T) {
	d := openDevice(t)
	h, _, err := d.Allocate(rgbaInfo(16, 16))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer h.Close()
	if err := d.Register(h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer d.Unregister(h)

	cases := []mapper.Region{
		{Left: 0, Top: 0, Width: 17, Height: 1},
		{Left: 8, Top: 0, Width: 9, Height: 1},
		{Left: -1, Top: 0, Width: 4, Height: 4},
		{Left: 0, Top: 0, Width: 0, Height: 4},
	}
	for _, r := range cases {
		if _, err := d.Map(h, usage.CPUReadOften, r); err == nil {
			d.Unmap(h)
			t.Errorf("Map with region %+v succeeded", r)
		}
	}

	// An in-bounds region maps.
	if _, err := d.Map(h, usage.CPUReadOften, mapper.Region{Left: 4, Top: 4, Width: 8, Height: 8}); err != nil {
		t.Fatalf("Map with valid region: %v", err)
	}
	if err := d.Unmap(h); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
}

func TestPlanarLayout(t *testing.T) {
	d := openDevice(t)
	info := descriptor.Info{
		Width: 64, Height: 64, LayerCount: 1,
		Format: descriptor.FormatYCbCr420,
		Usage:  usage.CPUReadOften | usage.CPUWriteOften,
	}
	h, stride, err := d.Allocate(info)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer h.Close()
	if stride != 64 {
		t.Errorf("planar stride = %d, want 64", stride)
	}
	if err := d.Register(h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer d.Unregister(h)

	layout, err := d.MapPlanar(h, usage.CPUWriteOften, mapper.Region{})
	if err != nil {
		t.Fatalf("MapPlanar: %v", err)
	}
	if len(layout.Y) != 64*64 {
		t.Errorf("Y plane = %d bytes, want %d", len(layout.Y), 64*64)
	}
	if layout.YStride != 64 || layout.CStride != 64 || layout.ChromaStep != 2 {
		t.Errorf("layout strides = %d/%d/%d, want 64/64/2",
			layout.YStride, layout.CStride, layout.ChromaStep)
	}

	// Cb and Cr interleave: Cr starts one byte after Cb.
	layout.Cb[0] = 0x80
	layout.Cr[0] = 0x40
	if layout.Cb[1] != 0x40 {
		t.Error("Cr[0] is not Cb[1]: planes not interleaved")
	}

	if err := d.Unmap(h); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
}

func TestPlanarRejectsPackedFormat(t *testing.T) {
	d := openDevice(t)
	h, _, err := d.Allocate(rgbaInfo(8, 8))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	defer h.Close()
	if err := d.Register(h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer d.Unregister(h)

	if _, err := d.MapPlanar(h, usage.CPUReadOften, mapper.Region{}); err == nil {
		t.Error("MapPlanar on a packed RGBA buffer succeeded")
	}
}

func TestPlanarOddDimensions(t *testing.T) {
	d := openDevice(t)
	info := descriptor.Info{
		Width: 63, Height: 64, LayerCount: 1,
		Format: descriptor.FormatYCbCr420,
	}
	if _, _, err := d.Allocate(info); err == nil {
		t.Error("planar allocation with odd width succeeded")
	}
}
