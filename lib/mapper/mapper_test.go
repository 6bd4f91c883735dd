// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mapper

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/bufmap/lib/descriptor"
	"github.com/bureau-foundation/bufmap/lib/handle"
	"github.com/bureau-foundation/bufmap/lib/status"
	"github.com/bureau-foundation/bufmap/lib/testutil"
	"github.com/bureau-foundation/bufmap/lib/usage"
)

// fakeBackend records calls and fails on demand.
type fakeBackend struct {
	registerErr   error
	unregisterErr error
	mapErr        error
	unmapErr      error

	registered []*handle.Handle
	calls      int

	lastUsage  usage.Usage
	lastRegion Region
	mapData    []byte
	layout     PlanarLayout
}

func (b *fakeBackend) Register(h *handle.Handle) error {
	b.calls++
	if b.registerErr != nil {
		return b.registerErr
	}
	b.registered = append(b.registered, h)
	return nil
}

func (b *fakeBackend) Unregister(h *handle.Handle) error {
	b.calls++
	return b.unregisterErr
}

func (b *fakeBackend) Map(h *handle.Handle, u usage.Usage, r Region) ([]byte, error) {
	b.calls++
	b.lastUsage = u
	b.lastRegion = r
	if b.mapErr != nil {
		return nil, b.mapErr
	}
	return b.mapData, nil
}

func (b *fakeBackend) MapPlanar(h *handle.Handle, u usage.Usage, r Region) (PlanarLayout, error) {
	b.calls++
	b.lastUsage = u
	if b.mapErr != nil {
		return PlanarLayout{}, b.mapErr
	}
	return b.layout, nil
}

func (b *fakeBackend) Unmap(h *handle.Handle) error {
	b.calls++
	return b.unmapErr
}

func newMapper(backend Backend, profile Profile) *Mapper {
	return New(backend, profile, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// newPipeHandle builds a one-fd handle from a fresh pipe read end,
// closing the write end via cleanup.
func newPipeHandle(t *testing.T) *handle.Handle {
	t.Helper()
	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() { unix.Close(fds[1]) })
	return handle.New([]int{fds[0]}, []uint32{640, 480})
}

func TestCreateDescriptorScenarios(t *testing.T) {
	m := newMapper(&fakeBackend{}, MetadataProfile())

	cases := []struct {
		name string
		info descriptor.Info
		want status.Code
	}{
		{
			"zero width",
			descriptor.Info{Width: 0, Height: 100, LayerCount: 1, Format: descriptor.FormatRGBA8888},
			status.BadValue,
		},
		{
			"two layers",
			descriptor.Info{Width: 100, Height: 100, LayerCount: 2, Format: descriptor.FormatRGBA8888},
			status.Unsupported,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			desc, err := m.CreateDescriptor(c.info)
			if !errors.Is(err, c.want) {
				t.Fatalf("CreateDescriptor: %v, want %v", err, c.want)
			}
			if len(desc) != 0 {
				t.Errorf("descriptor not empty on error: %d bytes", len(desc))
			}
		})
	}

	desc, err := m.CreateDescriptor(descriptor.Info{
		Width: 100, Height: 100, LayerCount: 1, Format: descriptor.FormatRGBA8888,
	})
	if err != nil {
		t.Fatalf("CreateDescriptor(valid): %v", err)
	}
	if len(desc) == 0 {
		t.Error("valid request produced an empty descriptor")
	}
}

func TestCreateDescriptorUnknownUsagePasses(t *testing.T) {
	// Unknown usage bits warn but never reject.
	m := newMapper(&fakeBackend{}, MetadataProfile())
	desc, err := m.CreateDescriptor(descriptor.Info{
		Width: 8, Height: 8, LayerCount: 1,
		Format: descriptor.FormatRGBA8888,
		Usage:  usage.Usage(1 << 25),
	})
	if err != nil {
		t.Fatalf("CreateDescriptor with unknown usage: %v", err)
	}
	decoded, err := descriptor.Decode(desc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Usage != usage.Usage(1<<25) {
		t.Errorf("usage mask altered: %#x", uint64(decoded.Usage))
	}
}

func TestImportNilHandle(t *testing.T) {
	backend := &fakeBackend{}
	m := newMapper(backend, MetadataProfile())

	_, err := m.Import(nil)
	if !errors.Is(err, status.BadBuffer) {
		t.Fatalf("Import(nil): %v, want BadBuffer", err)
	}
	if backend.calls != 0 {
		t.Errorf("backend called %d times for nil import, want 0", backend.calls)
	}
}

func TestImportFreeLifecycle(t *testing.T) {
	backend := &fakeBackend{}
	m := newMapper(backend, MetadataProfile())
	raw := newPipeHandle(t)

	before := testutil.OpenFDs(t)

	imported, err := m.Import(raw)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if imported == raw {
		t.Fatal("Import returned the caller's handle instead of a clone")
	}
	if len(backend.registered) != 1 || backend.registered[0] != imported {
		t.Fatal("backend did not register the imported clone")
	}

	if err := m.Free(imported); err != nil {
		t.Fatalf("Free: %v", err)
	}

	// Import dup'd one fd, Free closed it: net zero.
	if after := testutil.OpenFDs(t); after != before {
		t.Errorf("fd count changed across import/free: %d -> %d", before, after)
	}

	if err := raw.Close(); err != nil {
		t.Errorf("caller's handle unusable after lifecycle: %v", err)
	}
}

func TestImportRegistrationFailureRollsBack(t *testing.T) {
	backend := &fakeBackend{registerErr: errors.New("table full")}
	m := newMapper(backend, MetadataProfile())
	raw := newPipeHandle(t)
	defer raw.Close()

	before := testutil.OpenFDs(t)
	_, err := m.Import(raw)
	if !errors.Is(err, status.NoResources) {
		t.Fatalf("Import with failing register: %v, want NoResources", err)
	}
	// The clone must be fully released before the error returns.
	if after := testutil.OpenFDs(t); after != before {
		t.Errorf("fd leaked on failed import: %d -> %d", before, after)
	}
}

func TestFreeNilHandle(t *testing.T) {
	backend := &fakeBackend{}
	m := newMapper(backend, MetadataProfile())
	if err := m.Free(nil); !errors.Is(err, status.BadBuffer) {
		t.Fatalf("Free(nil): %v, want BadBuffer", err)
	}
	if backend.calls != 0 {
		t.Error("backend called for nil free")
	}
}

func TestFreeUnregisterFailureReleasesNothing(t *testing.T) {
	backend := &fakeBackend{unregisterErr: errors.New("busy")}
	m := newMapper(backend, MetadataProfile())
	h := newPipeHandle(t)
	defer h.Close()

	err := m.Free(h)
	if !errors.Is(err, status.Unsupported) {
		t.Fatalf("Free with failing unregister: %v, want Unsupported", err)
	}
	// The handle must still be open: the backend may consider the
	// buffer live.
	if len(h.FDs) == 0 {
		t.Error("handle released despite failed unregistration")
	}
}

func TestLockNilHandle(t *testing.T) {
	backend := &fakeBackend{}
	m := newMapper(backend, MetadataProfile())

	_, err := m.Lock(nil, usage.CPUReadOften, Region{}, nil)
	if !errors.Is(err, status.BadBuffer) {
		t.Fatalf("Lock(nil): %v, want BadBuffer", err)
	}
	if backend.calls != 0 {
		t.Error("backend called for nil lock")
	}
}

func TestLockMalformedFence(t *testing.T) {
	backend := &fakeBackend{}
	m := newMapper(backend, MetadataProfile())
	h := newPipeHandle(t)
	defer h.Close()

	twoFDs := newPipeHandle(t)
	extra := newPipeHandle(t)
	badFence := handle.New([]int{twoFDs.FDs[0], extra.FDs[0]}, nil)
	defer twoFDs.Close()
	defer extra.Close()

	_, err := m.Lock(h, usage.CPUReadOften, Region{}, badFence)
	if !errors.Is(err, status.BadValue) {
		t.Fatalf("Lock with 2-fd fence: %v, want BadValue", err)
	}
	if backend.calls != 0 {
		t.Error("backend mapped despite malformed fence")
	}
}

func TestLockTranslatesUsage(t *testing.T) {
	backend := &fakeBackend{mapData: make([]byte, 16)}
	m := newMapper(backend, MetadataProfile())
	h := newPipeHandle(t)
	defer h.Close()

	cpu := usage.CPUReadOften | usage.CPUWriteOften
	region := Region{Left: 1, Top: 2, Width: 3, Height: 4}
	data, err := m.Lock(h, cpu, region, nil)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if len(data) != 16 {
		t.Errorf("mapped %d bytes, want 16", len(data))
	}
	if backend.lastRegion != region {
		t.Errorf("backend saw region %+v, want %+v", backend.lastRegion, region)
	}
	// The producer side carries write intent; the consumer side must
	// not. The combined mask therefore still contains the write bits
	// (from the producer) and everything else once.
	if backend.lastUsage != cpu {
		t.Errorf("backend saw usage %#x, want %#x", uint64(backend.lastUsage), uint64(cpu))
	}
}

func TestTranslateLockUsageDropsConsumerWrites(t *testing.T) {
	cpu := usage.CPUReadOften | usage.CPUWriteOften
	consumer := cpu &^ usage.CPUWriteMask
	got := translateLockUsage(cpu)
	if got&^cpu != 0 {
		t.Errorf("translation invented bits: %#x", uint64(got&^cpu))
	}
	if got&consumer != consumer {
		t.Errorf("translation lost consumer bits: got %#x", uint64(got))
	}
}

func TestLockBackendFailure(t *testing.T) {
	backend := &fakeBackend{mapErr: errors.New("no vma")}
	m := newMapper(backend, MetadataProfile())
	h := newPipeHandle(t)
	defer h.Close()

	if _, err := m.Lock(h, usage.CPUReadOften, Region{}, nil); !errors.Is(err, status.Unsupported) {
		t.Fatalf("Lock with failing map: %v, want Unsupported", err)
	}
}

func TestLockPlanarProfileGate(t *testing.T) {
	backend := &fakeBackend{}
	m := newMapper(backend, MetadataProfile())
	h := newPipeHandle(t)
	defer h.Close()

	_, err := m.LockPlanar(h, usage.CPUReadOften, Region{}, nil)
	if !errors.Is(err, status.Unsupported) {
		t.Fatalf("LockPlanar without capability: %v, want Unsupported", err)
	}
	if backend.calls != 0 {
		t.Error("backend called despite missing capability")
	}
}

func TestLockPlanar(t *testing.T) {
	want := PlanarLayout{
		Y:          make([]byte, 64),
		Cb:         make([]byte, 32),
		Cr:         make([]byte, 32),
		YStride:    64,
		CStride:    64,
		ChromaStep: 2,
	}
	backend := &fakeBackend{layout: want}
	m := newMapper(backend, LegacyProfile())
	h := newPipeHandle(t)
	defer h.Close()

	layout, err := m.LockPlanar(h, usage.CPUReadOften, Region{}, nil)
	if err != nil {
		t.Fatalf("LockPlanar: %v", err)
	}
	if layout.YStride != want.YStride || layout.ChromaStep != want.ChromaStep {
		t.Errorf("layout = %+v, want %+v", layout, want)
	}
}

func TestUnlockNilHandle(t *testing.T) {
	m := newMapper(&fakeBackend{}, MetadataProfile())
	if _, err := m.Unlock(nil); !errors.Is(err, status.BadBuffer) {
		t.Fatalf("Unlock(nil): %v, want BadBuffer", err)
	}
}

func TestUnlockYieldsReleaseFence(t *testing.T) {
	backend := &fakeBackend{}
	m := newMapper(backend, MetadataProfile())
	h := newPipeHandle(t)
	defer h.Close()

	release, err := m.Unlock(h)
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if release == nil || len(release.FDs) != 1 {
		t.Fatalf("release fence handle = %s, want one fd", release)
	}
	defer release.Close()

	// The substituted release fence must already be signaled.
	pfd := []unix.PollFd{{Fd: int32(release.FDs[0]), Events: unix.POLLIN}}
	n, err := unix.Poll(pfd, 1000)
	if err != nil || n == 0 {
		t.Errorf("release fence not signaled: n=%d err=%v", n, err)
	}
}

func TestUnlockBackendFailure(t *testing.T) {
	backend := &fakeBackend{unmapErr: errors.New("still busy")}
	m := newMapper(backend, MetadataProfile())
	h := newPipeHandle(t)
	defer h.Close()

	release, err := m.Unlock(h)
	if !errors.Is(err, status.Unsupported) {
		t.Fatalf("Unlock with failing unmap: %v, want Unsupported", err)
	}
	if release != nil {
		t.Error("release fence produced despite failed unmap")
	}
}

func TestFlushLockedMatchesUnlockContract(t *testing.T) {
	backend := &fakeBackend{}
	m := newMapper(backend, MetadataProfile())
	h := newPipeHandle(t)
	defer h.Close()

	release, err := m.FlushLocked(h)
	if err != nil {
		t.Fatalf("FlushLocked: %v", err)
	}
	if release == nil || len(release.FDs) != 1 {
		t.Fatalf("flush release fence = %s, want one fd", release)
	}
	release.Close()

	if _, err := m.FlushLocked(nil); !errors.Is(err, status.BadBuffer) {
		t.Errorf("FlushLocked(nil): %v, want BadBuffer", err)
	}
}

func TestFlushLockedProfileGate(t *testing.T) {
	m := newMapper(&fakeBackend{}, LegacyProfile())
	h := newPipeHandle(t)
	defer h.Close()
	if _, err := m.FlushLocked(h); !errors.Is(err, status.Unsupported) {
		t.Errorf("FlushLocked without capability: %v, want Unsupported", err)
	}
}

func TestReread(t *testing.T) {
	m := newMapper(&fakeBackend{}, MetadataProfile())
	h := newPipeHandle(t)
	defer h.Close()

	if err := m.Reread(h); err != nil {
		t.Errorf("Reread: %v, want nil", err)
	}
	if err := m.Reread(nil); !errors.Is(err, status.BadBuffer) {
		t.Errorf("Reread(nil): %v, want BadBuffer", err)
	}
}
