package loader

import (
	"corekernel/kernel"
	"corekernel/kernel/mem"
	"corekernel/kernel/mem/pmm"
	"corekernel/kernel/mem/vmm"
	"encoding/binary"
	"testing"
	"unsafe"
)

// buildImage assembles a minimal ELF64 image with a single PROGBITS section
// so LoadAndRun's header validation, span computation and section copy can
// be exercised without a real linker.
func buildImage(t *testing.T) (raw []byte, sectionAddr, entry uint64, payload []byte) {
	t.Helper()

	const (
		headerSize  = 64
		sectionSize = 64
	)
	payload = []byte{0xDE, 0xAD, 0xBE, 0xEF, 0xCA, 0xFE, 0xBA, 0xBE}
	sectionAddr = 0x1000
	entry = sectionAddr + 4
	dataOffset := uint64(headerSize + sectionSize)

	raw = make([]byte, int(dataOffset)+len(payload))
	raw[0], raw[1], raw[2], raw[3] = 0x7f, 'E', 'L', 'F'
	raw[4] = 2 // ELFCLASS64
	binary.LittleEndian.PutUint64(raw[24:32], entry)
	binary.LittleEndian.PutUint64(raw[40:48], headerSize)
	binary.LittleEndian.PutUint16(raw[58:60], sectionSize)
	binary.LittleEndian.PutUint16(raw[60:62], 1)
	binary.LittleEndian.PutUint16(raw[62:64], 0)

	sec := raw[headerSize : headerSize+sectionSize]
	binary.LittleEndian.PutUint32(sec[4:8], 1) // SectionTypeProgBits
	binary.LittleEndian.PutUint64(sec[16:24], sectionAddr)
	binary.LittleEndian.PutUint64(sec[24:32], dataOffset)
	binary.LittleEndian.PutUint64(sec[32:40], uint64(len(payload)))

	copy(raw[dataOffset:], payload)
	return raw, sectionAddr, entry, payload
}

// withFakeMemory stubs every vmm/allocator seam with a plain in-process
// model: a map keyed by virtual address stands in for mapped physical
// memory, and frame numbers are handed out sequentially.
func withFakeMemory(t *testing.T) (mem_ map[uintptr]byte, reservedBase uintptr) {
	t.Helper()
	mem_ = make(map[uintptr]byte)
	reservedBase = 0x2000

	origReserve, origAlloc, origFree, origMap, origUnmap, origTranslate, origMemset, origMemcopy, origCall :=
		earlyReserveRegionFn, allocFrameFn, freeFrameFn, mapFn, unmapFn, translateFn, memsetFn, memcopyFn, callEntryFn

	var nextFrame pmm.Frame
	earlyReserveRegionFn = func(mem.Size) (uintptr, *kernel.Error) { return reservedBase, nil }
	allocFrameFn = func() (pmm.Frame, *kernel.Error) {
		nextFrame++
		return nextFrame, nil
	}
	freeFrameFn = func(pmm.Frame) {}
	mapFn = func(vmm.Page, pmm.Frame, vmm.PageTableEntryFlag) *kernel.Error { return nil }
	unmapFn = func(vmm.Page) *kernel.Error { return nil }
	translateFn = func(addr uintptr) (uintptr, *kernel.Error) { return addr, nil }
	memsetFn = func(addr uintptr, value byte, size uintptr) {
		for i := uintptr(0); i < size; i++ {
			mem_[addr+i] = value
		}
	}
	memcopyFn = func(src, dst uintptr, size uintptr) {
		for i := uintptr(0); i < size; i++ {
			b := *(*byte)(unsafe.Pointer(src + i))
			mem_[dst+i] = b
		}
	}
	callEntryFn = func(entryAddr uintptr) int64 {
		return int64(mem_[entryAddr])
	}

	t.Cleanup(func() {
		earlyReserveRegionFn, allocFrameFn, freeFrameFn, mapFn, unmapFn, translateFn, memsetFn, memcopyFn, callEntryFn =
			origReserve, origAlloc, origFree, origMap, origUnmap, origTranslate, origMemset, origMemcopy, origCall
	})
	return mem_, reservedBase
}

func TestLoadAndRunCopiesSectionAndInvokesEntry(t *testing.T) {
	raw, sectionAddr, entry, payload := buildImage(t)
	mem_, base := withFakeMemory(t)

	got, err := LoadAndRun(raw)
	if err != nil {
		t.Fatalf("LoadAndRun: %v", err)
	}

	entryOffset := entry - sectionAddr
	want := int64(payload[entryOffset])
	if got != want {
		t.Fatalf("LoadAndRun returned %d, want %d (byte at entry point)", got, want)
	}

	for i, b := range payload {
		if mem_[base+uintptr(i)] != b {
			t.Errorf("byte %d at image base = %#x, want %#x", i, mem_[base+uintptr(i)], b)
		}
	}
}

func TestLoadAndRunRejectsBadMagic(t *testing.T) {
	raw, _, _, _ := buildImage(t)
	raw[0] = 0
	withFakeMemory(t)

	if _, err := LoadAndRun(raw); err == nil {
		t.Fatal("expected error for bad ELF magic")
	}
}

func TestLoadAndRunRejectsEntryOutsideSpan(t *testing.T) {
	raw, sectionAddr, _, payload := buildImage(t)
	binary.LittleEndian.PutUint64(raw[24:32], sectionAddr+uint64(len(payload))+0x100)
	withFakeMemory(t)

	if _, err := LoadAndRun(raw); err == nil {
		t.Fatal("expected error for entry point outside the loadable span")
	}
}

func TestLoadAndRunRejectsTruncatedSection(t *testing.T) {
	raw, _, _, _ := buildImage(t)
	const sectionSize = 64
	sec := raw[64 : 64+sectionSize]
	binary.LittleEndian.PutUint64(sec[32:40], uint64(len(raw))) // size far beyond EOF
	withFakeMemory(t)

	if _, err := LoadAndRun(raw); err == nil {
		t.Fatal("expected error for section data running past end of input")
	}
}
