// Package allocator provides physical frame allocators used to bootstrap
// the kernel's memory subsystem.
package allocator

import (
	"corekernel/kernel"
	"corekernel/kernel/boot/limine"
	"corekernel/kernel/kfmt"
	"corekernel/kernel/mem"
	"corekernel/kernel/mem/pmm"
	"unsafe"
)

// minRegionBase excludes the low 1 MiB of physical memory from
// consideration even if the bootloader labels part of it USABLE, since
// that range overlaps BIOS/real-mode artifacts (the EBDA, option ROMs).
const minRegionBase = 0x100000

var (
	// earlyAllocator is the frame allocator used for the lifetime of the
	// kernel; there is no buddy or slab allocator layered on top of it.
	earlyAllocator bitmapAllocator

	errBitmapAllocOutOfMemory = &kernel.Error{Module: "bitmap_alloc", Message: "out of memory"}

	// physByteFn resolves a physical address to a pointer through the
	// HHDM. It is swapped out in tests so the bitmap can be exercised
	// against a plain Go byte slice instead of real physical memory.
	physByteFn = func(physAddr uintptr) *uint8 {
		return (*uint8)(unsafe.Pointer(physAddr + earlyAllocator.hhdm))
	}

	// hhdmOffsetFn and visitMemRegionsFn are test seams for the
	// corresponding limine package functions.
	hhdmOffsetFn     = limine.HHDMOffset
	visitMemRegionsFn = limine.VisitMemRegions
)

// bitmapAllocator is a one-bit-per-frame allocator carved out of the
// single largest USABLE region reported by the bootloader. The bitmap
// itself lives at the start of that region; the frames it describes start
// immediately after the bitmap. Both are addressed through the HHDM
// offset, never through a recursive or identity mapping.
//
// This mirrors the reference kernel's allocator, which only ever
// considers one region and returns fixed, page-sized allocations: there is
// no support for freeing arbitrary sizes or for falling back to a second
// region once the first is exhausted.
type bitmapAllocator struct {
	hhdm uintptr

	regionBase   uint64
	regionLength uint64

	// bitmapFrames is the number of whole pages reserved at the start of
	// the region to hold the bitmap itself.
	bitmapFrames uint64

	// totalFrames is the number of frames available for allocation after
	// the bitmap.
	totalFrames uint64
}

// init selects the largest USABLE memory region reported by the
// bootloader and sizes the bitmap that will track its frames.
func (a *bitmapAllocator) init() *kernel.Error {
	a.hhdm = hhdmOffsetFn()

	var base, length uint64
	visitMemRegionsFn(func(region *limine.MemoryMapEntry) bool {
		if region.Type == limine.MemUsable && region.Base >= minRegionBase && region.Length > length {
			base = region.Base
			length = region.Length
		}
		return true
	})

	if length < uint64(mem.PageSize) {
		return &kernel.Error{Module: "bitmap_alloc", Message: "no usable memory region found"}
	}

	a.regionBase = base
	a.regionLength = length

	// Grow the bitmap by one frame at a time until it has enough bits to
	// cover every remaining frame in the region.
	framesInRegion := length / uint64(mem.PageSize)
	bitmapFrames := uint64(1)
	for bitmapFrames*uint64(mem.PageSize)*8 <= framesInRegion-bitmapFrames {
		bitmapFrames++
	}

	a.bitmapFrames = bitmapFrames
	a.totalFrames = framesInRegion - bitmapFrames

	a.zeroBitmap()

	return nil
}

func (a *bitmapAllocator) bitmapByteAddr(byteOffset uint64) *uint8 {
	return physByteFn(uintptr(a.regionBase + byteOffset))
}

func (a *bitmapAllocator) zeroBitmap() {
	bitmapBytes := a.bitmapFrames * uint64(mem.PageSize)
	for i := uint64(0); i < bitmapBytes; i++ {
		*a.bitmapByteAddr(i) = 0
	}
}

func getBit(b uint8, pos uint8) bool {
	return b&(1<<pos) != 0
}

func setBit(b uint8, pos uint8, value bool) uint8 {
	if value {
		return b | (1 << pos)
	}
	return b &^ (1 << pos)
}

// AllocFrame reserves the first free frame in the bitmap and returns it.
func (a *bitmapAllocator) AllocFrame() (pmm.Frame, *kernel.Error) {
	bitmapBytes := a.bitmapFrames * uint64(mem.PageSize)

	for byteIdx := uint64(0); byteIdx < bitmapBytes; byteIdx++ {
		addr := a.bitmapByteAddr(byteIdx)
		cur := *addr
		for bit := uint8(0); bit < 8; bit++ {
			frameIdx := byteIdx*8 + uint64(bit)
			if frameIdx >= a.totalFrames {
				break
			}
			if getBit(cur, bit) {
				continue
			}

			*addr = setBit(cur, bit, true)
			framePhysAddr := a.regionBase + a.bitmapFrames*uint64(mem.PageSize) + frameIdx*uint64(mem.PageSize)
			return pmm.Frame(framePhysAddr >> mem.PageShift), nil
		}
	}

	return pmm.InvalidFrame, errBitmapAllocOutOfMemory
}

// FreeFrame clears the bitmap bit for the given frame, making it available
// for a future allocation.
func (a *bitmapAllocator) FreeFrame(f pmm.Frame) {
	dataBase := a.regionBase + a.bitmapFrames*uint64(mem.PageSize)
	frameAddr := uint64(f.Address())
	if frameAddr < dataBase {
		return
	}

	frameIdx := (frameAddr - dataBase) / uint64(mem.PageSize)
	if frameIdx >= a.totalFrames {
		return
	}

	byteIdx := frameIdx / 8
	bit := uint8(frameIdx % 8)
	addr := a.bitmapByteAddr(byteIdx)
	*addr = setBit(*addr, bit, false)
}

// Init selects a usable memory region and prepares the bitmap allocator
// used for the remainder of the kernel's lifetime.
func Init() *kernel.Error {
	if err := earlyAllocator.init(); err != nil {
		return err
	}
	earlyAllocator.printMemoryMap()
	return nil
}

// AllocFrame reserves and returns the next free physical frame.
func AllocFrame() (pmm.Frame, *kernel.Error) {
	return earlyAllocator.AllocFrame()
}

// FreeFrame releases a frame previously returned by AllocFrame.
func FreeFrame(f pmm.Frame) {
	earlyAllocator.FreeFrame(f)
}

// printMemoryMap prints the bootloader-reported memory map followed by the
// region chosen for the bitmap allocator.
func (a *bitmapAllocator) printMemoryMap() {
	kfmt.Printf("[bitmap_alloc] system memory map:\n")
	var totalFree mem.Size
	visitMemRegionsFn(func(region *limine.MemoryMapEntry) bool {
		kfmt.Printf("\t[0x%10x - 0x%10x], size: %10d, type: %s\n", region.Base, region.Base+region.Length, region.Length, region.Type.String())
		if region.Type == limine.MemUsable {
			totalFree += mem.Size(region.Length)
		}
		return true
	})
	kfmt.Printf("[bitmap_alloc] available memory: %dKb\n", uint64(totalFree/mem.Kb))
	kfmt.Printf("[bitmap_alloc] using region 0x%x - 0x%x, bitmap frames: %d, usable frames: %d\n",
		a.regionBase, a.regionBase+a.regionLength, a.bitmapFrames, a.totalFrames)
}
