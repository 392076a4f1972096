package vmm

import (
	"corekernel/kernel/cpu"
	"corekernel/kernel/mem"
	"unsafe"
)

var (
	// hhdmOffset is the virtual-address offset of the higher-half direct
	// map, set once via SetHHDMOffset during early boot. Every page table
	// walk dereferences table frames through this offset; this kernel
	// never relies on a recursive self-mapping.
	hhdmOffset uintptr

	// ptePtrFn resolves the virtual address of a page table entry to a
	// pointer. It is used by tests to override the generated page table
	// entry pointers so walk() can be properly tested. When compiling the
	// kernel this function will be automatically inlined.
	ptePtrFn = func(entryAddr uintptr) unsafe.Pointer {
		return unsafe.Pointer(entryAddr)
	}

	// activePDTFn returns the physical address of the currently active
	// top-level page table (the value of CR3 with its low flag bits
	// masked off).
	activePDTFn = cpu.ActivePDT
)

// SetHHDMOffset records the higher-half direct map offset reported by the
// bootloader. It must be called once during early boot, before the first
// page table walk, and never changes afterwards.
func SetHHDMOffset(offset uintptr) {
	hhdmOffset = offset
}

// pageTableWalker is a function that can be passed to the walk method. The
// function receives the current page level and page table entry as its
// arguments.  If the function returns false, then the page walk is aborted.
type pageTableWalker func(pteLevel uint8, pte *pageTableEntry) bool

// walk performs a page table walk for the given virtual address, starting
// from the currently active PML4 (as reported by CR3) and descending
// through the PDPT, PD and PT. It calls the supplied walkFn with the page
// table entry that corresponds to each page table level; each table frame
// is reached by adding hhdmOffset to its physical address, never through a
// recursive mapping.
func walk(virtAddr uintptr, walkFn pageTableWalker) {
	tableAddr := activePDTFn() &^ (uintptr(mem.PageSize) - 1)

	for level := uint8(0); level < pageLevels; level++ {
		entryIndex := (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
		entryPhysAddr := tableAddr + (entryIndex << mem.PointerShift)
		entryVirtAddr := entryPhysAddr + hhdmOffset

		pte := (*pageTableEntry)(ptePtrFn(entryVirtAddr))
		if !walkFn(level, pte) {
			return
		}

		tableAddr = uintptr(pte.Frame().Address())
	}
}
