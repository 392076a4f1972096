package vmm

import (
	"corekernel/kernel"
	"corekernel/kernel/cpu"
	"corekernel/kernel/mem"
	"corekernel/kernel/mem/pmm"
	"unsafe"
)

// entriesPerTable is the number of entries in a single amd64 page table.
const entriesPerTable = 1 << 9

var (
	// mapFn and switchPDTFn are used by tests to observe or override the
	// page mapping and page directory switch calls made while a new
	// kernel PDT is being assembled.
	mapFn       = Map
	switchPDTFn = cpu.SwitchPDT
)

// PageDirectoryTable represents a top-level (PML4) page table that is being
// assembled before taking over as the active address space.
type PageDirectoryTable struct {
	pdtFrame pmm.Frame
}

// Init takes ownership of pdtFrame, zeroes it, copies over the higher-half
// direct map entries from the currently active table so HHDM-relative
// accesses keep working once this table is switched in, and switches to it.
// Every subsequent call to Map populates this table.
func (pdt *PageDirectoryTable) Init(pdtFrame pmm.Frame) *kernel.Error {
	pdt.pdtFrame = pdtFrame

	page, err := mapTemporaryFn(pdtFrame)
	if err != nil {
		return err
	}

	mem.Memset(page.Address(), 0, mem.PageSize)

	activeBase := activePDTFn() &^ (uintptr(mem.PageSize) - 1)
	activeTable := (*[entriesPerTable]pageTableEntry)(unsafe.Pointer(activeBase + hhdmOffset))
	newTable := (*[entriesPerTable]pageTableEntry)(unsafe.Pointer(page.Address()))

	hhdmIndex := (hhdmOffset >> pageLevelShifts[0]) & ((1 << pageLevelBits[0]) - 1)
	for i := hhdmIndex; i < entriesPerTable; i++ {
		newTable[i] = activeTable[i]
	}

	if err = unmapFn(page); err != nil {
		return err
	}

	switchPDTFn(pdtFrame.Address())
	return nil
}

// Map installs a page mapping using the table made active by Init.
func (pdt *PageDirectoryTable) Map(page Page, frame pmm.Frame, flags PageTableEntryFlag) *kernel.Error {
	return mapFn(page, frame, flags)
}

// Activate (re)installs this table as the active PML4. Init already
// switches to the table as it is assembled; Activate marks the point after
// which the bootloader's identity mapping is no longer relied upon.
func (pdt *PageDirectoryTable) Activate() {
	switchPDTFn(pdt.pdtFrame.Address())
}
