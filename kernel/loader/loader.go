// Package loader implements the ELF64 image loader: given the raw bytes of
// a statically-linked executable, it validates the header, allocates a
// contiguous virtual image spanning every PROGBITS section, copies the
// sections in and transfers control to the entry point through a small
// assembly trampoline.
//
// Loading by virtual-address span rather than by program headers is a
// deliberate simplification that fits the small, self-contained test
// binaries this kernel boots; it is not a general-purpose ELF loader.
package loader

import (
	"corekernel/kernel"
	"corekernel/kernel/elf"
	"corekernel/kernel/mem"
	"corekernel/kernel/mem/pmm"
	"corekernel/kernel/mem/pmm/allocator"
	"corekernel/kernel/mem/vmm"
	"unsafe"
)

var (
	errNoProgbits     = &kernel.Error{Module: "loader", Message: "image has no loadable PROGBITS sections"}
	errEntryOutOfSpan = &kernel.Error{Module: "loader", Message: "entry point outside PROGBITS span"}
	errSectionOOB     = &kernel.Error{Module: "loader", Message: "section data runs past end of input image"}

	// The following are test seams; production code always uses the real
	// frame allocator, vmm and copy primitives.
	allocFrameFn         = allocator.AllocFrame
	freeFrameFn          = allocator.FreeFrame
	earlyReserveRegionFn = vmm.EarlyReserveRegion
	mapFn                = vmm.Map
	unmapFn              = vmm.Unmap
	translateFn          = vmm.Translate
	memsetFn             = kernel.Memset
	memcopyFn            = kernel.Memcopy
	callEntryFn          = callEntry
)

// imageFlags marks the loaded image pages present and writable. This
// loader does not distinguish PROGBITS sections by their own RWX flags
// the way the kernel's own image mapping does, since these are small,
// single-image test fixtures that mix code and data on the same pages.
const imageFlags = vmm.FlagPresent | vmm.FlagRW

// CallEntry transfers control to a raw code address with no arguments and
// returns its result, the same trampoline LoadAndRun uses to invoke an
// ELF entry point. It lets callers test the syscall path by constructing a
// tiny machine-code blob directly, without going through an ELF image.
func CallEntry(addr uintptr) int64 {
	return callEntryFn(addr)
}

// LoadAndRun validates raw as an ELF64 image, copies its PROGBITS sections
// into a freshly allocated virtual image and calls its entry point with no
// arguments. It returns the entry point's return value. The image is freed
// before LoadAndRun returns.
func LoadAndRun(raw []byte) (int64, *kernel.Error) {
	hdr, err := elf.ParseHeader(raw)
	if err != nil {
		return 0, err
	}

	minVaddr, maxVaddr := elf.LoadSpan(raw, hdr)
	if maxVaddr == 0 {
		return 0, errNoProgbits
	}
	if hdr.Entry < minVaddr || hdr.Entry >= maxVaddr {
		return 0, errEntryOutOfSpan
	}

	imageBase, pageCount, err := allocImage(mem.Size(maxVaddr - minVaddr))
	if err != nil {
		return 0, err
	}
	defer freeImage(imageBase, pageCount)

	for _, sec := range elf.Sections(raw, hdr) {
		if sec.Type != elf.SectionTypeProgBits || sec.Size == 0 {
			continue
		}
		if sec.Offset+sec.Size > uint64(len(raw)) {
			return 0, errSectionOOB
		}

		dst := imageBase + uintptr(sec.Addr-minVaddr)
		src := uintptr(unsafe.Pointer(&raw[sec.Offset]))
		memcopyFn(src, dst, uintptr(sec.Size))
	}

	entryAddr := imageBase + uintptr(hdr.Entry-minVaddr)
	return callEntryFn(entryAddr), nil
}

// allocImage reserves a virtual region of size bytes (rounded up to a
// whole number of pages) and backs every page with a freshly allocated,
// zeroed physical frame. It returns the base virtual address and the
// number of pages mapped.
func allocImage(size mem.Size) (uintptr, int, *kernel.Error) {
	size = (size + (mem.PageSize - 1)) &^ (mem.PageSize - 1)
	base, err := earlyReserveRegionFn(size)
	if err != nil {
		return 0, 0, err
	}

	pageCount := int(size / mem.PageSize)
	for i := 0; i < pageCount; i++ {
		frame, err := allocFrameFn()
		if err != nil {
			freeImage(base, i)
			return 0, 0, err
		}

		page := vmm.PageFromAddress(base + uintptr(i)*uintptr(mem.PageSize))
		if err := mapFn(page, frame, imageFlags); err != nil {
			freeFrameFn(frame)
			freeImage(base, i)
			return 0, 0, err
		}

		memsetFn(page.Address(), 0, uintptr(mem.PageSize))
	}

	return base, pageCount, nil
}

// freeImage unmaps and releases the physical frames backing pageCount
// pages starting at base.
func freeImage(base uintptr, pageCount int) {
	for i := 0; i < pageCount; i++ {
		addr := base + uintptr(i)*uintptr(mem.PageSize)
		page := vmm.PageFromAddress(addr)
		if physAddr, err := translateFn(addr); err == nil {
			freeFrameFn(pmm.Frame(physAddr >> mem.PageShift))
		}
		unmapFn(page)
	}
}
