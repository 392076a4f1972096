// Package limine exposes the subset of the Limine boot protocol that the
// kernel depends on: the higher-half direct map offset, the physical memory
// map, the location of the raw kernel file and the kernel's load address,
// and the primary framebuffer.
//
// Limine does not hand the kernel one contiguous info blob the way
// multiboot does. Instead the bootloader scans the loaded kernel image for
// a set of statically-allocated "request" structures (identified by a pair
// of magic numbers plus a request-specific ID) and, for every request it
// recognizes, writes a pointer to the matching "response" structure into
// that request's Response field before jumping to the entry point. The
// request variables below must therefore keep the exact field layout and
// magic values the bootloader expects; the boot stub only needs to make
// sure they are reachable from the loaded image (e.g. by taking their
// address so the linker cannot discard them).
package limine

import (
	"unsafe"
)

// commonMagic is the first half of the magic pair every Limine request
// begins with.
var commonMagic = [2]uint64{0xc7b1dd30df4c8b88, 0x0a82e883a194f07b}

// MemoryMapEntryType describes the purpose of a single memory map entry as
// reported by the bootloader.
type MemoryMapEntryType uint64

// nolint
const (
	MemUsable MemoryMapEntryType = iota
	MemReserved
	MemACPIReclaimable
	MemACPINVS
	MemBadMemory
	MemBootloaderReclaimable
	MemKernelAndModules
	MemFramebuffer
)

// String implements fmt.Stringer.
func (t MemoryMapEntryType) String() string {
	switch t {
	case MemUsable:
		return "usable"
	case MemReserved:
		return "reserved"
	case MemACPIReclaimable:
		return "ACPI reclaimable"
	case MemACPINVS:
		return "ACPI NVS"
	case MemBadMemory:
		return "bad memory"
	case MemBootloaderReclaimable:
		return "bootloader reclaimable"
	case MemKernelAndModules:
		return "kernel and modules"
	case MemFramebuffer:
		return "framebuffer"
	default:
		return "unknown"
	}
}

// MemoryMapEntry mirrors struct limine_memmap_entry.
type MemoryMapEntry struct {
	Base   uint64
	Length uint64
	Type   MemoryMapEntryType
}

type memmapResponse struct {
	revision   uint64
	entryCount uint64
	entries    *uintptr // **limine_memmap_entry
}

type memmapRequest struct {
	magic    [2]uint64
	id       [2]uint64
	revision uint64
	response *memmapResponse
}

var memmapReq = memmapRequest{
	magic: commonMagic,
	id:    [2]uint64{0x67cf3d9d378a806f, 0xe304acdfc50c3c62},
}

// VisitMemRegions invokes visitFn for each entry in the bootloader-supplied
// memory map. Iteration stops when visitFn returns false or the map is
// exhausted.
func VisitMemRegions(visitFn func(*MemoryMapEntry) bool) {
	resp := memmapReq.response
	if resp == nil {
		return
	}

	entryPtrs := (*[1 << 16]*rawMemmapEntry)(unsafe.Pointer(resp.entries))
	for i := uint64(0); i < resp.entryCount; i++ {
		raw := entryPtrs[i]
		entry := MemoryMapEntry{Base: raw.base, Length: raw.length, Type: MemoryMapEntryType(raw.typ)}
		if !visitFn(&entry) {
			return
		}
	}
}

type rawMemmapEntry struct {
	base   uint64
	length uint64
	typ    uint64
}

type hhdmResponse struct {
	revision uint64
	offset   uint64
}

type hhdmRequest struct {
	magic    [2]uint64
	id       [2]uint64
	revision uint64
	response *hhdmResponse
}

var hhdmReq = hhdmRequest{
	magic: commonMagic,
	id:    [2]uint64{0x48dcf1cb8ad2b852, 0x63984e959a98244b},
}

// HHDMOffset returns the virtual-address offset of the higher-half direct
// map of all physical memory. Adding this offset to a physical address
// yields a virtual address the kernel can dereference regardless of the
// page tables it has installed.
func HHDMOffset() uintptr {
	if hhdmReq.response == nil {
		return 0
	}
	return uintptr(hhdmReq.response.offset)
}

type kernelAddressResponse struct {
	revision      uint64
	physicalBase  uint64
	virtualBase   uint64
}

type kernelAddressRequest struct {
	magic    [2]uint64
	id       [2]uint64
	revision uint64
	response *kernelAddressResponse
}

var kernelAddrReq = kernelAddressRequest{
	magic: commonMagic,
	id:    [2]uint64{0x71415d0ddcee5cfd, 0xd8a8ee5a6a10b4e9},
}

// KernelAddress returns the physical and virtual base addresses at which
// the bootloader loaded the kernel image.
func KernelAddress() (physBase, virtBase uintptr) {
	if kernelAddrReq.response == nil {
		return 0, 0
	}
	return uintptr(kernelAddrReq.response.physicalBase), uintptr(kernelAddrReq.response.virtualBase)
}

// File mirrors the fields of struct limine_file that the kernel cares
// about: the in-memory address and size of the raw file content.
type File struct {
	Address uintptr
	Size    uint64
}

type kernelFileResponse struct {
	revision uint64
	file     *rawFile
}

type rawFile struct {
	revision uint64
	address  uintptr
	size     uint64
	// remaining limine_file fields (path, cmdline, media_type, ...) are
	// not consumed by this kernel and are left unparsed.
}

type kernelFileRequest struct {
	magic    [2]uint64
	id       [2]uint64
	revision uint64
	response *kernelFileResponse
}

var kernelFileReq = kernelFileRequest{
	magic: commonMagic,
	id:    [2]uint64{0xad97e90e83f1ed67, 0x31eb5d1c5ff23b69},
}

// KernelFile returns the address and size of the raw kernel ELF image as
// loaded into memory by the bootloader. The panic/stack-symbolizer and the
// vmm package's kernel page-table setup both read the kernel's own section
// headers through this.
func KernelFile() *File {
	if kernelFileReq.response == nil || kernelFileReq.response.file == nil {
		return nil
	}
	f := kernelFileReq.response.file
	return &File{Address: f.address, Size: f.size}
}

// Framebuffer mirrors the subset of struct limine_framebuffer this kernel
// consumes.
type Framebuffer struct {
	Address      uintptr
	Width        uint64
	Height       uint64
	Pitch        uint64
	BitsPerPixel uint16
	RedMaskSize, RedMaskShift       uint8
	GreenMaskSize, GreenMaskShift   uint8
	BlueMaskSize, BlueMaskShift     uint8
}

type rawFramebuffer struct {
	address        uintptr
	width          uint64
	height         uint64
	pitch          uint64
	bpp            uint16
	memoryModel    uint8
	redMaskSize    uint8
	redMaskShift   uint8
	greenMaskSize  uint8
	greenMaskShift uint8
	blueMaskSize   uint8
	blueMaskShift  uint8
	unused         [7]uint8
	edidSize       uint64
	edid           uintptr
}

type framebufferResponse struct {
	revision         uint64
	framebufferCount uint64
	framebuffers     *uintptr // **limine_framebuffer
}

type framebufferRequest struct {
	magic    [2]uint64
	id       [2]uint64
	revision uint64
	response *framebufferResponse
}

var framebufferReq = framebufferRequest{
	magic: commonMagic,
	id:    [2]uint64{0x9d5827dcd881dd75, 0xa3148604f6fab11b},
}

// PrimaryFramebuffer returns the first framebuffer reported by the
// bootloader, or nil if none was provided.
func PrimaryFramebuffer() *Framebuffer {
	resp := framebufferReq.response
	if resp == nil || resp.framebufferCount == 0 {
		return nil
	}

	ptrs := (*[1 << 8]*rawFramebuffer)(unsafe.Pointer(resp.framebuffers))
	raw := ptrs[0]
	return &Framebuffer{
		Address:        raw.address,
		Width:          raw.width,
		Height:         raw.height,
		Pitch:          raw.pitch,
		BitsPerPixel:   raw.bpp,
		RedMaskSize:    raw.redMaskSize,
		RedMaskShift:   raw.redMaskShift,
		GreenMaskSize:  raw.greenMaskSize,
		GreenMaskShift: raw.greenMaskShift,
		BlueMaskSize:   raw.blueMaskSize,
		BlueMaskShift:  raw.blueMaskShift,
	}
}

// setMemmapResponseForTest lets package tests inject a synthetic response
// without depending on a real bootloader hand-off.
func setMemmapResponseForTest(entries []rawMemmapEntry) {
	ptrs := make([]*rawMemmapEntry, len(entries))
	for i := range entries {
		ptrs[i] = &entries[i]
	}
	memmapReq.response = &memmapResponse{
		entryCount: uint64(len(ptrs)),
		entries:    (*uintptr)(unsafe.Pointer(&ptrs[0])),
	}
}

func setHHDMOffsetForTest(offset uint64) {
	hhdmReq.response = &hhdmResponse{offset: offset}
}
