package kfmt

import (
	"corekernel/kernel/boot/limine"
	"corekernel/kernel/elf"
	"reflect"
	"unsafe"
)

// kernelImageFn is a variable so tests can substitute a synthetic ELF image
// without depending on a real bootloader hand-off.
var kernelImageFn = kernelImage

// kernelImage overlays a []byte on top of the raw kernel file the
// bootloader loaded into memory, so the panic symbolizer can walk its own
// section headers without needing a filesystem.
func kernelImage() []byte {
	f := limine.KernelFile()
	if f == nil || f.Size == 0 {
		return nil
	}

	return *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(f.Size),
		Cap:  int(f.Size),
		Data: f.Address,
	}))
}

// symbolicate resolves addr to the name of the function whose [Value,
// Value+Size) range contains it, by scanning the live kernel image's ELF
// symbol table. It returns "<unknown>" when no matching symbol is found.
func symbolicate(addr uintptr) string {
	raw := kernelImageFn()
	if raw == nil {
		return "<unknown>"
	}

	hdr, err := elf.ParseHeader(raw)
	if err != nil {
		return "<unknown>"
	}

	for _, sym := range elf.Symbols(raw, hdr) {
		if uint64(addr) >= sym.Value && uint64(addr) < sym.Value+sym.Size {
			return sym.Name
		}
	}
	return "<unknown>"
}

// frameWalkerFn reads the caller-saved frame pointer chain starting at rbp,
// invoking visit with each return address until visit returns false or a
// zero RIP terminates the chain (the outermost frame).
//
// It is a variable so tests can inject a synthetic chain without needing a
// real stack.
var frameWalkerFn = func(rbp uintptr, visit func(rip uintptr) bool) {
	for rbp != 0 {
		savedRBP := *(*uintptr)(unsafe.Pointer(rbp))
		savedRIP := *(*uintptr)(unsafe.Pointer(rbp + unsafe.Sizeof(rbp)))
		if savedRIP == 0 {
			return
		}
		if !visit(savedRIP) {
			return
		}
		rbp = savedRBP
	}
}

// PrintStackTrace walks the frame-pointer chain starting at rbp and prints
// one "<symbol> (0x<rip>)" line per frame to the active output sink.
func PrintStackTrace(rbp uintptr) {
	Printf("stack trace:\n")
	frameWalkerFn(rbp, func(rip uintptr) bool {
		Printf("  %s (0x%x)\n", symbolicate(rip), uint64(rip))
		return true
	})
}
