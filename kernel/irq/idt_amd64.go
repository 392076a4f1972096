package irq

import "unsafe"

const idtEntries = 256

// idtEntry is a 64-bit interrupt gate descriptor.
type idtEntry struct {
	offsetLow  uint16
	selector   uint16
	ist        uint8
	typeAttr   uint8
	offsetMid  uint16
	offsetHigh uint32
	zero       uint32
}

type idtPointer struct {
	limit uint16
	base  uint64
}

var idt [idtEntries]idtEntry

const (
	gateInterrupt = 0x8E // present, ring 0, 64-bit interrupt gate (IRQs, syscall)
	gateTrap      = 0x8F // present, ring 0, 64-bit trap gate (CPU exceptions)

	kernelCodeSelector = 0x08
)

func setGate(vector uint8, handlerAddr uintptr, flags uint8) {
	idt[vector] = idtEntry{
		offsetLow:  uint16(handlerAddr),
		selector:   kernelCodeSelector,
		ist:        0,
		typeAttr:   flags,
		offsetMid:  uint16(handlerAddr >> 16),
		offsetHigh: uint32(handlerAddr >> 32),
	}
}

// Init installs gate descriptors for every generated ISR stub (trap gates for
// the CPU exceptions 0-20, interrupt gates for every other vector), loads the
// IDT and reprograms the PICs so hardware IRQs land on vectors 32-47.
func Init() {
	for v := 0; v < idtEntries; v++ {
		flags := uint8(gateInterrupt)
		if v <= 20 {
			flags = gateTrap
		}
		installGate(uint8(v), flags)
	}

	ptr := idtPointer{
		limit: uint16(unsafe.Sizeof(idt) - 1),
		base:  uint64(uintptr(unsafe.Pointer(&idt[0]))),
	}
	idtLoad(uintptr(unsafe.Pointer(&ptr)))

	remapPIC()
}
