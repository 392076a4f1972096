// Package syscall wires the kernel's int 0x80 syscall gate to a small set
// of handlers (print, open) backed by the root filesystem reader.
package syscall

import (
	"corekernel/kernel/fat32"
	"corekernel/kernel/irq"
	"corekernel/kernel/kfmt"
)

const (
	// Print writes the NUL-terminated string pointed to by RDI to the
	// console.
	Print = 1

	// Open reads the NUL-terminated filename pointed to by RDI out of the
	// root directory of the mounted volume and prints how many bytes it
	// contains, mirroring the reference kernel's placeholder sys_open
	// (there is no file descriptor table to hand a real fd back through).
	Open = 2

	maxUserString = 256
)

// Init registers the syscall handlers with the IDT. It must be called
// after irq.Init so that installGate can find the gate descriptor table.
func Init() {
	irq.HandleSyscall(Print, handlePrint)
	irq.HandleSyscall(Open, handleOpen)
}

func handlePrint(_ *irq.Frame, regs *irq.Regs) {
	var buf [maxUserString]byte
	if !irq.CopyFromUser(buf[:], uintptr(regs.RDI)) {
		kfmt.Printf("[syscall] print: invalid user pointer\n")
		return
	}
	kfmt.Printf("%s", cString(buf[:]))
}

func handleOpen(_ *irq.Frame, regs *irq.Regs) {
	var nameBuf [maxUserString]byte
	if !irq.CopyFromUser(nameBuf[:], uintptr(regs.RDI)) {
		kfmt.Printf("[syscall] open: invalid user pointer\n")
		return
	}

	name := cString(nameBuf[:])
	var data [4608]byte
	n, err := fat32.ReadFile(name, data[:])
	if err != nil {
		kfmt.Printf("[syscall] open: %s: %s\n", name, err.Error())
		return
	}
	kfmt.Printf("[syscall] open: %s: %d bytes\n", name, n)
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
