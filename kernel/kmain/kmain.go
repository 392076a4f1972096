// Package kmain assembles the boot sequence: it wires the physical and
// virtual memory managers, enables the Go runtime's allocator, probes for
// hardware, mounts the root filesystem, populates the IDT and starts the
// mini-shell before idling with interrupts enabled.
package kmain

import (
	"corekernel/kernel"
	"corekernel/kernel/boot/limine"
	"corekernel/kernel/cpu"
	"corekernel/kernel/disk"
	"corekernel/kernel/fat32"
	"corekernel/kernel/goruntime"
	"corekernel/kernel/hal"
	"corekernel/kernel/irq"
	"corekernel/kernel/kfmt"
	"corekernel/kernel/mem/pmm/allocator"
	"corekernel/kernel/mem/vmm"
	"corekernel/kernel/shell"
	"corekernel/kernel/syscall"
)

// Kmain is the kernel's Go entry point, invoked by main.main once the
// Limine bootloader has handed off control. It never returns: once the
// shell is started it idles in a halt loop with interrupts enabled.
//
//go:noinline
func Kmain() {
	var err *kernel.Error

	if err = allocator.Init(); err != nil {
		panic(err)
	}
	vmm.SetHHDMOffset(limine.HHDMOffset())
	physBase, virtBase := limine.KernelAddress()
	if err = vmm.Init(virtBase - physBase); err != nil {
		panic(err)
	}
	if err = goruntime.Init(); err != nil {
		panic(err)
	}

	hal.DetectHardware()
	printBanner()

	if err = disk.Init(); err != nil {
		kfmt.Printf("[kmain] disk: %s\n", err.Error())
	} else if _, err = fat32.Mount(); err != nil {
		kfmt.Printf("[kmain] fat32: %s\n", err.Error())
	}

	irq.Init()
	syscall.Init()
	shell.Init()

	cpu.EnableInterrupts()
	kfmt.Printf("\nPress F1 to start the shell\n")

	for {
		cpu.Halt()
	}
}

func printBanner() {
	kfmt.Printf("\ncorekernel booting\n")
}
