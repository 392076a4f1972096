// Package shell implements the keyboard-driven mini-shell: a cooperative
// line editor that starts reading on F1 and dispatches whole-line commands
// against a fixed table, all from inside the keyboard IRQ handler.
package shell

import (
	"corekernel/device/keyboard"
	"corekernel/kernel/cpu"
	"corekernel/kernel/fat32"
	"corekernel/kernel/irq"
	"corekernel/kernel/kfmt"
	"corekernel/kernel/loader"
	"corekernel/kernel/mem"
	"corekernel/kernel/mem/pmm/allocator"
	"corekernel/kernel/mem/vmm"
	"unsafe"
)

const kernelVersion = "v0.0.1"

// Scancodes the state machine treats specially rather than translating
// through the keyboard package's character table.
const (
	scancodeBackspace = 0x0E
	scancodeEnter     = 0x1C
	scancodeF1        = 0x3B

	keyboardDataPort = 0x60

	// inputCapacity is the shell input buffer's capacity; per the design
	// notes it must be at least 100 bytes.
	inputCapacity = 128
)

type state uint8

const (
	stateIdle state = iota
	stateReading
)

var (
	current state
	buf     [inputCapacity]byte
	length  int
)

// Init registers the keyboard IRQ handler that drives the shell. It must
// be called after irq.Init.
func Init() {
	irq.HandleIRQ(1, onKeyboardIRQ)
}

func onKeyboardIRQ(_ *irq.Frame, _ *irq.Regs) {
	scancode := cpu.InB(keyboardDataPort)

	// Break codes (high bit set) are make-code releases; this shell only
	// reacts to key presses.
	if scancode&0x80 != 0 {
		return
	}

	switch current {
	case stateIdle:
		if scancode == scancodeF1 {
			current = stateReading
			length = 0
			kfmt.Printf("\n# ")
		}
	case stateReading:
		readingKey(scancode)
	}
}

func readingKey(scancode uint8) {
	switch scancode {
	case scancodeBackspace:
		if length > 0 {
			length--
			kfmt.Printf("\x08 \x08")
		}
	case scancodeEnter:
		buf[length] = 0
		kfmt.Printf("\n")
		if dispatch(string(buf[:length])) {
			current = stateIdle
		} else {
			kfmt.Printf("# ")
		}
		length = 0
	default:
		ch, ok := keyboard.Translate(scancode)
		if !ok || length >= inputCapacity-1 {
			return
		}
		buf[length] = ch
		length++
		kfmt.Printf("%s", string(rune(ch)))
	}
}

// dispatch runs a single command line and returns true if the shell should
// return to the idle state (the "exit"/"quit" commands).
func dispatch(line string) bool {
	switch line {
	case "help":
		printHelp()
	case "info":
		printInfo()
	case "panic":
		raiseDebugException()
	case "fat":
		printFAT()
	case "run":
		runSyscallProbe()
	case "serial":
		toggleSerial()
	case "debug":
		toggleDebug()
	case "lspci":
		kfmt.Printf("lspci: PCI enumeration is not available in this build\n")
	case "exec":
		execHello()
	case "reboot":
		reboot()
	case "usb":
		kfmt.Printf("usb: no UHCI controller detected\n")
	case "usb reset":
		kfmt.Printf("usb reset: no UHCI controller detected\n")
	case "kmalloc":
		probeKmalloc()
	case "exit", "quit":
		return true
	default:
		kfmt.Printf("ERROR: command not found\n")
	}
	return false
}

func printHelp() {
	kfmt.Printf("\nCommands available:\n")
	kfmt.Printf(" - help       Shows this help menu\n")
	kfmt.Printf(" - panic      Force a kernel panic\n")
	kfmt.Printf(" - info       Shows some system info\n")
	kfmt.Printf(" - kmalloc    Tests the kernel frame allocator\n")
	kfmt.Printf(" - fat        Prints the mounted FAT32 BPB\n")
	kfmt.Printf(" - reboot     Reboot machine\n")
	kfmt.Printf(" - exec       Exec ELF executable read from the FAT32 volume\n")
	kfmt.Printf(" - debug      Toggles kernel debug logging {ON|OFF}\n")
	kfmt.Printf(" - lspci      Reports that PCI enumeration is not available\n")
	kfmt.Printf(" - serial     Toggles kernel serial output {ON|OFF}\n")
	kfmt.Printf(" - usb        Reports that no UHCI controller is detected\n")
	kfmt.Printf(" - usb reset  Reports that no UHCI controller is detected\n")
	kfmt.Printf(" - run        Executes a tiny int 0x80 syscall probe\n")
	kfmt.Printf(" - exit/quit  Exit the shell\n\n")
}

func printInfo() {
	vendor := cpuVendor()
	kfmt.Printf("\nKernel  corekernel %s\n", kernelVersion)
	kfmt.Printf("CPU     %s\n\n", vendor)
}

func cpuVendor() string {
	_, ebx, ecx, edx := cpu.ID(0)
	var b [12]byte
	putLE32(b[0:4], ebx)
	putLE32(b[4:8], edx)
	putLE32(b[8:12], ecx)
	return string(b[:])
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func printFAT() {
	bpb, ok := fat32.Current()
	if !ok {
		kfmt.Printf("fat: volume not mounted\n")
		return
	}
	kfmt.Printf("BytesPerSector:    %d\n", uint64(bpb.BytesPerSector))
	kfmt.Printf("SectorsPerCluster: %d\n", uint64(bpb.SectorsPerCluster))
	kfmt.Printf("ReservedSectors:   %d\n", uint64(bpb.ReservedSectors))
	kfmt.Printf("NumberOfFATs:      %d\n", uint64(bpb.NumberOfFATs))
	kfmt.Printf("SectorsPerFAT:     %d\n", uint64(bpb.SectorsPerFAT))
	kfmt.Printf("RootCluster:       %d\n", uint64(bpb.RootCluster))
}

// maxExecSize is the fixed buffer size the reference shell reads the HELLO
// payload into before handing it to the ELF loader.
const maxExecSize = 4608

func execHello() {
	kfmt.Printf("Reading executable from disk\n")
	var buf [maxExecSize]byte
	n, err := fat32.ReadFile("HELLO", buf[:])
	if err != nil {
		kfmt.Printf("exec: %s\n", err.Error())
		return
	}
	ret, err := loader.LoadAndRun(buf[:n])
	if err != nil {
		kfmt.Printf("exec: %s\n", err.Error())
		return
	}
	kfmt.Printf("exec: entry point returned %d\n", ret)
}

// runSyscallProbe writes a tiny "int 0x80; ret" stub to a freshly mapped
// page and calls it, exercising the syscall gate end to end.
func runSyscallProbe() {
	frame, err := allocator.AllocFrame()
	if err != nil {
		kfmt.Printf("run: %s\n", err.Error())
		return
	}

	page, err := vmm.EarlyReserveRegion(mem.PageSize)
	if err != nil {
		allocator.FreeFrame(frame)
		kfmt.Printf("run: %s\n", err.Error())
		return
	}
	if err := vmm.Map(vmm.PageFromAddress(page), frame, vmm.FlagPresent|vmm.FlagRW); err != nil {
		allocator.FreeFrame(frame)
		kfmt.Printf("run: %s\n", err.Error())
		return
	}
	defer func() {
		vmm.Unmap(vmm.PageFromAddress(page))
		allocator.FreeFrame(frame)
	}()

	stub := []byte{0xCD, 0x80, 0xC3} // int $0x80; ret
	for i, b := range stub {
		*(*byte)(unsafe.Pointer(page + uintptr(i))) = b
	}

	ret := loader.CallEntry(page)
	kfmt.Printf("run: syscall probe returned %d\n", ret)
}

func probeKmalloc() {
	frame, err := allocator.AllocFrame()
	if err != nil {
		kfmt.Printf("kmalloc: %s\n", err.Error())
		return
	}
	kfmt.Printf("\n%d byte block allocated at physical address %x\n", uint64(mem.PageSize), uint64(frame.Address()))
	allocator.FreeFrame(frame)
}

var (
	serialOutputOn bool
	debugTracesOn  bool
)

func toggleSerial() {
	serialOutputOn = !serialOutputOn
	kfmt.Printf("Kernel serial output is %s\n", onOff(serialOutputOn))
}

func toggleDebug() {
	debugTracesOn = !debugTracesOn
	kfmt.Printf("Kernel debug traces are %s\n", onOff(debugTracesOn))
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

// raiseDebugException executes "int $3", triggering the debug exception
// handler so the "panic" command can exercise the fault path on demand.
func raiseDebugException()

// reboot clears the IDTR and raises an interrupt with no installed gate,
// which triple-faults the CPU and causes firmware to restart the machine.
func reboot()
