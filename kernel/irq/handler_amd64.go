package irq

import (
	"corekernel/kernel"
	"corekernel/kernel/kfmt"
	"unsafe"
)

// ExceptionNum defines an exception number that can be
// passed to the HandleException and HandleExceptionWithCode
// functions.
type ExceptionNum uint8

const (
	// DoubleFault occurs when an exception is unhandled
	// or when an exception occurs while the CPU is
	// trying to call an exception handler.
	DoubleFault = ExceptionNum(8)

	// GPFException is raised when a general protection fault occurs.
	GPFException = ExceptionNum(13)

	// PageFaultException is raised when a PDT or
	// PDT-entry is not present or when a privilege
	// and/or RW protection check fails.
	PageFaultException = ExceptionNum(14)
)

const syscallVector = 0x80

// ExceptionHandler is a function that handles an exception that does not push
// an error code to the stack. If the handler returns, any modifications to the
// supplied Frame and/or Regs pointers will be propagated back to the location
// where the exception occurred.
type ExceptionHandler func(*Frame, *Regs)

// ExceptionHandlerWithCode is a function that handles an exception that pushes
// an error code to the stack. If the handler returns, any modifications to the
// supplied Frame and/or Regs pointers will be propagated back to the location
// where the exception occurred.
type ExceptionHandlerWithCode func(uint64, *Frame, *Regs)

// IRQHandler handles a hardware interrupt request line once it has been
// unmasked via HandleIRQ.
type IRQHandler func(*Frame, *Regs)

// SyscallHandler services a single syscall number. regs.RAX holds the
// syscall number on entry and the return value on exit.
type SyscallHandler func(*Frame, *Regs)

var hasErrorCode = [32]bool{
	8: true, 10: true, 11: true, 12: true, 13: true, 14: true, 17: true,
}

var (
	exceptionHandlers         [32]ExceptionHandler
	exceptionHandlersWithCode [32]ExceptionHandlerWithCode
	irqHandlers               [16]IRQHandler
	syscallHandlers           [256]SyscallHandler
)

// HandleException registers an exception handler (without an error code) for
// the given interrupt number and installs its IDT gate.
func HandleException(exceptionNum ExceptionNum, handler ExceptionHandler) {
	exceptionHandlers[exceptionNum] = handler
	installGate(uint8(exceptionNum), gateTrap)
}

// HandleExceptionWithCode registers an exception handler (with an error code)
// for the given interrupt number and installs its IDT gate.
func HandleExceptionWithCode(exceptionNum ExceptionNum, handler ExceptionHandlerWithCode) {
	exceptionHandlersWithCode[exceptionNum] = handler
	installGate(uint8(exceptionNum), gateTrap)
}

// HandleIRQ registers a handler for hardware interrupt request line
// (0-15), installs its IDT gate and unmasks exactly that line on the PIC.
func HandleIRQ(line uint8, handler IRQHandler) {
	irqHandlers[line] = handler
	installGate(32+line, gateInterrupt)
	unmaskIRQ(line)
}

// HandleSyscall registers the handler invoked for syscall number num when a
// process executes `int 0x80`.
func HandleSyscall(num uint8, handler SyscallHandler) {
	syscallHandlers[num] = handler
	installGate(syscallVector, gateInterrupt)
}

func installGate(vector uint8, flags uint8) {
	if addr := isrAddr(vector); addr != 0 {
		setGate(vector, addr, flags)
	}
}

// stackFrame overlays the bytes isrCommon assembles on the stack before
// calling into Go: the saved GP registers, the vector/error-code pair
// pushed by the ISR stub and the CPU-pushed exception frame, in that exact
// order.
type stackFrame struct {
	Regs
	Vector    uint64
	ErrorCode uint64
	Frame
}

// dispatchTrampoline is invoked by isrCommon with a pointer to the
// stackFrame assembled for the interrupt that just occurred.
func dispatchTrampoline(sfAddr uintptr) {
	sf := (*stackFrame)(unsafe.Pointer(sfAddr))
	vector := uint8(sf.Vector)

	switch {
	case vector < 32:
		dispatchException(vector, sf)
	case vector >= 32 && vector < 48:
		line := vector - 32
		if h := irqHandlers[line]; h != nil {
			h(&sf.Frame, &sf.Regs)
		}
		sendEOI(line)
	case vector == syscallVector:
		num := uint8(sf.Regs.RAX)
		if h := syscallHandlers[num]; h != nil {
			h(&sf.Frame, &sf.Regs)
		}
	}
}

func dispatchException(vector uint8, sf *stackFrame) {
	if hasErrorCode[vector] {
		if h := exceptionHandlersWithCode[vector]; h != nil {
			h(sf.ErrorCode, &sf.Frame, &sf.Regs)
			return
		}
	} else if h := exceptionHandlers[vector]; h != nil {
		h(&sf.Frame, &sf.Regs)
		return
	}

	kfmt.Printf("unhandled exception %d\n", vector)
	sf.Frame.Print()
	sf.Regs.Print()
	kfmt.PrintStackTrace(uintptr(sf.Regs.RBP))
	kfmt.Panic(&kernel.Error{Module: "irq", Message: "unhandled exception"})
}

// isrAddr returns the address of the assembly stub that handles vector, or
// 0 if no stub was generated for it.
func isrAddr(vector uint8) uintptr

// idtLoad executes LIDT against the descriptor at idtrAddr.
func idtLoad(idtrAddr uintptr)
