package irq

import (
	"testing"
	"unsafe"
)

func TestDispatchExceptionRoutesToCodedHandler(t *testing.T) {
	defer func() {
		exceptionHandlersWithCode[GPFException] = nil
	}()

	var gotCode uint64
	var gotFrame *Frame
	var gotRegs *Regs
	exceptionHandlersWithCode[GPFException] = func(code uint64, f *Frame, r *Regs) {
		gotCode = code
		gotFrame = f
		gotRegs = r
	}

	sf := &stackFrame{
		Regs:      Regs{RAX: 42},
		ErrorCode: 7,
		Frame:     Frame{RIP: 0x1000},
	}

	dispatchException(uint8(GPFException), sf)

	if gotCode != 7 {
		t.Fatalf("expected error code 7, got %d", gotCode)
	}
	if gotFrame.RIP != 0x1000 {
		t.Fatalf("expected frame to be passed through, got %+v", gotFrame)
	}
	if gotRegs.RAX != 42 {
		t.Fatalf("expected regs to be passed through, got %+v", gotRegs)
	}
}

func TestDispatchExceptionRoutesToPlainHandler(t *testing.T) {
	defer func() {
		exceptionHandlers[0] = nil
	}()

	var called bool
	exceptionHandlers[0] = func(f *Frame, r *Regs) {
		called = true
	}

	sf := &stackFrame{}
	dispatchException(0, sf)

	if !called {
		t.Fatal("expected the divide-by-zero handler to be invoked")
	}
}

func TestDispatchTrampolineRoutesSyscall(t *testing.T) {
	defer func() { syscallHandlers[3] = nil }()

	var gotNum uint64
	syscallHandlers[3] = func(f *Frame, r *Regs) {
		gotNum = r.RAX
		r.RAX = 0
	}

	sf := &stackFrame{
		Regs:   Regs{RAX: 3},
		Vector: syscallVector,
	}

	dispatchTrampoline(uintptr(unsafe.Pointer(sf)))

	if gotNum != 3 {
		t.Fatalf("expected syscall handler to see RAX=3, got %d", gotNum)
	}
}
