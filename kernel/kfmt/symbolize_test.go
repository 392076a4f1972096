package kfmt

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
	"unsafe"
)

const symbolSize = 24

func fixtureImage(symName string, symValue, symSize uint64) []byte {
	shstrtab := []byte{0}
	shstrtab = append(shstrtab, []byte(".symtab\x00.strtab\x00.shstrtab\x00")...)

	strtab := []byte{0}
	strtab = append(strtab, []byte(symName+"\x00")...)

	var symtab []byte
	symtab = append(symtab, make([]byte, symbolSize)...)
	sym := make([]byte, symbolSize)
	binary.LittleEndian.PutUint32(sym[0:4], 1)
	binary.LittleEndian.PutUint64(sym[8:16], symValue)
	binary.LittleEndian.PutUint64(sym[16:24], symSize)
	symtab = append(symtab, sym...)

	var buf []byte
	buf = append(buf, make([]byte, 64)...)
	symtabOff := uint64(len(buf))
	buf = append(buf, symtab...)
	strtabOff := uint64(len(buf))
	buf = append(buf, strtab...)
	shstrtabOff := uint64(len(buf))
	buf = append(buf, shstrtab...)

	shOff := uint64(len(buf))
	type sh struct {
		nameOff uint32
		typ     uint32
		addr    uint64
		off     uint64
		size    uint64
	}
	headers := []sh{
		{},
		{nameOff: 1, typ: 2, off: symtabOff, size: uint64(len(symtab))},
		{nameOff: 9, typ: 3, off: strtabOff, size: uint64(len(strtab))},
		{nameOff: 17, typ: 3, off: shstrtabOff, size: uint64(len(shstrtab))},
	}
	for _, h := range headers {
		row := make([]byte, 64)
		binary.LittleEndian.PutUint32(row[0:4], h.nameOff)
		binary.LittleEndian.PutUint32(row[4:8], h.typ)
		binary.LittleEndian.PutUint64(row[16:24], h.addr)
		binary.LittleEndian.PutUint64(row[24:32], h.off)
		binary.LittleEndian.PutUint64(row[32:40], h.size)
		buf = append(buf, row...)
	}

	buf[0], buf[1], buf[2], buf[3] = 0x7f, 'E', 'L', 'F'
	buf[4] = 2
	binary.LittleEndian.PutUint64(buf[40:48], shOff)
	binary.LittleEndian.PutUint16(buf[58:60], 64)
	binary.LittleEndian.PutUint16(buf[60:62], uint16(len(headers)))
	binary.LittleEndian.PutUint16(buf[62:64], 3)
	return buf
}

func TestSymbolicateResolvesKnownAddress(t *testing.T) {
	orig := kernelImageFn
	defer func() { kernelImageFn = orig }()

	kernelImageFn = func() []byte { return fixtureImage("kmain", 0x1000, 0x40) }

	if name := symbolicate(0x1020); name != "kmain" {
		t.Errorf("expected symbol kmain, got %q", name)
	}
}

func TestSymbolicateUnknownAddress(t *testing.T) {
	orig := kernelImageFn
	defer func() { kernelImageFn = orig }()

	kernelImageFn = func() []byte { return fixtureImage("kmain", 0x1000, 0x40) }

	if name := symbolicate(0x5000); name != "<unknown>" {
		t.Errorf("expected <unknown>, got %q", name)
	}
}

func TestSymbolicateNoKernelImage(t *testing.T) {
	orig := kernelImageFn
	defer func() { kernelImageFn = orig }()

	kernelImageFn = func() []byte { return nil }

	if name := symbolicate(0x1000); name != "<unknown>" {
		t.Errorf("expected <unknown> when no kernel image is available, got %q", name)
	}
}

func TestPrintStackTraceWalksFramePointerChain(t *testing.T) {
	orig := kernelImageFn
	origWalker := frameWalkerFn
	defer func() {
		kernelImageFn = orig
		frameWalkerFn = origWalker
	}()

	kernelImageFn = func() []byte { return fixtureImage("kmain", 0x1000, 0x40) }

	// Build a synthetic one-frame chain: rbp -> [prevRBP=0, savedRIP=0x1010]
	var stack [2]uintptr
	rbp := uintptr(unsafe.Pointer(&stack[0]))
	stack[0] = 0
	stack[1] = 0x1010
	frameWalkerFn = func(start uintptr, visit func(uintptr) bool) {
		origWalker(start, visit)
	}

	var buf bytes.Buffer
	SetOutputSink(&buf)
	defer SetOutputSink(nil)

	PrintStackTrace(rbp)

	out := buf.String()
	if !strings.Contains(out, "stack trace:") {
		t.Errorf("expected a stack trace header, got %q", out)
	}
	if !strings.Contains(out, "kmain") {
		t.Errorf("expected the resolved symbol name, got %q", out)
	}
}

func TestPrintStackTraceNoFrames(t *testing.T) {
	var buf bytes.Buffer
	SetOutputSink(&buf)
	defer SetOutputSink(nil)

	PrintStackTrace(0)

	if out := buf.String(); !strings.Contains(out, "stack trace:") {
		t.Errorf("expected a stack trace header even with no frames, got %q", out)
	}
}
