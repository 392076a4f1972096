package elf

import (
	"encoding/binary"
	"testing"
)

// buildFixture assembles a minimal ELF64 image with one PROGBITS section,
// a .symtab, a .strtab and a .shstrtab, matching the layout real linkers
// produce closely enough to exercise this package's parsing paths.
func buildFixture(t *testing.T) []byte {
	t.Helper()

	const (
		textAddr = 0x401000
		textSize = 0x10
	)

	shstrtab := []byte{0}
	shstrtab = append(shstrtab, []byte(".text\x00.symtab\x00.strtab\x00.shstrtab\x00")...)
	textNameOff := uint32(1)
	symtabNameOff := textNameOff + uint32(len(".text\x00"))
	strtabNameOff := symtabNameOff + uint32(len(".symtab\x00"))
	shstrtabNameOff := strtabNameOff + uint32(len(".strtab\x00"))

	strtab := []byte{0}
	strtab = append(strtab, []byte("_start\x00")...)
	symName := uint32(1)

	var symtab []byte
	symtab = append(symtab, make([]byte, symbolSize)...) // null symbol
	sym := make([]byte, symbolSize)
	binary.LittleEndian.PutUint32(sym[0:4], symName)
	binary.LittleEndian.PutUint64(sym[8:16], textAddr)
	binary.LittleEndian.PutUint64(sym[16:24], textSize)
	symtab = append(symtab, sym...)

	text := make([]byte, textSize)

	// Lay out file content after the 64-byte header.
	var buf []byte
	buf = append(buf, make([]byte, headerSize)...)

	textOff := uint64(len(buf))
	buf = append(buf, text...)
	symtabOff := uint64(len(buf))
	buf = append(buf, symtab...)
	strtabOff := uint64(len(buf))
	buf = append(buf, strtab...)
	shstrtabOff := uint64(len(buf))
	buf = append(buf, shstrtab...)

	shOff := uint64(len(buf))
	sections := []Section{
		{NameOff: 0, Type: 0},
		{NameOff: textNameOff, Type: SectionTypeProgBits, Addr: textAddr, Offset: textOff, Size: textSize},
		{NameOff: symtabNameOff, Type: SectionTypeSymTab, Offset: symtabOff, Size: uint64(len(symtab))},
		{NameOff: strtabNameOff, Type: SectionTypeStrTab, Offset: strtabOff, Size: uint64(len(strtab))},
		{NameOff: shstrtabNameOff, Type: SectionTypeStrTab, Offset: shstrtabOff, Size: uint64(len(shstrtab))},
	}
	for _, s := range sections {
		sh := make([]byte, sectionSize)
		binary.LittleEndian.PutUint32(sh[0:4], s.NameOff)
		binary.LittleEndian.PutUint32(sh[4:8], s.Type)
		binary.LittleEndian.PutUint64(sh[16:24], s.Addr)
		binary.LittleEndian.PutUint64(sh[24:32], s.Offset)
		binary.LittleEndian.PutUint64(sh[32:40], s.Size)
		buf = append(buf, sh...)
	}

	buf[0], buf[1], buf[2], buf[3] = magic0, magic1, magic2, magic3
	buf[4] = class64
	binary.LittleEndian.PutUint64(buf[24:32], textAddr)
	binary.LittleEndian.PutUint64(buf[40:48], shOff)
	binary.LittleEndian.PutUint16(buf[58:60], sectionSize)
	binary.LittleEndian.PutUint16(buf[60:62], uint16(len(sections)))
	binary.LittleEndian.PutUint16(buf[62:64], 4) // .shstrtab index

	return buf
}

func TestParseHeaderRejectsBadMagic(t *testing.T) {
	if _, err := ParseHeader([]byte("not an elf")); err == nil {
		t.Fatal("expected error for non-ELF buffer")
	}
}

func TestParseHeaderAndSections(t *testing.T) {
	raw := buildFixture(t)

	hdr, err := ParseHeader(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hdr.Entry != 0x401000 {
		t.Errorf("expected entry 0x401000, got 0x%x", hdr.Entry)
	}

	sections := Sections(raw, hdr)
	if len(sections) != 5 {
		t.Fatalf("expected 5 sections, got %d", len(sections))
	}

	min, max := LoadSpan(raw, hdr)
	if min != 0x401000 || max != 0x401010 {
		t.Errorf("expected load span [0x401000,0x401010), got [0x%x,0x%x)", min, max)
	}
}

func TestSymbols(t *testing.T) {
	raw := buildFixture(t)
	hdr, err := ParseHeader(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	syms := Symbols(raw, hdr)
	if len(syms) != 1 {
		t.Fatalf("expected 1 symbol, got %d", len(syms))
	}
	if syms[0].Name != "_start" || syms[0].Value != 0x401000 || syms[0].Size != 0x10 {
		t.Errorf("unexpected symbol: %+v", syms[0])
	}
}
