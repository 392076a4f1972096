// Package elfbuild assembles minimal ELF64 executables: just a file header,
// one loadable PROGBITS section and its section-header string table. It
// exists to produce fixtures for the kernel's elf/loader packages and the
// HELLO payload embedded in the boot disk image, without depending on a
// real toolchain to compile them.
package elfbuild

import (
	"encoding/binary"

	"github.com/go-restruct/restruct"
	"github.com/pkg/errors"
)

const (
	class64     = 2
	dataLittle  = 1
	versionCur  = 1
	typeExec    = 2
	machineX8664 = 0x3E

	headerSize  = 64
	sectionSize = 64

	sectionTypeNull     = 0
	sectionTypeProgBits = 1
	sectionTypeStrTab   = 3

	sectionFlagAlloc     = 0x2
	sectionFlagExecInstr = 0x4
)

var byteOrder = binary.LittleEndian

// header mirrors the ELF64 file header exactly, field for field.
type header struct {
	Ident             [16]byte
	Type              uint16
	Machine           uint16
	Version           uint32
	Entry             uint64
	ProgramHeaderOff  uint64
	SectionHeaderOff  uint64
	Flags             uint32
	EHSize            uint16
	ProgramHeaderSize uint16
	ProgramHeaderNum  uint16
	SectionHeaderSize uint16
	SectionHeaderNum  uint16
	SectionNameIdx    uint16
}

// section mirrors an ELF64 section header exactly, field for field.
type section struct {
	NameOff   uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntSize   uint64
}

// Build assembles a single-section ELF64 executable: code is placed at
// loadAddr and entry is the virtual address (within [loadAddr,
// loadAddr+len(code))) the loader should jump to.
func Build(loadAddr, entry uint64, code []byte) ([]byte, error) {
	if entry < loadAddr || entry >= loadAddr+uint64(len(code)) {
		return nil, errors.New("elfbuild: entry point outside code section")
	}

	const shstrtab = "\x00.text\x00.shstrtab\x00"
	const textNameOff = 1
	const shstrtabNameOff = 7

	codeOffset := uint64(headerSize)
	shstrtabOffset := codeOffset + uint64(len(code))
	sectionHeaderOffset := shstrtabOffset + uint64(len(shstrtab))

	hdr := header{
		Ident:             [16]byte{0x7f, 'E', 'L', 'F', class64, dataLittle, versionCur},
		Type:              typeExec,
		Machine:           machineX8664,
		Version:           versionCur,
		Entry:             entry,
		SectionHeaderOff:  sectionHeaderOffset,
		EHSize:            headerSize,
		SectionHeaderSize: sectionSize,
		SectionHeaderNum:  3,
		SectionNameIdx:    2,
	}

	sections := []section{
		{Type: sectionTypeNull},
		{
			NameOff: textNameOff,
			Type:    sectionTypeProgBits,
			Flags:   sectionFlagAlloc | sectionFlagExecInstr,
			Addr:    loadAddr,
			Offset:  codeOffset,
			Size:    uint64(len(code)),
		},
		{
			NameOff: shstrtabNameOff,
			Type:    sectionTypeStrTab,
			Offset:  shstrtabOffset,
			Size:    uint64(len(shstrtab)),
		},
	}

	hdrBytes, err := restruct.Pack(byteOrder, &hdr)
	if err != nil {
		return nil, errors.Wrap(err, "elfbuild: packing file header")
	}

	out := make([]byte, 0, sectionHeaderOffset+uint64(len(sections))*sectionSize)
	out = append(out, hdrBytes...)
	out = append(out, code...)
	out = append(out, []byte(shstrtab)...)

	for i := range sections {
		secBytes, err := restruct.Pack(byteOrder, &sections[i])
		if err != nil {
			return nil, errors.Wrapf(err, "elfbuild: packing section header %d", i)
		}
		out = append(out, secBytes...)
	}

	return out, nil
}
