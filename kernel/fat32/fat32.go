// Package fat32 implements just enough of the FAT32 on-disk format to mount
// a single volume and read a file out of its root directory by 8.3 name.
// There is no write support, no long-file-name support and no support for
// root directories that span more than one sector; see ReadFile for the
// documented cap.
package fat32

import (
	"corekernel/kernel"
	"corekernel/kernel/disk"
	"encoding/binary"
)

const sectorSize = 512

// BPB holds the subset of the BIOS Parameter Block fields this package
// consumes, decoded from sector 0 of the volume. Field names and offsets
// are ground-truthed against both the reference kernel's EBPB struct and
// the tagged-struct decoding style of a FAT boot sector used elsewhere in
// the retrieval pack.
type BPB struct {
	BytesPerSector   uint16
	SectorsPerCluster uint8
	ReservedSectors  uint16
	NumberOfFATs     uint8
	SectorsPerFAT    uint32
	RootCluster      uint32

	// firstDataSector and rootDirSector are derived once at Mount time.
	firstDataSector uint32
	rootDirSector   uint32
}

var (
	errBadSignature = &kernel.Error{Module: "fat32", Message: "sector 0 is not a valid FAT32 BPB"}
	errNotFound     = &kernel.Error{Module: "fat32", Message: "file not found in root directory"}
	errNotMounted   = &kernel.Error{Module: "fat32", Message: "volume not mounted"}

	// readSectorFn is a test seam for disk.ReadSector.
	readSectorFn = disk.ReadSector
)

// bootSectorSignatureOffset holds the 0x55AA boot sector signature that
// every FAT volume (and plain MBR sector) ends with.
const (
	bootSectorSignatureOffset = 510
	bootSectorSignature       = 0xAA55
)

var mounted *BPB

// Current returns the BPB of the volume mounted by the most recent call to
// Mount, or ok=false if no volume has been mounted yet.
func Current() (*BPB, bool) {
	return mounted, mounted != nil
}

// Mount reads sector 0 of the volume, validates the boot sector signature
// and decodes the BPB fields this package needs. The decoded BPB is cached
// for subsequent calls to ReadFile.
func Mount() (*BPB, *kernel.Error) {
	var sector [sectorSize]byte
	if err := readSectorFn(0, sector[:]); err != nil {
		return nil, err
	}

	if binary.LittleEndian.Uint16(sector[bootSectorSignatureOffset:]) != bootSectorSignature {
		return nil, errBadSignature
	}

	bpb := &BPB{
		BytesPerSector:    binary.LittleEndian.Uint16(sector[11:13]),
		SectorsPerCluster: sector[13],
		ReservedSectors:   binary.LittleEndian.Uint16(sector[14:16]),
		NumberOfFATs:      sector[16],
		SectorsPerFAT:     binary.LittleEndian.Uint32(sector[36:40]),
		RootCluster:       binary.LittleEndian.Uint32(sector[44:48]),
	}

	bpb.firstDataSector = uint32(bpb.ReservedSectors) + uint32(bpb.NumberOfFATs)*bpb.SectorsPerFAT
	bpb.rootDirSector = sectorOfCluster(bpb, bpb.RootCluster)

	mounted = bpb
	return bpb, nil
}

// sectorOfCluster converts a FAT32 cluster number to the first LBA sector
// that stores its data.
func sectorOfCluster(bpb *BPB, cluster uint32) uint32 {
	return (cluster-2)*uint32(bpb.SectorsPerCluster) + bpb.firstDataSector
}

const (
	dirEntrySize = 32
	// dirEntriesPerSector is the open-question cap documented in the
	// design notes: only the root directory's first sector (16 entries
	// on a 512-byte sector) is ever walked. A multi-sector root
	// directory is not supported.
	dirEntriesPerSector = sectorSize / dirEntrySize

	dirEntryUnused       = 0x00
	dirEntryAttrLongName = 0x0F

	fatEntryMask  = 0x0FFFFFFF
	fatEOCMinimum = 0x0FFFFFF8
)

type dirEntry struct {
	name         [11]byte
	attr         uint8
	firstCluster uint32
	size         uint32
}

func parseDirEntry(raw []byte) dirEntry {
	var e dirEntry
	copy(e.name[:], raw[0:11])
	e.attr = raw[11]
	hi := binary.LittleEndian.Uint16(raw[20:22])
	lo := binary.LittleEndian.Uint16(raw[26:28])
	e.firstCluster = uint32(hi)<<16 | uint32(lo)
	e.size = binary.LittleEndian.Uint32(raw[28:32])
	return e
}

// name8_3 renders the fixed 11-byte directory name field as a trimmed
// "NAME.EXT" (or bare "NAME" when there is no extension) string for
// comparison against the caller-supplied filename.
func name8_3(raw [11]byte) string {
	name := trimSpace(raw[0:8])
	ext := trimSpace(raw[8:11])
	if ext == "" {
		return name
	}
	return name + "." + ext
}

func trimSpace(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	return string(b[:end])
}

// ReadFile locates name (an 8.3-style name, e.g. "HELLO" or "HELLO.ELF") in
// the root directory, walks its FAT cluster chain and streams its contents
// into buf, stopping after len(buf) bytes. It returns the number of bytes
// written.
//
// Only the first sector of the root directory (16 entries) is scanned; a
// root directory spanning more than one sector is not supported. Volumes
// must be Mounted first.
func ReadFile(name string, buf []byte) (int, *kernel.Error) {
	if mounted == nil {
		return 0, errNotMounted
	}
	bpb := mounted

	var rootSector [sectorSize]byte
	if err := readSectorFn(bpb.rootDirSector, rootSector[:]); err != nil {
		return 0, err
	}

	for i := 0; i < dirEntriesPerSector; i++ {
		raw := rootSector[i*dirEntrySize : (i+1)*dirEntrySize]
		if raw[0] == dirEntryUnused {
			break
		}
		if raw[11] == dirEntryAttrLongName {
			continue
		}

		entry := parseDirEntry(raw)
		if name8_3(entry.name) != name {
			continue
		}

		return readChain(bpb, entry.firstCluster, buf)
	}

	return 0, errNotFound
}

// readChain streams every cluster in the chain starting at firstCluster
// into buf, stopping early if buf fills up before the chain ends.
func readChain(bpb *BPB, cluster uint32, buf []byte) (int, *kernel.Error) {
	written := 0
	for cluster != 0 && cluster < fatEOCMinimum {
		sector := sectorOfCluster(bpb, cluster)
		for s := uint8(0); s < bpb.SectorsPerCluster; s++ {
			if written >= len(buf) {
				return written, nil
			}

			var sectorBuf [sectorSize]byte
			if err := readSectorFn(sector+uint32(s), sectorBuf[:]); err != nil {
				return written, err
			}

			n := copy(buf[written:], sectorBuf[:])
			written += n
		}

		next, err := nextCluster(bpb, cluster)
		if err != nil {
			return written, err
		}
		cluster = next
	}
	return written, nil
}

// nextCluster reads the FAT entry for cluster and returns the next cluster
// in the chain, or 0 if cluster is the last one (the FAT entry's value is
// at or above the end-of-chain sentinel).
func nextCluster(bpb *BPB, cluster uint32) (uint32, *kernel.Error) {
	fatOffset := cluster * 4
	fatSector := uint32(bpb.ReservedSectors) + fatOffset/sectorSize
	entOffset := fatOffset % sectorSize

	var sector [sectorSize]byte
	if err := readSectorFn(fatSector, sector[:]); err != nil {
		return 0, err
	}

	value := binary.LittleEndian.Uint32(sector[entOffset:entOffset+4]) & fatEntryMask
	if value >= fatEOCMinimum {
		return 0, nil
	}
	return value, nil
}
