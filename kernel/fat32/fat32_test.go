package fat32

import (
	"corekernel/kernel"
	"encoding/binary"
	"testing"
)

// fakeVolume simulates a FAT32-formatted disk image as a flat slice of
// sectors, addressable by LBA, so this package's BPB/directory/cluster-chain
// logic can be exercised without real ATA hardware.
type fakeVolume struct {
	sectors map[uint32][sectorSize]byte
}

func newFakeVolume() *fakeVolume {
	return &fakeVolume{sectors: make(map[uint32][sectorSize]byte)}
}

func (v *fakeVolume) readSector(lba uint32, buf []byte) *kernel.Error {
	s := v.sectors[lba]
	copy(buf, s[:])
	return nil
}

func (v *fakeVolume) setSector(lba uint32, data []byte) {
	var s [sectorSize]byte
	copy(s[:], data)
	v.sectors[lba] = s
}

// buildVolume assembles a minimal volume with one file ("HELLO") whose
// content spans two clusters, matching end-to-end scenario 3 from the
// design notes: root directory's third entry names a file whose FAT chain
// is 5 -> 6 -> EOC.
func buildVolume(t *testing.T) (*fakeVolume, []byte) {
	t.Helper()

	const (
		reservedSectors   = 1
		numberOfFATs      = 1
		sectorsPerFAT     = 1
		sectorsPerCluster = 1
		rootCluster       = 2
	)

	v := newFakeVolume()

	// Sector 0: boot sector / BPB.
	var boot [sectorSize]byte
	binary.LittleEndian.PutUint16(boot[11:13], sectorSize)
	boot[13] = sectorsPerCluster
	binary.LittleEndian.PutUint16(boot[14:16], reservedSectors)
	boot[16] = numberOfFATs
	binary.LittleEndian.PutUint32(boot[36:40], sectorsPerFAT)
	binary.LittleEndian.PutUint32(boot[44:48], rootCluster)
	binary.LittleEndian.PutUint16(boot[bootSectorSignatureOffset:], bootSectorSignature)
	v.setSector(0, boot[:])

	firstDataSector := uint32(reservedSectors) + uint32(numberOfFATs)*sectorsPerFAT
	sectorOf := func(cluster uint32) uint32 { return (cluster-2)*sectorsPerCluster + firstDataSector }

	// FAT table at sector `reservedSectors`: chain 5 -> 6 -> EOC.
	var fat [sectorSize]byte
	binary.LittleEndian.PutUint32(fat[5*4:5*4+4], 6)
	binary.LittleEndian.PutUint32(fat[6*4:6*4+4], 0x0FFFFFF8)
	v.setSector(reservedSectors, fat[:])

	// Root directory at the root cluster's sector: a volume label and an
	// unrelated file come first, the third entry is HELLO.
	var root [sectorSize]byte
	copy(root[0:11], "COREKERNEL ")
	root[11] = 0x08 // volume label attribute
	copy(root[dirEntrySize:dirEntrySize+11], "README  TXT")
	entry := root[2*dirEntrySize : 3*dirEntrySize]
	copy(entry[0:8], "HELLO   ")
	copy(entry[8:11], "   ")
	binary.LittleEndian.PutUint16(entry[20:22], 0)
	binary.LittleEndian.PutUint16(entry[26:28], 5)
	binary.LittleEndian.PutUint32(entry[28:32], 1024)
	v.setSector(sectorOf(rootCluster), root[:])

	// Cluster 5 and 6 data.
	cluster5 := make([]byte, sectorSize)
	for i := range cluster5 {
		cluster5[i] = 0xAA
	}
	cluster6 := make([]byte, sectorSize)
	for i := range cluster6 {
		cluster6[i] = 0xBB
	}
	v.setSector(sectorOf(5), cluster5)
	v.setSector(sectorOf(6), cluster6)

	want := append(append([]byte{}, cluster5...), cluster6...)
	return v, want
}

func withFakeVolume(t *testing.T, v *fakeVolume) {
	t.Helper()
	orig := readSectorFn
	readSectorFn = v.readSector
	t.Cleanup(func() { readSectorFn = orig })
}

func TestMountParsesBPB(t *testing.T) {
	v, _ := buildVolume(t)
	withFakeVolume(t, v)

	bpb, err := Mount()
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if bpb.RootCluster != 2 {
		t.Errorf("RootCluster = %d, want 2", bpb.RootCluster)
	}
	if bpb.SectorsPerCluster != 1 {
		t.Errorf("SectorsPerCluster = %d, want 1", bpb.SectorsPerCluster)
	}
}

func TestMountRejectsBadSignature(t *testing.T) {
	v := newFakeVolume()
	withFakeVolume(t, v)

	if _, err := Mount(); err == nil {
		t.Fatal("expected error for missing boot signature")
	}
}

func TestReadFileWalksClusterChain(t *testing.T) {
	v, want := buildVolume(t)
	withFakeVolume(t, v)

	if _, err := Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	buf := make([]byte, 1024)
	n, err := ReadFile("HELLO", buf)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if n != 1024 {
		t.Fatalf("n = %d, want 1024", n)
	}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, buf[i], want[i])
		}
	}
}

func TestReadFileNotFound(t *testing.T) {
	v, _ := buildVolume(t)
	withFakeVolume(t, v)

	if _, err := Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	buf := make([]byte, 16)
	if _, err := ReadFile("NOPE", buf); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestReadFileStopsAtBufferLength(t *testing.T) {
	v, _ := buildVolume(t)
	withFakeVolume(t, v)

	if _, err := Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	buf := make([]byte, 100)
	n, err := ReadFile("HELLO", buf)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if n != 100 {
		t.Fatalf("n = %d, want 100 (truncated to buffer length)", n)
	}
	for i := 0; i < 100; i++ {
		if buf[i] != 0xAA {
			t.Fatalf("byte %d = %#x, want 0xAA", i, buf[i])
		}
	}
}

func TestUnusedEntryTerminatesDirectory(t *testing.T) {
	v, _ := buildVolume(t)
	// Zero out the HELLO entry's name byte so it reads as unused, which
	// must terminate the scan before any later entry is considered.
	const rootDirSector = 2
	root := v.sectors[rootDirSector]
	root[2*dirEntrySize] = dirEntryUnused
	v.sectors[rootDirSector] = root
	withFakeVolume(t, v)

	if _, err := Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	buf := make([]byte, 16)
	if _, err := ReadFile("HELLO", buf); err == nil {
		t.Fatal("expected not-found error once the entry reads as unused")
	}
}
