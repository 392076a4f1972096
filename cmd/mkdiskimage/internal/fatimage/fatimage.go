// Package fatimage builds a minimal FAT32 disk image suitable for booting
// the kernel's ATA PIO driver against: one BPB, one FAT, a single-sector
// root directory and a contiguous data region. It is the host-side
// counterpart of corekernel/kernel/fat32's reader and intentionally shares
// its simplifications (no long filenames, root directory capped at one
// sector).
package fatimage

import (
	"encoding/binary"

	"github.com/go-restruct/restruct"
	"github.com/pkg/errors"
)

const (
	SectorSize        = 512
	sectorsPerCluster = 1
	reservedSectors   = 1
	numberOfFATs      = 1
	rootCluster       = 2
	bootSignature     = 0xAA55

	dirEntrySize        = 32
	dirEntriesPerSector = SectorSize / dirEntrySize
	fatEntriesPerSector = SectorSize / 4
	fatEOC              = 0x0FFFFFF8
)

var byteOrder = binary.LittleEndian

// bpb mirrors the subset of BIOS Parameter Block fields the kernel's
// fat32 reader decodes. Field order and widths must match it exactly.
type bpb struct {
	_                 [11]byte // jump instruction + OEM name, unused by the reader
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumberOfFATs      uint8
	_                 [19]byte // root entry count, small sector count, media, FAT16 fields
	SectorsPerFAT     uint32
	_                 [4]byte // ext flags, fs version
	RootCluster       uint32
}

// File is a single named entry to embed in the volume's root directory.
type File struct {
	Name string
	Data []byte
}

// errTooManyFiles is returned when the manifest names more files than a
// single root directory sector (16 entries) can hold.
var errTooManyFiles = errors.New("fatimage: more than 16 files do not fit in a single-sector root directory")

// Build assembles a complete disk image containing files, laid out as
// contiguous clusters in manifest order, and returns the raw image bytes.
func Build(files []File) ([]byte, error) {
	if len(files) > dirEntriesPerSector {
		return nil, errTooManyFiles
	}

	clusterChains := make([][]uint32, len(files))
	nextCluster := uint32(rootCluster + 1)
	for i, f := range files {
		clusterCount := (len(f.Data) + SectorSize - 1) / SectorSize
		if clusterCount == 0 {
			clusterCount = 1
		}
		chain := make([]uint32, clusterCount)
		for c := 0; c < clusterCount; c++ {
			chain[c] = nextCluster
			nextCluster++
		}
		clusterChains[i] = chain
	}

	totalDataClusters := nextCluster - rootCluster
	sectorsPerFAT := uint32((int(nextCluster)*4 + SectorSize - 1) / SectorSize)
	if sectorsPerFAT == 0 {
		sectorsPerFAT = 1
	}

	boot := bpb{
		BytesPerSector:    SectorSize,
		SectorsPerCluster: sectorsPerCluster,
		ReservedSectors:   reservedSectors,
		NumberOfFATs:      numberOfFATs,
		SectorsPerFAT:     sectorsPerFAT,
		RootCluster:       rootCluster,
	}

	bootSector, err := restruct.Pack(byteOrder, &boot)
	if err != nil {
		return nil, errors.Wrap(err, "fatimage: packing BPB")
	}
	bootSector = append(bootSector, make([]byte, SectorSize-len(bootSector))...)
	byteOrder.PutUint16(bootSector[510:512], bootSignature)

	fatBytes := make([]byte, sectorsPerFAT*SectorSize)
	// Cluster 2 onward is the root directory cluster followed by every
	// file's chain; mark every occupied cluster as either chained or EOC.
	writeFATEntry(fatBytes, rootCluster, fatEOC)
	for _, chain := range clusterChains {
		for i, cluster := range chain {
			if i == len(chain)-1 {
				writeFATEntry(fatBytes, cluster, fatEOC)
			} else {
				writeFATEntry(fatBytes, cluster, chain[i+1])
			}
		}
	}

	rootDir := make([]byte, SectorSize)
	for i, f := range files {
		entry := rootDir[i*dirEntrySize : (i+1)*dirEntrySize]
		putName8_3(entry[0:11], f.Name)
		byteOrder.PutUint16(entry[20:22], uint16(clusterChains[i][0]>>16))
		byteOrder.PutUint16(entry[26:28], uint16(clusterChains[i][0]))
		byteOrder.PutUint32(entry[28:32], uint32(len(f.Data)))
	}

	dataRegion := make([]byte, 0, int(totalDataClusters)*SectorSize)
	dataRegion = append(dataRegion, rootDir...) // root directory occupies cluster 2

	// Append each file's data, padded to a whole number of clusters.
	for _, f := range files {
		clusterCount := (len(f.Data) + SectorSize - 1) / SectorSize
		if clusterCount == 0 {
			clusterCount = 1
		}
		padded := make([]byte, clusterCount*SectorSize)
		copy(padded, f.Data)
		dataRegion = append(dataRegion, padded...)
	}

	img := make([]byte, 0, len(bootSector)+len(fatBytes)+len(dataRegion))
	img = append(img, bootSector...)
	img = append(img, fatBytes...)
	img = append(img, dataRegion...)
	return img, nil
}

func writeFATEntry(fat []byte, cluster, value uint32) {
	off := cluster * 4
	byteOrder.PutUint32(fat[off:off+4], value&0x0FFFFFFF)
}

func putName8_3(dst []byte, name string) {
	for i := range dst {
		dst[i] = ' '
	}
	base := name
	ext := ""
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			base = name[:i]
			ext = name[i+1:]
			break
		}
	}
	if len(base) > 8 {
		base = base[:8]
	}
	if len(ext) > 3 {
		ext = ext[:3]
	}
	copy(dst[0:8], base)
	copy(dst[8:11], ext)
}
