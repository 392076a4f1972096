package fatimage

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildProducesValidBootSignature(t *testing.T) {
	img, err := Build([]File{{Name: "HELLO", Data: []byte("hi")}})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(img), SectorSize)
	require.Equal(t, uint16(bootSignature), binary.LittleEndian.Uint16(img[510:512]))
}

func TestBuildWritesRootDirectoryEntry(t *testing.T) {
	data := []byte("hello, kernel")
	img, err := Build([]File{{Name: "HELLO", Data: data}})
	require.NoError(t, err)

	rootDirOffset := SectorSize * 2
	entry := img[rootDirOffset : rootDirOffset+32]
	require.Equal(t, "HELLO      ", string(entry[0:11]))
	require.Equal(t, uint32(len(data)), binary.LittleEndian.Uint32(entry[28:32]))
}

func TestBuildRejectsTooManyFiles(t *testing.T) {
	files := make([]File, dirEntriesPerSector+1)
	for i := range files {
		files[i] = File{Name: "F", Data: []byte{0}}
	}
	_, err := Build(files)
	require.ErrorIs(t, err, errTooManyFiles)
}

func TestBuildPadsDataToWholeClusters(t *testing.T) {
	img, err := Build([]File{{Name: "HELLO", Data: make([]byte, 10)}})
	require.NoError(t, err)
	// reserved sector + 1 FAT sector + 1 root dir sector + 1 data sector
	require.Equal(t, 4*SectorSize, len(img))
}
