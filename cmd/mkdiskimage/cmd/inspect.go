package cmd

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"corekernel/cmd/mkdiskimage/internal/fatimage"
)

func newInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <image>",
		Short: "print the BPB and root directory of a generated image",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runInspect(args[0])
		},
	}
	return cmd
}

func runInspect(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "inspect: reading %s", path)
	}
	if len(raw) < fatimage.SectorSize {
		return errors.Errorf("inspect: %s is smaller than one sector", path)
	}

	sig := binary.LittleEndian.Uint16(raw[510:512])
	fmt.Printf("image:          %s\n", humanize.Bytes(uint64(len(raw))))
	fmt.Printf("boot signature: 0x%04X (want 0xAA55)\n", sig)

	reservedSectors := binary.LittleEndian.Uint16(raw[14:16])
	numberOfFATs := raw[16]
	sectorsPerFAT := binary.LittleEndian.Uint32(raw[36:40])
	rootDirOffset := (int(reservedSectors) + int(numberOfFATs)*int(sectorsPerFAT)) * fatimage.SectorSize
	if len(raw) < rootDirOffset+fatimage.SectorSize {
		return errors.New("inspect: image truncated before root directory")
	}
	root := raw[rootDirOffset : rootDirOffset+fatimage.SectorSize]
	for i := 0; i < fatimage.SectorSize/32; i++ {
		entry := root[i*32 : (i+1)*32]
		if entry[0] == 0 {
			break
		}
		size := binary.LittleEndian.Uint32(entry[28:32])
		fmt.Printf("  %-11s %s\n", entry[0:11], humanize.Bytes(uint64(size)))
	}
	return nil
}
