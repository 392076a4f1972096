// Command mkdiskimage builds the FAT32 boot disk image consumed by the
// kernel's ATA PIO driver from a manifest of host files.
package main

import (
	"fmt"
	"os"

	"corekernel/cmd/mkdiskimage/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
