// Command mkelffixture assembles minimal single-section ELF64 executables,
// used as test fixtures for the kernel's ELF loader and as the HELLO
// payload embedded into the boot disk image.
package main

import (
	"fmt"
	"os"

	"corekernel/cmd/mkelffixture/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
