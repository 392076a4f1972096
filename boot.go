package main

import "corekernel/kernel/kmain"

// main is the ELF entry point Limine jumps to once it hands off control.
// It is intentionally thin: the real boot sequence lives in kmain.Kmain so
// that it can be covered by tests that never touch package main.
func main() {
	kmain.Kmain()
}
