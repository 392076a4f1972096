package loader

// callEntry transfers control to entryAddr with no arguments and returns
// whatever value it left in AX. Scratch registers are cleared first so the
// loaded image starts from a known state rather than inheriting leftover
// values from the loader's own stack frame.
func callEntry(entryAddr uintptr) int64
