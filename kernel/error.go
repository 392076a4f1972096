package kernel

// Error describes a fatal or recoverable condition raised by a kernel
// subsystem. Unlike the standard library's errors.New, constructing an
// Error never allocates from the heap, which makes it safe to use before
// the kernel's allocator-backed runtime is initialized.
type Error struct {
	// Module identifies the subsystem that raised the error.
	Module string

	// Message is a short, human-readable description of the error.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "[" + e.Module + "] " + e.Message
}
