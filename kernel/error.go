// Package kernel holds the types shared by every kernel subsystem.
package kernel

// Error describes a kernel error. Kernel errors are declared as package-level
// pointers to Error so that reporting a failure never needs the allocator;
// callers compare them by identity.
type Error struct {
	// The subsystem that raised the error (e.g. "vmm", "pic").
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
