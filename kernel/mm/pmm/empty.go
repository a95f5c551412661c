package pmm

import (
	"kcore/kernel"
	"kcore/kernel/mm"
)

// EmptyAllocator is a frame allocator that never has frames available. It is
// passed to operations that must not allocate, such as mapping a page whose
// intermediate tables are known to exist.
type EmptyAllocator struct{}

// AllocFrame always returns ErrOutOfMemory.
func (EmptyAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	return mm.InvalidFrame, ErrOutOfMemory
}
