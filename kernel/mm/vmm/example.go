package vmm

import (
	"kcore/kernel"
	"kcore/kernel/mm"
)

// ExampleFrame is the frame holding the VGA text buffer.
const ExampleFrame = mm.Frame(0xb8000 >> mm.PageShift)

// PageMapper is implemented by types that can establish page mappings.
type PageMapper interface {
	MapTo(page mm.Page, frame mm.Frame, flags PageTableEntryFlag, alloc mm.FrameAllocator) *kernel.Error
}

// CreateExampleMapping maps page to the VGA text buffer frame as present and
// writable. It exists to exercise MapTo at boot; the VGA frame is already
// mapped through the physical memory offset so the new mapping aliases it.
func CreateExampleMapping(m PageMapper, page mm.Page, alloc mm.FrameAllocator) *kernel.Error {
	return m.MapTo(page, ExampleFrame, FlagPresent|FlagRW, alloc)
}
