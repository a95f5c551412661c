// Package vmm walks and edits the 4-level page tables of the active address
// space. Page table frames are reached through the region where the boot
// loader mapped all of physical memory at a fixed virtual offset.
package vmm

import (
	"sync/atomic"
	"unsafe"

	"kcore/kernel"
	"kcore/kernel/cpu"
	"kcore/kernel/kfmt"
	"kcore/kernel/mm"
)

var (
	// activePDTFn is used by tests to override calls to activePDT which
	// will cause a fault if called in user-mode.
	activePDTFn = cpu.ActivePDT

	// flushTLBEntryFn is used by tests to override calls to flushTLBEntry
	// which will cause a fault if called in user-mode.
	flushTLBEntryFn = cpu.FlushTLBEntry

	// panicFn is mocked by tests and is automatically inlined by the compiler.
	panicFn = kfmt.Panic

	// activeToken identifies the Mapper that currently owns the active
	// table; it is zero while the table is not acquired. lastToken is the
	// most recently issued token.
	activeToken uint32
	lastToken   uint32

	// ErrInvalidMapping is returned when trying to lookup a virtual memory address that is not yet mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	// ErrPageAlreadyMapped is returned by MapTo when the page is already
	// mapped to a frame.
	ErrPageAlreadyMapped = &kernel.Error{Module: "vmm", Message: "page is already mapped"}

	// ErrTableAlreadyAcquired is returned by AcquireActiveTable while a
	// previously returned Mapper has not been released.
	ErrTableAlreadyAcquired = &kernel.Error{Module: "vmm", Message: "active page table is already acquired"}

	// ErrTableReleased is returned when a released Mapper is used.
	ErrTableReleased = &kernel.Error{Module: "vmm", Message: "page table mapper has been released"}

	errNoHugePageSupport = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}
	errInvalidFlags      = &kernel.Error{Module: "vmm", Message: "page table entry flags overlap the frame address bits"}
)

// pageTableWalker is invoked by walk for the entry that corresponds to a
// virtual address at each paging level (4 to 1). Returning false aborts
// the walk.
type pageTableWalker func(level uint8, pte *PageTableEntry) bool

// Mapper provides exclusive access to the active top-most (level 4) page
// table. At most one Mapper exists at any time; it must be released before
// another one can be acquired. Copies of a Mapper share its ownership:
// releasing any copy releases all of them.
type Mapper struct {
	physOffset uintptr
	l4Frame    mm.Frame
	token      uint32
}

// AcquireActiveTable returns a Mapper for the page tables currently loaded
// in CR3. physOffset is the virtual address at which the boot loader mapped
// physical address 0.
//
// The caller must guarantee that all physical memory is mapped at
// physOffset; the returned Mapper dereferences page table frames through
// that region.
//
// The Mapper is returned by value so that it can be kept in a package-level
// variable before a heap is available.
func AcquireActiveTable(physOffset uintptr) (Mapper, *kernel.Error) {
	token := atomic.AddUint32(&lastToken, 1)
	if token == 0 {
		token = atomic.AddUint32(&lastToken, 1)
	}

	if !atomic.CompareAndSwapUint32(&activeToken, 0, token) {
		return Mapper{}, ErrTableAlreadyAcquired
	}

	return Mapper{
		physOffset: physOffset,
		l4Frame:    mm.FrameFromAddress(mm.PhysAddr(activePDTFn() &^ cr3FlagMask)),
		token:      token,
	}, nil
}

// Release gives up the ownership of the active table. Calling Release more
// than once, or on a copy of an already released Mapper, has no effect.
func (m *Mapper) Release() {
	atomic.CompareAndSwapUint32(&activeToken, m.token, 0)
}

// released returns true if m no longer owns the active table.
func (m *Mapper) released() bool {
	return m.token == 0 || atomic.LoadUint32(&activeToken) != m.token
}

// Table returns the top-most page table.
func (m *Mapper) Table() *PageTable {
	return m.tableAt(m.l4Frame)
}

// Translate returns the physical address that corresponds to the supplied
// virtual address or ErrInvalidMapping if the virtual address does not
// correspond to a mapped physical address. Huge page mappings are not
// supported and cause a kernel panic.
func (m *Mapper) Translate(virtAddr mm.VirtAddr) (mm.PhysAddr, *kernel.Error) {
	if m.released() {
		return 0, ErrTableReleased
	}

	var (
		physAddr mm.PhysAddr
		err      *kernel.Error
	)

	m.walk(virtAddr, func(level uint8, pte *PageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			err = ErrInvalidMapping
			return false
		}

		if level == 1 {
			physAddr = pte.Frame().Address() + mm.PhysAddr(virtAddr.PageOffset())
			return true
		}

		if level < mm.PageLevels && pte.HasFlags(FlagHugePage) {
			err = errNoHugePageSupport
			panicFn(err)
			return false
		}

		return true
	})

	if err != nil {
		return 0, err
	}

	return physAddr, nil
}

// MapTo establishes a mapping between a virtual page and a physical memory
// frame. Missing intermediate tables are allocated from alloc, cleared and
// flagged as present and writable. Once the final entry is written, the TLB
// entry for the page is flushed.
//
// MapTo is unchecked: it does not verify whether frame is already mapped by
// another page or whether the caller owns it. Aliasing a frame that is in
// use elsewhere breaks memory safety.
func (m *Mapper) MapTo(page mm.Page, frame mm.Frame, flags PageTableEntryFlag, alloc mm.FrameAllocator) *kernel.Error {
	if m.released() {
		return ErrTableReleased
	}

	if uintptr(flags)&ptePhysPageMask != 0 {
		return errInvalidFlags
	}

	var err *kernel.Error

	m.walk(page.Address(), func(level uint8, pte *PageTableEntry) bool {
		// If we reached the last level all we need to do is to map the
		// frame in place and flag it as present and flush its TLB entry
		if level == 1 {
			if pte.HasFlags(FlagPresent) {
				err = ErrPageAlreadyMapped
				return false
			}

			*pte = 0
			pte.SetFrame(frame)
			pte.SetFlags(flags)
			flushTLBEntryFn(uintptr(page.Address()))
			return true
		}

		if pte.HasFlags(FlagPresent | FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		// Next table does not yet exist; we need to allocate a
		// physical frame for it and clear its contents.
		if !pte.HasFlags(FlagPresent) {
			var tableFrame mm.Frame
			if tableFrame, err = alloc.AllocFrame(); err != nil {
				return false
			}

			m.tableAt(tableFrame).Zero()
			*pte = 0
			pte.SetFrame(tableFrame)
			pte.SetFlags(FlagPresent | FlagRW)
		}

		// User pages are only reachable if every level allows it.
		if flags&FlagUserAccessible != 0 {
			pte.SetFlags(FlagUserAccessible)
		}

		return true
	})

	return err
}

// Unmap removes the mapping for page, flushes its TLB entry and returns the
// frame it pointed to. Intermediate tables are left in place.
func (m *Mapper) Unmap(page mm.Page) (mm.Frame, *kernel.Error) {
	if m.released() {
		return mm.InvalidFrame, ErrTableReleased
	}

	var (
		frame = mm.InvalidFrame
		err   *kernel.Error
	)

	m.walk(page.Address(), func(level uint8, pte *PageTableEntry) bool {
		// Next table is not present; this is an invalid mapping
		if !pte.HasFlags(FlagPresent) {
			err = ErrInvalidMapping
			return false
		}

		if level == 1 {
			frame = pte.Frame()
			*pte = 0
			flushTLBEntryFn(uintptr(page.Address()))
			return true
		}

		if level < mm.PageLevels && pte.HasFlags(FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		return true
	})

	if err != nil {
		return mm.InvalidFrame, err
	}

	return frame, nil
}

// walk performs a page table walk for the given virtual address starting at
// the top-most table. It calls walkFn with the entry at each level and
// descends into the table that the entry points to as long as walkFn
// returns true.
func (m *Mapper) walk(virtAddr mm.VirtAddr, walkFn pageTableWalker) {
	tableFrame := m.l4Frame
	for level := uint8(mm.PageLevels); level > 0; level-- {
		pte := &m.tableAt(tableFrame)[virtAddr.PageTableIndex(level)]
		if !walkFn(level, pte) || level == 1 {
			return
		}

		tableFrame = pte.Frame()
	}
}

// tableAt returns the page table stored in frame, accessed through the
// physical memory mapping.
func (m *Mapper) tableAt(frame mm.Frame) *PageTable {
	return (*PageTable)(unsafe.Pointer(m.physOffset + uintptr(frame.Address())))
}
