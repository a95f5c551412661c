package mm

import "kcore/kernel"

var (
	errNonCanonicalAddr = &kernel.Error{Module: "mm", Message: "virtual address is not canonical"}
	errPhysAddrTooWide  = &kernel.Error{Module: "mm", Message: "physical address exceeds 52 bits"}
)

// VirtAddr is a canonical 64-bit virtual address. It decomposes into four
// 9-bit page table indices (levels 4 to 1) followed by a 12-bit page offset.
type VirtAddr uintptr

// NewVirtAddr returns addr as a VirtAddr or an error if bits 48-63 are not a
// sign extension of bit 47.
func NewVirtAddr(addr uintptr) (VirtAddr, *kernel.Error) {
	if v := VirtAddrTruncate(addr); uintptr(v) != addr {
		return 0, errNonCanonicalAddr
	}

	return VirtAddr(addr), nil
}

// VirtAddrTruncate returns addr in canonical form by discarding bits 48-63
// and sign-extending bit 47 into them.
func VirtAddrTruncate(addr uintptr) VirtAddr {
	const shift = 64 - virtAddrBits
	return VirtAddr(uintptr(int64(addr<<shift) >> shift))
}

// PageTableIndex returns the index into the page table at the given level
// (4 for the top-most table, 1 for the table holding the final entry).
func (v VirtAddr) PageTableIndex(level uint8) uintptr {
	shift := PageShift + PageLevelBits*uintptr(level-1)
	return (uintptr(v) >> shift) & ((1 << PageLevelBits) - 1)
}

// PageOffset returns the offset within the page that contains v.
func (v VirtAddr) PageOffset() uintptr {
	return uintptr(v) & (PageSize - 1)
}

// PhysAddr is a physical memory address.
type PhysAddr uintptr

// NewPhysAddr returns addr as a PhysAddr or an error if it does not fit into
// the 52-bit physical address space.
func NewPhysAddr(addr uintptr) (PhysAddr, *kernel.Error) {
	if addr>>physAddrBits != 0 {
		return 0, errPhysAddrTooWide
	}

	return PhysAddr(addr), nil
}
