package mm

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)). The pointer
	// size for this architecture is defined as (1 << PointerShift).
	PointerShift = uintptr(3)

	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right by PageShift)
	// and vice-versa.
	PageShift = uintptr(12)

	// PageSize defines the system's page size in bytes.
	PageSize = uintptr(1 << PageShift)

	// PageLevels is the number of page table levels used by 4-level paging.
	PageLevels = 4

	// PageLevelBits is the number of virtual address bits consumed by each
	// page table level (512 entries per table).
	PageLevelBits = uintptr(9)

	// virtAddrBits is the number of architecturally significant virtual
	// address bits; bits 48-63 must replicate bit 47.
	virtAddrBits = 48

	// physAddrBits is the maximum physical address width.
	physAddrBits = 52
)
