package vmm

import (
	"math/rand"
	"testing"
	"unsafe"

	"kcore/kernel"
	"kcore/kernel/mm"
	"kcore/kernel/mm/pmm"
)

// physArena emulates physical memory for the page table walker. Frame k of
// the emulated memory is tables[k] so using the arena start as the physical
// memory offset lets the Mapper dereference frames as it would at runtime.
// Frame 0 holds the top-most table.
type physArena struct {
	tables []PageTable
	next   int
}

func newPhysArena(frames int) *physArena {
	arena := &physArena{tables: make([]PageTable, frames), next: 1}

	// Fill unused frames with garbage so that missing clears are detected.
	for i := 1; i < frames; i++ {
		for j := range arena.tables[i] {
			arena.tables[i][j] = PageTableEntry(0xdeadbeef000 | uintptr(FlagPresent))
		}
	}
	return arena
}

func (a *physArena) offset() uintptr {
	return uintptr(unsafe.Pointer(&a.tables[0]))
}

func (a *physArena) AllocFrame() (mm.Frame, *kernel.Error) {
	if a.next == len(a.tables) {
		return mm.InvalidFrame, pmm.ErrOutOfMemory
	}

	a.next++
	return mm.Frame(a.next - 1), nil
}

// link points entry index of the table in frame parent to frame child.
func (a *physArena) link(parent mm.Frame, index uintptr, child mm.Frame, flags PageTableEntryFlag) {
	pte := &a.tables[parent][index]
	*pte = 0
	pte.SetFrame(child)
	pte.SetFlags(flags)
}

// referenceWalk translates virtAddr by indexing the arena directly.
func (a *physArena) referenceWalk(virtAddr mm.VirtAddr) (mm.PhysAddr, bool) {
	frame := mm.Frame(0)
	for level := uint8(4); level > 0; level-- {
		pte := a.tables[frame][virtAddr.PageTableIndex(level)]
		if uintptr(pte)&uintptr(FlagPresent) == 0 {
			return 0, false
		}
		frame = mm.Frame((uintptr(pte) & 0x000ffffffffff000) >> 12)
	}
	return mm.PhysAddr(uintptr(frame)<<12 | virtAddr.PageOffset()), true
}

func setupMapperTest(t *testing.T, frames int) (*physArena, *Mapper, *[]uintptr) {
	origActivePDT, origFlush, origPanic := activePDTFn, flushTLBEntryFn, panicFn

	arena := newPhysArena(frames)

	// Frame 0 with the PWT and PCD bits set.
	activePDTFn = func() uintptr { return 0x18 }

	var flushed []uintptr
	flushTLBEntryFn = func(addr uintptr) { flushed = append(flushed, addr) }

	panicFn = func(e interface{}) {
		t.Fatalf("unexpected call to panic: %v", e)
	}

	mapper, err := AcquireActiveTable(arena.offset())
	if err != nil {
		t.Fatal(err)
	}
	m := &mapper

	t.Cleanup(func() {
		m.Release()
		activePDTFn, flushTLBEntryFn, panicFn = origActivePDT, origFlush, origPanic
	})

	return arena, m, &flushed
}

func TestAcquireActiveTable(t *testing.T) {
	_, m, _ := setupMapperTest(t, 1)

	if _, err := AcquireActiveTable(0); err != ErrTableAlreadyAcquired {
		t.Fatalf("expected to get ErrTableAlreadyAcquired; got %v", err)
	}

	m.Release()
	m.Release()

	other, err := AcquireActiveTable(0)
	if err != nil {
		t.Fatalf("expected acquire after release to succeed; got %v", err)
	}
	defer other.Release()

	if _, err := m.Translate(0); err != ErrTableReleased {
		t.Errorf("expected Translate on a released mapper to return ErrTableReleased; got %v", err)
	}

	if err := m.MapTo(0, 0, FlagPresent, pmm.EmptyAllocator{}); err != ErrTableReleased {
		t.Errorf("expected MapTo on a released mapper to return ErrTableReleased; got %v", err)
	}

	if _, err := m.Unmap(0); err != ErrTableReleased {
		t.Errorf("expected Unmap on a released mapper to return ErrTableReleased; got %v", err)
	}

	// Releasing a stale mapper must not release the current owner.
	m.Release()
	if _, err := AcquireActiveTable(0); err != ErrTableAlreadyAcquired {
		t.Errorf("expected the table to remain acquired; got %v", err)
	}
}

func TestReleaseAppliesToCopies(t *testing.T) {
	arena, m, _ := setupMapperTest(t, 2)
	arena.tables[0].Zero()

	copied := *m
	if _, err := copied.Translate(0); err != ErrInvalidMapping {
		t.Fatalf("expected a copy of an active mapper to be usable; got %v", err)
	}

	m.Release()

	if _, err := copied.Translate(0); err != ErrTableReleased {
		t.Errorf("expected Translate on a copy of a released mapper to return ErrTableReleased; got %v", err)
	}

	if err := copied.MapTo(0, 0, FlagPresent, arena); err != ErrTableReleased {
		t.Errorf("expected MapTo on a copy of a released mapper to return ErrTableReleased; got %v", err)
	}

	// The copy must not be able to release a later owner either.
	other, err := AcquireActiveTable(arena.offset())
	if err != nil {
		t.Fatal(err)
	}
	defer other.Release()

	copied.Release()
	if _, err := AcquireActiveTable(0); err != ErrTableAlreadyAcquired {
		t.Errorf("expected the new owner to keep the table; got %v", err)
	}
}

func TestTranslate(t *testing.T) {
	arena, m, _ := setupMapperTest(t, 8)

	// 0x0000_0082_0060_4567 -> indices 1, 2, 3, 4
	arena.link(0, 1, 1, FlagPresent|FlagRW)
	arena.link(1, 2, 2, FlagPresent|FlagRW)
	arena.link(2, 3, 3, FlagPresent|FlagRW)
	arena.link(3, 4, mm.Frame(0x1234), FlagPresent|FlagRW|FlagNoExecute)
	for i := range arena.tables[1] {
		if i != 2 {
			arena.tables[1][i] = 0
		}
	}

	// high half: indices 511, 510, 0, 1
	arena.link(0, 511, 4, FlagPresent)
	arena.tables[4].Zero()
	arena.link(4, 510, 5, FlagPresent)
	arena.tables[5].Zero()
	arena.link(5, 0, 6, FlagPresent)
	arena.tables[6].Zero()
	arena.link(6, 1, mm.Frame(0xb8), FlagPresent|FlagRW)

	specs := []struct {
		virtAddr mm.VirtAddr
		expAddr  mm.PhysAddr
		expErr   *kernel.Error
	}{
		{mm.VirtAddr(1<<39 | 2<<30 | 3<<21 | 4<<12 | 0x567), 0x1234567, nil},
		{mm.VirtAddr(1<<39 | 2<<30 | 3<<21 | 4<<12), 0x1234000, nil},
		{mm.VirtAddrTruncate(511<<39 | 510<<30 | 0<<21 | 1<<12 | 0xfff), 0xb8fff, nil},
		// absent level 4 entry
		{mm.VirtAddr(0x1000), 0, ErrInvalidMapping},
		// absent level 3 entry
		{mm.VirtAddr(1<<39 | 5<<30), 0, ErrInvalidMapping},
		// absent level 1 entry
		{mm.VirtAddrTruncate(511<<39 | 510<<30 | 0<<21 | 2<<12), 0, ErrInvalidMapping},
	}

	for specIndex, spec := range specs {
		got, err := m.Translate(spec.virtAddr)
		if err != spec.expErr {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
			continue
		}

		if got != spec.expAddr {
			t.Errorf("[spec %d] expected Translate(%x) to return %x; got %x", specIndex, spec.virtAddr, spec.expAddr, got)
		}

		refAddr, found := arena.referenceWalk(spec.virtAddr)
		if found != (spec.expErr == nil) || (found && refAddr != got) {
			t.Errorf("[spec %d] Translate disagrees with the reference walk: (%x, %t)", specIndex, refAddr, found)
		}
	}
}

func TestTranslateHugePage(t *testing.T) {
	arena, m, _ := setupMapperTest(t, 2)

	arena.link(0, 0, 1, FlagPresent|FlagRW)
	arena.tables[1].Zero()
	arena.link(1, 0, mm.Frame(0), FlagPresent|FlagRW|FlagHugePage)

	var panicErr interface{}
	panicFn = func(e interface{}) { panicErr = e }

	if _, err := m.Translate(0x1234); err != errNoHugePageSupport {
		t.Fatalf("expected to get errNoHugePageSupport; got %v", err)
	}

	if panicErr != errNoHugePageSupport {
		t.Fatalf("expected panic to be called with errNoHugePageSupport; got %v", panicErr)
	}
}

func TestMapTo(t *testing.T) {
	t.Run("allocates intermediate tables", func(t *testing.T) {
		arena, m, flushed := setupMapperTest(t, 8)

		page := mm.PageFromAddress(mm.VirtAddr(0xdeadbeef000))
		frame := mm.Frame(0x42)
		if err := m.MapTo(page, frame, FlagPresent|FlagRW|FlagNoExecute, arena); err != nil {
			t.Fatal(err)
		}

		// Three intermediate tables (levels 3, 2 and 1).
		if exp, got := 4, arena.next; got != exp {
			t.Errorf("expected %d frames to be allocated; got %d", exp-1, got-1)
		}

		for level, tableFrame := uint8(4), mm.Frame(0); level > 1; level-- {
			pte := arena.tables[tableFrame][page.Address().PageTableIndex(level)]
			if !pte.HasFlags(FlagPresent | FlagRW) {
				t.Errorf("[level %d] expected entry to have FlagPresent and FlagRW set", level)
			}
			if pte.HasAnyFlag(FlagUserAccessible | FlagNoExecute) {
				t.Errorf("[level %d] expected intermediate entry to carry only FlagPresent and FlagRW; got %x", level, pte.Flags())
			}

			tableFrame = pte.Frame()
			for i, entry := range arena.tables[tableFrame] {
				if i != int(page.Address().PageTableIndex(level-1)) && entry != 0 {
					t.Errorf("[level %d] expected new table to be cleared; entry %d is %x", level-1, i, entry)
					break
				}
			}
		}

		got, err := m.Translate(page.Address() + 0x10)
		if err != nil {
			t.Fatal(err)
		}
		if exp := frame.Address() + 0x10; got != exp {
			t.Errorf("expected mapped page to translate to %x; got %x", exp, got)
		}

		if len(*flushed) != 1 || (*flushed)[0] != uintptr(page.Address()) {
			t.Errorf("expected a single TLB flush for %x; got %v", page.Address(), *flushed)
		}
	})

	t.Run("reuses existing tables", func(t *testing.T) {
		arena, m, _ := setupMapperTest(t, 8)

		if err := m.MapTo(0x10, 0x100, FlagPresent, arena); err != nil {
			t.Fatal(err)
		}
		allocated := arena.next

		if err := m.MapTo(0x11, 0x101, FlagPresent, arena); err != nil {
			t.Fatal(err)
		}

		if arena.next != allocated {
			t.Errorf("expected no additional frames to be allocated; got %d", arena.next-allocated)
		}

		for i, page := range []mm.Page{0x10, 0x11} {
			if got, err := m.Translate(page.Address()); err != nil || got != mm.Frame(0x100+i).Address() {
				t.Errorf("[page %x] expected translation %x; got (%x, %v)", page, mm.Frame(0x100+i).Address(), got, err)
			}
		}
	})

	t.Run("user accessible", func(t *testing.T) {
		arena, m, _ := setupMapperTest(t, 8)

		page := mm.Page(0x400)
		if err := m.MapTo(page, 0x7, FlagPresent|FlagRW|FlagUserAccessible, arena); err != nil {
			t.Fatal(err)
		}

		for level, tableFrame := uint8(4), mm.Frame(0); level > 0; level-- {
			pte := arena.tables[tableFrame][page.Address().PageTableIndex(level)]
			if !pte.HasFlags(FlagPresent | FlagUserAccessible) {
				t.Errorf("[level %d] expected entry to be user accessible", level)
			}
			tableFrame = pte.Frame()
		}
	})

	t.Run("already mapped", func(t *testing.T) {
		arena, m, flushed := setupMapperTest(t, 8)

		if err := m.MapTo(0x10, 0x100, FlagPresent, arena); err != nil {
			t.Fatal(err)
		}

		if err := m.MapTo(0x10, 0x200, FlagPresent, arena); err != ErrPageAlreadyMapped {
			t.Fatalf("expected to get ErrPageAlreadyMapped; got %v", err)
		}

		if got, _ := m.Translate(mm.Page(0x10).Address()); got != mm.Frame(0x100).Address() {
			t.Errorf("expected original mapping to be preserved; got %x", got)
		}

		if len(*flushed) != 1 {
			t.Errorf("expected 1 TLB flush; got %d", len(*flushed))
		}
	})

	t.Run("allocator exhausted", func(t *testing.T) {
		_, m, flushed := setupMapperTest(t, 1)

		if err := m.MapTo(0x10, 0x100, FlagPresent, pmm.EmptyAllocator{}); err != pmm.ErrOutOfMemory {
			t.Fatalf("expected to get ErrOutOfMemory; got %v", err)
		}

		if len(*flushed) != 0 {
			t.Errorf("expected no TLB flushes; got %d", len(*flushed))
		}

		if _, err := m.Translate(mm.Page(0x10).Address()); err != ErrInvalidMapping {
			t.Errorf("expected page to remain unmapped; got %v", err)
		}
	})

	t.Run("allocator fails midway", func(t *testing.T) {
		arena, m, _ := setupMapperTest(t, 3)

		if err := m.MapTo(0x10, 0x100, FlagPresent, arena); err != pmm.ErrOutOfMemory {
			t.Fatalf("expected to get ErrOutOfMemory; got %v", err)
		}

		if _, err := m.Translate(mm.Page(0x10).Address()); err != ErrInvalidMapping {
			t.Errorf("expected page to remain unmapped; got %v", err)
		}
	})

	t.Run("huge page parent", func(t *testing.T) {
		arena, m, _ := setupMapperTest(t, 2)

		arena.link(0, 0, 1, FlagPresent|FlagRW)
		arena.tables[1].Zero()
		arena.link(1, 0, 0, FlagPresent|FlagRW|FlagHugePage)

		if err := m.MapTo(0x10, 0x100, FlagPresent, arena); err != errNoHugePageSupport {
			t.Fatalf("expected to get errNoHugePageSupport; got %v", err)
		}
	})

	t.Run("invalid flags", func(t *testing.T) {
		arena, m, _ := setupMapperTest(t, 8)

		if err := m.MapTo(0x10, 0x100, FlagPresent|PageTableEntryFlag(0x1000), arena); err != errInvalidFlags {
			t.Fatalf("expected to get errInvalidFlags; got %v", err)
		}

		if arena.next != 1 {
			t.Errorf("expected no frames to be allocated; got %d", arena.next-1)
		}
	})
}

func TestMapThenTranslate(t *testing.T) {
	arena, m, _ := setupMapperTest(t, 256)

	rng := rand.New(rand.NewSource(42))
	mapped := make(map[mm.Page]mm.Frame)
	for len(mapped) < 32 {
		// Keep the pages within the lower half so they remain canonical.
		page := mm.Page(rng.Int63n(1 << 35))
		if _, exists := mapped[page]; exists {
			continue
		}

		frame := mm.Frame(rng.Int63n(1 << 40))
		if err := m.MapTo(page, frame, FlagPresent|FlagRW, arena); err != nil {
			t.Fatalf("[page %x] unexpected error: %v", page, err)
		}
		mapped[page] = frame
	}

	for page, frame := range mapped {
		offset := uintptr(rng.Intn(int(mm.PageSize)))
		virtAddr := page.Address() + mm.VirtAddr(offset)

		got, err := m.Translate(virtAddr)
		if err != nil {
			t.Errorf("[page %x] unexpected error: %v", page, err)
			continue
		}

		if exp := frame.Address() + mm.PhysAddr(offset); got != exp {
			t.Errorf("[page %x] expected translation %x; got %x", page, exp, got)
		}

		if ref, found := arena.referenceWalk(virtAddr); !found || ref != got {
			t.Errorf("[page %x] Translate disagrees with the reference walk: (%x, %t)", page, ref, found)
		}
	}
}

func TestUnmap(t *testing.T) {
	arena, m, flushed := setupMapperTest(t, 8)

	if _, err := m.Unmap(0x10); err != ErrInvalidMapping {
		t.Fatalf("expected unmapping an absent page to return ErrInvalidMapping; got %v", err)
	}

	if err := m.MapTo(0x10, 0x100, FlagPresent|FlagRW, arena); err != nil {
		t.Fatal(err)
	}

	frame, err := m.Unmap(0x10)
	if err != nil {
		t.Fatal(err)
	}

	if frame != 0x100 {
		t.Errorf("expected Unmap to return frame 0x100; got %x", frame)
	}

	if _, err := m.Translate(mm.Page(0x10).Address()); err != ErrInvalidMapping {
		t.Errorf("expected page to be unmapped; got %v", err)
	}

	if exp := 2; len(*flushed) != exp {
		t.Errorf("expected %d TLB flushes; got %d", exp, len(*flushed))
	}

	// The page can be mapped again.
	if err := m.MapTo(0x10, 0x200, FlagPresent, arena); err != nil {
		t.Fatal(err)
	}
}

func TestCreateExampleMapping(t *testing.T) {
	arena, m, _ := setupMapperTest(t, 8)

	page := mm.PageFromAddress(0xdeadbeaf000)
	if err := CreateExampleMapping(m, page, arena); err != nil {
		t.Fatal(err)
	}

	got, err := m.Translate(page.Address() + 0x190)
	if err != nil {
		t.Fatal(err)
	}

	if exp := mm.PhysAddr(0xb8190); got != exp {
		t.Fatalf("expected example page to translate to %x; got %x", exp, got)
	}

	if m.Table() != &arena.tables[0] {
		t.Fatal("expected Table to return the top-most table")
	}
}

func TestPageTableEntry(t *testing.T) {
	var (
		pte   PageTableEntry
		frame = mm.Frame(123)
		flags = FlagPresent | FlagRW | FlagNoExecute
	)

	pte.SetFrame(frame)
	pte.SetFlags(flags)

	if got := pte.Frame(); got != frame {
		t.Errorf("expected pte.Frame() to return %v; got %v", frame, got)
	}

	if got := pte.Flags(); got != flags {
		t.Errorf("expected pte.Flags() to return %x; got %x", flags, got)
	}

	if !pte.HasFlags(FlagPresent|FlagNoExecute) || pte.HasFlags(FlagPresent|FlagDirty) {
		t.Error("HasFlags returned an unexpected result")
	}

	if !pte.HasAnyFlag(FlagDirty|FlagRW) || pte.HasAnyFlag(FlagDirty|FlagAccessed) {
		t.Error("HasAnyFlag returned an unexpected result")
	}

	pte.ClearFlags(FlagRW | FlagNoExecute)
	if got := pte.Flags(); got != FlagPresent {
		t.Errorf("expected only FlagPresent to remain; got %x", got)
	}

	pte.SetFrame(mm.Frame(456))
	if pte.Frame() != 456 || pte.Flags() != FlagPresent {
		t.Error("expected SetFrame to preserve the entry flags")
	}
}
