// Package kmain contains the kernel entrypoint that is invoked once the boot
// code has collected the boot information.
package kmain

import (
	"unsafe"

	"kcore/kernel"
	"kcore/kernel/boot"
	"kcore/kernel/cpu"
	"kcore/kernel/interrupts"
	"kcore/kernel/kfmt"
	"kcore/kernel/mm"
	"kcore/kernel/mm/pmm"
	"kcore/kernel/mm/vmm"
)

// activeTable is the subset of the vmm.Mapper API used during boot.
type activeTable interface {
	vmm.PageMapper
	Table() *vmm.PageTable
	Translate(mm.VirtAddr) (mm.PhysAddr, *kernel.Error)
}

var (
	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	initInterruptsFn = interrupts.Init
	breakpointFn     = cpu.Breakpoint
	haltFn           = cpu.Halt
	panicFn          = kfmt.Panic
	acquireTableFn   = acquireKernelTable
	writeQwordFn = func(addr uintptr, val uint64) {
		*(*uint64)(unsafe.Pointer(addr)) = val
	}

	// kernelTable and bootAllocator live in static storage as there is no
	// heap.
	kernelTable   vmm.Mapper
	bootAllocator pmm.BootMemAllocator

	// examplePage is mapped to the VGA text buffer once paging is
	// available.
	examplePage = mm.Page(0)

	// exampleText is the string "New!" encoded as 4 white-on-black VGA
	// character cells.
	exampleText       = uint64(0xf021f077f065f04e)
	exampleTextOffset = uintptr(400)

	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
)

// Kmain is the kernel entrypoint. It is invoked by the boot code after
// setting up the GDT and TSS, a minimal g0 struct and a stack for the Go
// code. info describes the physical memory layout and the virtual offset at
// which the boot loader mapped all physical memory.
//
// Kmain is not expected to return. If it does, the boot code will halt the
// CPU.
//
//go:noinline
func Kmain(info *boot.Info) {
	if err := bootKernel(info); err != nil {
		panicFn(err)
		return
	}

	kfmt.Printf("It did not crash!\n")
	for {
		haltFn()
	}
}

// bootKernel brings up the frame allocator, the interrupt machinery and the
// page table mapper.
func bootKernel(info *boot.Info) *kernel.Error {
	if info == nil {
		return errKmainReturned
	}

	bootAllocator.Init(&info.MemoryMap)
	bootAllocator.ExcludeRegion(info.KernelStart, info.KernelEnd)
	bootAllocator.PrintMemoryMap()

	initInterruptsFn()

	// Execution continues after the breakpoint handler returns.
	breakpointFn()

	table, err := acquireTableFn(info.PhysicalMemoryOffset)
	if err != nil {
		return err
	}

	printActiveEntries(table.Table())

	for _, addr := range []uintptr{
		0xb8000,
		0x201008,
		0x0100_0020_1a10,
		info.PhysicalMemoryOffset,
	} {
		printTranslation(table, addr)
	}

	if err = vmm.CreateExampleMapping(table, examplePage, &bootAllocator); err != nil {
		return err
	}

	writeQwordFn(uintptr(examplePage.Address())+exampleTextOffset, exampleText)
	return nil
}

// acquireKernelTable takes ownership of the active page tables and stores
// the mapper in kernelTable.
func acquireKernelTable(physOffset uintptr) (activeTable, *kernel.Error) {
	var err *kernel.Error
	if kernelTable, err = vmm.AcquireActiveTable(physOffset); err != nil {
		return nil, err
	}

	return &kernelTable, nil
}

func printActiveEntries(l4 *vmm.PageTable) {
	for index, pte := range l4 {
		if pte == 0 {
			continue
		}

		kfmt.Printf("[kmain] L4 entry %3d: frame %x flags %x\n", index, uintptr(pte.Frame()), uintptr(pte.Flags()))
	}
}

func printTranslation(table activeTable, addr uintptr) {
	physAddr, err := table.Translate(mm.VirtAddrTruncate(addr))
	if err != nil {
		kfmt.Printf("[kmain] %16x -> (%s)\n", addr, err.Message)
		return
	}

	kfmt.Printf("[kmain] %16x -> %16x\n", addr, uintptr(physAddr))
}
