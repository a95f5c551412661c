// Package pmm contains the physical frame allocators.
package pmm

import (
	"kcore/kernel"
	"kcore/kernel/boot"
	"kcore/kernel/kfmt"
	"kcore/kernel/mm"
)

var (
	// ErrOutOfMemory is returned by allocators that have no more frames to
	// hand out.
	ErrOutOfMemory = &kernel.Error{Module: "boot_mem_alloc", Message: "out of memory"}
)

// BootMemAllocator implements a rudimentary physical memory allocator which
// hands out the frames of the regions tagged as usable in the boot memory
// map.
//
// Regions are visited in the order reported by the boot loader and frames
// are returned in ascending order within each region. The allocator keeps a
// cursor that only moves forward so no frame is ever returned twice. It is
// not possible to free allocated frames.
type BootMemAllocator struct {
	memMap *boot.MemoryMap

	// allocCount tracks the total number of allocated frames.
	allocCount uint64

	// regionIndex and nextFrame form the allocation cursor. nextFrame is
	// only meaningful when regionStarted is true.
	regionIndex   int
	regionStarted bool
	nextFrame     mm.Frame

	// Frames belonging to the kernel image (inclusive range) are skipped.
	excludeFrames                    bool
	kernelStartFrame, kernelEndFrame mm.Frame
}

// NewBootMemAllocator returns an allocator that serves frames from memMap.
// The caller must guarantee that every region tagged as usable is actually
// free; the map must not change while the allocator is in use.
func NewBootMemAllocator(memMap *boot.MemoryMap) *BootMemAllocator {
	var alloc BootMemAllocator
	alloc.Init(memMap)
	return &alloc
}

// Init resets the allocator to serve frames from memMap. It allows the
// allocator to live in static storage before a heap is available.
func (alloc *BootMemAllocator) Init(memMap *boot.MemoryMap) {
	*alloc = BootMemAllocator{memMap: memMap}
}

// ExcludeRegion prevents the allocator from handing out the frames overlapping
// the physical range [start, end). It is used when the memory map reports the
// kernel image as part of a usable region. An empty range clears any
// previously excluded range.
func (alloc *BootMemAllocator) ExcludeRegion(start, end uintptr) {
	if end <= start {
		alloc.excludeFrames = false
		return
	}

	// round down start to the nearest page and round up end to the
	// nearest page.
	alloc.excludeFrames = true
	alloc.kernelStartFrame = mm.FrameFromAddress(mm.PhysAddr(start))
	alloc.kernelEndFrame = mm.FrameFromAddress(mm.PhysAddr(end+mm.PageSize-1)) - 1
}

// AllocCount returns the number of frames handed out so far.
func (alloc *BootMemAllocator) AllocCount() uint64 {
	return alloc.allocCount
}

// AllocFrame reserves the next available usable frame. It returns
// ErrOutOfMemory once all usable frames have been handed out.
func (alloc *BootMemAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	regions := alloc.memMap.Regions()

	for ; alloc.regionIndex < len(regions); alloc.regionIndex, alloc.regionStarted = alloc.regionIndex+1, false {
		region := regions[alloc.regionIndex]
		if region.Type != boot.Usable {
			continue
		}

		startFrame, endFrame := regionFrames(region)
		if startFrame >= endFrame {
			continue
		}

		if !alloc.regionStarted {
			alloc.nextFrame = startFrame
			alloc.regionStarted = true
		}

		if alloc.excludeFrames && alloc.nextFrame >= alloc.kernelStartFrame && alloc.nextFrame <= alloc.kernelEndFrame {
			alloc.nextFrame = alloc.kernelEndFrame + 1
		}

		if alloc.nextFrame >= endFrame {
			continue
		}

		frame := alloc.nextFrame
		alloc.nextFrame++
		alloc.allocCount++
		return frame, nil
	}

	return mm.InvalidFrame, ErrOutOfMemory
}

// regionFrames returns the frames fully contained in region as the range
// [start, end). Reported addresses may not be page-aligned so the start is
// rounded up and the end is rounded down.
func regionFrames(region boot.MemoryRegion) (mm.Frame, mm.Frame) {
	pageSizeMinus1 := uint64(mm.PageSize - 1)
	start := mm.Frame((region.Start + pageSizeMinus1) >> mm.PageShift)
	end := mm.Frame(region.End >> mm.PageShift)
	return start, end
}

// PrintMemoryMap prints the memory map reported by the boot loader and the
// amount of usable memory.
func (alloc *BootMemAllocator) PrintMemoryMap() {
	kfmt.Printf("[boot_mem_alloc] system memory map:\n")

	var totalFree uint64
	for _, region := range alloc.memMap.Regions() {
		kfmt.Printf("\t[0x%10x - 0x%10x], size: %10d, type: %s\n", region.Start, region.End, region.Size(), region.Type.String())

		if region.Type == boot.Usable {
			totalFree += region.Size()
		}
	}
	kfmt.Printf("[boot_mem_alloc] available memory: %dKb\n", totalFree/1024)

	if alloc.excludeFrames {
		kfmt.Printf("[boot_mem_alloc] kernel frames: %d - %d\n", uint64(alloc.kernelStartFrame), uint64(alloc.kernelEndFrame))
	}
}
