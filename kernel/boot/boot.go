// Package boot describes the information handed to the kernel by the boot
// loader: the virtual offset at which all physical memory is mapped and the
// physical memory map. Both are consumed once during initialization and stay
// valid for the lifetime of the kernel.
package boot

import "kcore/kernel"

// maxRegions bounds the number of memory map entries. The map is stored
// inline so that it can be populated before the Go allocator is available.
const maxRegions = 64

var errTooManyRegions = &kernel.Error{Module: "boot", Message: "memory map has too many regions"}

// RegionType classifies a physical memory region.
type RegionType uint8

const (
	// Usable marks free RAM that the kernel may allocate.
	Usable RegionType = iota + 1

	// Reserved marks memory that must not be touched.
	Reserved

	// AcpiReclaimable marks memory holding ACPI tables; it becomes usable
	// once the tables have been parsed.
	AcpiReclaimable

	// AcpiNvs marks memory that must be preserved across sleep states.
	AcpiNvs

	// BadMemory marks defective RAM.
	BadMemory

	// Kernel marks the memory occupied by the loaded kernel image.
	Kernel

	// Bootloader marks memory used by the boot loader, including the page
	// tables and boot info it prepared.
	Bootloader
)

// String implements fmt.Stringer for RegionType.
func (t RegionType) String() string {
	switch t {
	case Usable:
		return "usable"
	case Reserved:
		return "reserved"
	case AcpiReclaimable:
		return "ACPI (reclaimable)"
	case AcpiNvs:
		return "ACPI NVS"
	case BadMemory:
		return "bad memory"
	case Kernel:
		return "kernel"
	case Bootloader:
		return "bootloader"
	default:
		return "unknown"
	}
}

// MemoryRegion describes the physical address range [Start, End).
type MemoryRegion struct {
	Start uint64
	End   uint64
	Type  RegionType
}

// Size returns the region length in bytes.
func (r MemoryRegion) Size() uint64 {
	return r.End - r.Start
}

// MemoryMap is the list of memory regions reported by the boot loader, in the
// order in which they were reported.
type MemoryMap struct {
	regions [maxRegions]MemoryRegion
	count   int
}

// Add appends a region to the map.
func (m *MemoryMap) Add(region MemoryRegion) *kernel.Error {
	if m.count == maxRegions {
		return errTooManyRegions
	}

	m.regions[m.count] = region
	m.count++
	return nil
}

// Len returns the number of regions in the map.
func (m *MemoryMap) Len() int {
	return m.count
}

// Regions returns the regions in reported order. The returned slice aliases
// the map's storage and must not be modified.
func (m *MemoryMap) Regions() []MemoryRegion {
	return m.regions[:m.count]
}

// Info bundles the boot-time inputs of the kernel.
type Info struct {
	// PhysicalMemoryOffset is the virtual address at which the boot loader
	// mapped physical address 0. Physical address p is accessible at
	// virtual address PhysicalMemoryOffset + p.
	PhysicalMemoryOffset uintptr

	// MemoryMap lists the physical memory regions.
	MemoryMap MemoryMap

	// KernelStart and KernelEnd hold the physical extents of the kernel
	// image when the memory map does not already tag them as Kernel. A zero
	// range means the map is authoritative.
	KernelStart, KernelEnd uintptr
}
