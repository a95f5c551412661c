package boot

import (
	"encoding/binary"
	"reflect"
	"unsafe"

	"kcore/kernel"
)

type tagType uint32

// nolint
const (
	tagMbSectionEnd tagType = 0
	tagMemoryMap    tagType = 6
)

// multiboot2 memory entry types.
const (
	mbMemAvailable       = 1
	mbMemAcpiReclaimable = 3
	mbMemNvs             = 4
	mbMemBad             = 5
)

const (
	infoHeaderSize = 8
	tagHeaderSize  = 8
	mmapHeaderSize = 8
	mmapEntryMin   = 20
)

var (
	errNoMemoryMap        = &kernel.Error{Module: "boot", Message: "multiboot info does not contain a memory map"}
	errMalformedInfo      = &kernel.Error{Module: "boot", Message: "malformed multiboot info"}
	errMalformedMemoryMap = &kernel.Error{Module: "boot", Message: "malformed multiboot memory map"}
)

// MultibootInfo returns a byte slice overlaying the multiboot2 information
// block located at infoPtr. The slice length is taken from the block header.
func MultibootInfo(infoPtr uintptr) []byte {
	totalSize := *(*uint32)(unsafe.Pointer(infoPtr))
	return *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(totalSize),
		Cap:  int(totalSize),
		Data: infoPtr,
	}))
}

// FromMultiboot populates info from the multiboot2 information block at
// infoPtr. physOffset is recorded as the virtual address at which the boot
// loader mapped physical address 0.
func FromMultiboot(info *Info, infoPtr, physOffset uintptr) *kernel.Error {
	info.PhysicalMemoryOffset = physOffset
	return ParseMultiboot(MultibootInfo(infoPtr), &info.MemoryMap)
}

// ParseMultiboot decodes the memory map tag of a multiboot2 information block
// and appends each entry to memMap. Multiboot entry types without a direct
// equivalent are reported as Reserved.
func ParseMultiboot(info []byte, memMap *MemoryMap) *kernel.Error {
	if len(info) < infoHeaderSize {
		return errMalformedInfo
	}

	end := len(info)
	if totalSize := int(binary.LittleEndian.Uint32(info)); totalSize < end {
		end = totalSize
	}

	tag, ok := findTag(info[:end], tagMemoryMap)
	if !ok {
		return errNoMemoryMap
	}

	if len(tag) < mmapHeaderSize {
		return errMalformedMemoryMap
	}

	entrySize := int(binary.LittleEndian.Uint32(tag))
	if entrySize < mmapEntryMin {
		return errMalformedMemoryMap
	}

	for entries := tag[mmapHeaderSize:]; len(entries) >= entrySize; entries = entries[entrySize:] {
		base := binary.LittleEndian.Uint64(entries)
		length := binary.LittleEndian.Uint64(entries[8:])

		if err := memMap.Add(MemoryRegion{
			Start: base,
			End:   base + length,
			Type:  regionTypeFromMultiboot(binary.LittleEndian.Uint32(entries[16:])),
		}); err != nil {
			return err
		}
	}

	return nil
}

// findTag scans the multiboot tags looking for the specified type and returns
// the tag contents excluding the tag header.
func findTag(info []byte, wanted tagType) ([]byte, bool) {
	for offset := infoHeaderSize; offset+tagHeaderSize <= len(info); {
		curType := tagType(binary.LittleEndian.Uint32(info[offset:]))
		size := int(binary.LittleEndian.Uint32(info[offset+4:]))

		if curType == tagMbSectionEnd || size < tagHeaderSize || offset+size > len(info) {
			return nil, false
		}

		if curType == wanted {
			return info[offset+tagHeaderSize : offset+size], true
		}

		// Tags start at 8-byte aligned offsets
		offset += (size + 7) &^ 7
	}

	return nil, false
}

func regionTypeFromMultiboot(t uint32) RegionType {
	switch t {
	case mbMemAvailable:
		return Usable
	case mbMemAcpiReclaimable:
		return AcpiReclaimable
	case mbMemNvs:
		return AcpiNvs
	case mbMemBad:
		return BadMemory
	default:
		return Reserved
	}
}
