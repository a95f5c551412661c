// Package gdt exposes the values that the boot-time GDT/TSS setup (performed
// by the rt0 code before any Go code runs) guarantees to the rest of the
// kernel.
package gdt

const (
	// KernelCodeSelector is the GDT selector of the 64-bit kernel code
	// segment that interrupt gates transfer control to.
	KernelCodeSelector uint16 = 0x08

	// DoubleFaultISTIndex is the zero-based index of the interrupt stack
	// table slot whose stack is reserved for the double fault handler. The
	// TSS provides a dedicated, known-good stack in that slot so that a
	// double fault caused by a stack overflow does not fault again while
	// pushing the exception frame.
	DoubleFaultISTIndex uint8 = 0
)
