// Package gate manages the interrupt descriptor table. A Table binds
// handlers to interrupt numbers; loading it installs one interrupt gate per
// bound slot, each pointing at a generated entry stub that saves the CPU
// state and routes the interrupt back to the table's Dispatch method.
package gate

import (
	"unsafe"

	"kcore/kernel"
	"kcore/kernel/cpu"
	"kcore/kernel/gdt"
	"kcore/kernel/kfmt"
)

// InterruptNumber describes an x86 interrupt/exception/trap slot.
type InterruptNumber uint8

const (
	// DivideByZero occurs when dividing any number by 0 using the DIV or
	// IDIV instruction.
	DivideByZero = InterruptNumber(0)

	// NMI (non-maskable-interrupt) is a hardware interrupt that indicates
	// issues with RAM or unrecoverable hardware problems. It may also be
	// raised by the CPU when a watchdog timer is enabled.
	NMI = InterruptNumber(2)

	// Breakpoint occurs when the CPU executes an INT3 instruction. The
	// saved RIP points to the instruction that follows it.
	Breakpoint = InterruptNumber(3)

	// Overflow occurs when an overflow occurs (e.g result of division
	// cannot fit into the registers used).
	Overflow = InterruptNumber(4)

	// BoundRangeExceeded occurs when the BOUND instruction is invoked with
	// an index out of range.
	BoundRangeExceeded = InterruptNumber(5)

	// InvalidOpcode occurs when the CPU attempts to execute an invalid or
	// undefined instruction opcode.
	InvalidOpcode = InterruptNumber(6)

	// DeviceNotAvailable occurs when the CPU attempts to execute an
	// FPU/MMX/SSE instruction while no FPU is available or while
	// FPU/MMX/SSE support has been disabled by manipulating the CR0
	// register.
	DeviceNotAvailable = InterruptNumber(7)

	// DoubleFault occurs when an unhandled exception occurs or when an
	// exception occurs within a running exception handler.
	DoubleFault = InterruptNumber(8)

	// InvalidTSS occurs when the TSS points to an invalid task segment
	// selector.
	InvalidTSS = InterruptNumber(10)

	// SegmentNotPresent occurs when the CPU attempts to invoke a present
	// gate with an invalid stack segment selector.
	SegmentNotPresent = InterruptNumber(11)

	// StackSegmentFault occurs when attempting to push/pop from a
	// non-canonical stack address or when the stack base/limit (set in
	// GDT) checks fail.
	StackSegmentFault = InterruptNumber(12)

	// GPFException occurs when a general protection fault occurs.
	GPFException = InterruptNumber(13)

	// PageFaultException occurs when a page directory table (PDT) or one
	// of its entries is not present or when a privilege and/or RW
	// protection check fails.
	PageFaultException = InterruptNumber(14)

	// FloatingPointException occurs while invoking an FP instruction while:
	//  - CR0.NE = 1 OR
	//  - an unmasked FP exception is pending
	FloatingPointException = InterruptNumber(16)

	// AlignmentCheck occurs when alignment checks are enabled and an
	// unaligmed memory access is performed.
	AlignmentCheck = InterruptNumber(17)

	// MachineCheck occurs when the CPU detects internal errors such as
	// memory-, bus- or cache-related errors.
	MachineCheck = InterruptNumber(18)

	// SIMDFloatingPointException occurs when an unmasked SSE exception
	// occurs while CR4.OSXMMEXCPT is set to 1. If the OSXMMEXCPT bit is
	// not set, SIMD FP exceptions cause InvalidOpcode exceptions instead.
	SIMDFloatingPointException = InterruptNumber(19)
)

const (
	// entryCount is the number of slots in the table.
	entryCount = 256

	// entryStubSize is the size of each generated entry stub in bytes.
	entryStubSize = 16

	// maxStackIndex is the highest zero-based interrupt stack table slot.
	maxStackIndex = 6

	// gateTypeAttr marks a descriptor as a present, ring 0, 64-bit
	// interrupt gate. Interrupt gates clear RFLAGS.IF on entry.
	gateTypeAttr = 0x8e
)

var (
	// loadIDTFn is used by tests to override calls to cpu.LoadIDT which
	// will cause a fault if called in user-mode.
	loadIDTFn = cpu.LoadIDT

	// gateEntriesBaseFn is mocked by tests and is automatically inlined by
	// the compiler.
	gateEntriesBaseFn = gateEntriesBase

	// panicFn is mocked by tests and is automatically inlined by the compiler.
	panicFn = kfmt.Panic

	// descriptors holds the table loaded into the CPU. It is never freed
	// since the CPU may consult it at any time after LIDT.
	descriptors [entryCount]descriptor

	// idtr is the pseudo-descriptor passed to LIDT. The padding places
	// limit right before base so that the two form the packed 10-byte
	// structure expected by the CPU.
	idtr struct {
		_     [3]uint16
		limit uint16
		base  uintptr
	}

	// activeTable receives the interrupts routed by the entry stubs.
	activeTable *Table

	errInvalidStackIndex  = &kernel.Error{Module: "gate", Message: "interrupt stack table index out of range"}
	errUnhandledInterrupt = &kernel.Error{Module: "gate", Message: "interrupt with no bound handler"}
)

// Handler processes an interrupt. Handlers run with interrupts disabled;
// changes to the supplied Registers are restored when the handler returns.
type Handler func(*Registers)

// Entry is a slot of a Table.
type Entry struct {
	handler Handler

	// ist is the 1-based interrupt stack table slot; 0 keeps the
	// current stack.
	ist uint8
}

// Present returns true if a handler is bound to the entry.
func (e *Entry) Present() bool {
	return e.handler != nil
}

// SetStackIndex arranges for the CPU to switch to the stack stored in the
// zero-based slot index of the interrupt stack table before invoking the
// handler.
//
// The caller must guarantee that the slot holds a valid stack that is not
// used by any other handler that may be running at the same time.
func (e *Entry) SetStackIndex(index uint8) *kernel.Error {
	if index > maxStackIndex {
		return errInvalidStackIndex
	}

	e.ist = index + 1
	return nil
}

// StackIndex returns the zero-based interrupt stack table slot used by the
// entry or false if the entry runs on the interrupted stack.
func (e *Entry) StackIndex() (uint8, bool) {
	if e.ist == 0 {
		return 0, false
	}
	return e.ist - 1, true
}

// Table maps each of the 256 interrupt numbers to an Entry.
type Table struct {
	entries [entryCount]Entry
}

// SetHandler binds handler to the given interrupt number and returns the
// entry so that its options can be adjusted.
func (t *Table) SetHandler(intNumber InterruptNumber, handler Handler) *Entry {
	entry := &t.entries[intNumber]
	entry.handler = handler
	return entry
}

// Entry returns the slot for the given interrupt number.
func (t *Table) Entry(intNumber InterruptNumber) *Entry {
	return &t.entries[intNumber]
}

// Load populates the CPU-visible descriptor table from t and loads it.
// Slots without a handler are marked as non-present. After Load returns,
// interrupts are routed to t.Dispatch.
//
// The table must not be modified while interrupts are enabled.
func (t *Table) Load() {
	entriesBase := gateEntriesBaseFn()
	for i := range t.entries {
		entry := &t.entries[i]
		if !entry.Present() {
			descriptors[i] = descriptor{}
			continue
		}

		descriptors[i] = encodeDescriptor(entriesBase+uintptr(i)*entryStubSize, entry.ist)
	}

	activeTable = t
	idtr.limit = uint16(unsafe.Sizeof(descriptors) - 1)
	idtr.base = uintptr(unsafe.Pointer(&descriptors[0]))
	loadIDTFn(uintptr(unsafe.Pointer(&idtr.limit)))
}

// Dispatch invokes the handler bound to regs.Vector. Interrupts reaching a
// slot without a handler are unrecoverable.
func (t *Table) Dispatch(regs *Registers) {
	entry := &t.entries[uint8(regs.Vector)]
	if !entry.Present() {
		kfmt.Printf("[gate] no handler for interrupt %d (error code: %x)\n", regs.Vector, regs.ErrorCode)
		panicFn(errUnhandledInterrupt)
		return
	}

	entry.handler(regs)
}

// descriptor is a 16-byte amd64 interrupt gate descriptor.
type descriptor struct {
	offsetLow  uint16
	selector   uint16
	ist        uint8
	typeAttr   uint8
	offsetMid  uint16
	offsetHigh uint32
	reserved   uint32
}

// encodeDescriptor returns an interrupt gate that transfers control to
// handlerAddr in the kernel code segment, optionally switching to the
// given 1-based interrupt stack table slot.
func encodeDescriptor(handlerAddr uintptr, ist uint8) descriptor {
	return descriptor{
		offsetLow:  uint16(handlerAddr),
		selector:   gdt.KernelCodeSelector,
		ist:        ist & 0x7,
		typeAttr:   gateTypeAttr,
		offsetMid:  uint16(handlerAddr >> 16),
		offsetHigh: uint32(handlerAddr >> 32),
	}
}

// dispatchInterrupt is invoked by the common entry code with a pointer to
// the saved register state.
func dispatchInterrupt(regs *Registers) {
	activeTable.Dispatch(regs)
}

// interruptGateEntries contains a generated 16-byte entry stub for each
// interrupt number followed by the common entry code. Each stub pushes a
// dummy error code (unless the CPU pushes one for that vector) and the
// interrupt number before jumping to the common entry code.
func interruptGateEntries()

// gateEntriesBase returns the address of the first entry stub.
func gateEntriesBase() uintptr
