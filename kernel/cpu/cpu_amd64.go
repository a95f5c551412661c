// Package cpu exposes the privileged amd64 instructions used by the kernel.
// Apart from InterruptsEnabled and ReadCS, calling any of these functions
// outside ring 0 raises a general protection fault; packages reach them
// through function variables so that their tests can run in user mode.
package cpu

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// InterruptsEnabled returns true if the interrupt flag (RFLAGS.IF) is set.
func InterruptsEnabled() bool

// Halt stops instruction execution. Halt never returns.
func Halt()

// Breakpoint raises a breakpoint exception (INT3).
func Breakpoint()

// FlushTLBEntry flushes a TLB entry for a particular virtual address.
func FlushTLBEntry(virtAddr uintptr)

// ActivePDT returns the raw contents of the CR3 register. The physical
// address of the active top-level page table occupies bits 12-51; the low
// bits carry the PCD/PWT flags.
func ActivePDT() uintptr

// ReadCS returns the current code segment selector. Its two low bits hold the
// current privilege level.
func ReadCS() uint16

// LoadIDT loads the interrupt descriptor table register from the 10-byte
// pseudo-descriptor (limit followed by base) located at idtr.
func LoadIDT(idtr uintptr)

func portReadByte(port uint16) uint8

func portWriteByte(port uint16, val uint8)

// PortIO provides byte-wide access to the x86 I/O port space.
type PortIO interface {
	// Inb reads a byte from port.
	Inb(port uint16) uint8

	// Outb writes val to port.
	Outb(port uint16, val uint8)
}

// Ports implements PortIO using the IN and OUT instructions.
type Ports struct{}

// Inb reads a byte from port.
func (Ports) Inb(port uint16) uint8 { return portReadByte(port) }

// Outb writes val to port.
func (Ports) Outb(port uint16, val uint8) { portWriteByte(port, val) }
