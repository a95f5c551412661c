// Package pic drives the pair of cascaded 8259 programmable interrupt
// controllers found on PC compatible machines. The controllers deliver the
// legacy hardware IRQs 0-15; by default they overlap with the CPU exception
// vectors so they must be remapped before interrupts are enabled.
package pic

import (
	"kcore/kernel"
	"kcore/kernel/cpu"
	"kcore/kernel/kfmt"
)

const (
	masterCommandPort = 0x20
	masterDataPort    = 0x21
	slaveCommandPort  = 0xa0
	slaveDataPort     = 0xa1

	// waitPort is an unused port; writing to it gives the controllers
	// time to process the previous command on older hardware.
	waitPort = 0x80

	// cmdInit starts the initialization sequence (ICW1) and announces
	// that ICW4 will follow.
	cmdInit = 0x11

	// cmdEndOfInterrupt acknowledges the interrupt being serviced.
	cmdEndOfInterrupt = 0x20

	// mode8086 selects 8086/88 mode in ICW4.
	mode8086 = 0x01

	// cascadeLine is the master IRQ line that the slave is wired to.
	cascadeLine = 2

	// linesPerController is the number of IRQ lines of each controller.
	linesPerController = 8
)

// ErrVectorNotHandled is returned when masking or unmasking a vector that
// lies outside the ranges served by the chain.
var ErrVectorNotHandled = &kernel.Error{Module: "pic", Message: "vector is not handled by the PIC chain"}

type controller struct {
	offset      uint8
	commandPort uint16
	dataPort    uint16
}

// handlesInterrupt returns true if vector is one of the eight vectors
// mapped to the controller's IRQ lines.
func (c *controller) handlesInterrupt(vector uint8) bool {
	return int(vector) >= int(c.offset) && int(vector) < int(c.offset)+linesPerController
}

// ChainedPICs controls the master controller and the slave controller
// cascaded on its IRQ 2 line.
type ChainedPICs struct {
	ports  cpu.PortIO
	master controller
	slave  controller
}

// New returns the chain with the master IRQs mapped to vectors
// offset1..offset1+7 and the slave IRQs mapped to offset2..offset2+7. The
// mapping takes effect once Initialize is called. The chain is returned by
// value so that it can be stored in a package-level variable without a heap
// allocation.
func New(offset1, offset2 uint8, ports cpu.PortIO) ChainedPICs {
	return ChainedPICs{
		ports:  ports,
		master: controller{offset: offset1, commandPort: masterCommandPort, dataPort: masterDataPort},
		slave:  controller{offset: offset2, commandPort: slaveCommandPort, dataPort: slaveDataPort},
	}
}

// Initialize reprograms both controllers with the configured vector offsets
// and restores the interrupt masks that were active before the call.
//
// Initialize must be called with interrupts disabled; the chosen offsets
// must not overlap the CPU exception vectors.
func (p *ChainedPICs) Initialize() {
	mask1, mask2 := p.ReadMasks()

	// ICW1: start the initialization sequence on both controllers.
	p.ports.Outb(p.master.commandPort, cmdInit)
	p.ioWait()
	p.ports.Outb(p.slave.commandPort, cmdInit)
	p.ioWait()

	// ICW2: vector offsets.
	p.ports.Outb(p.master.dataPort, p.master.offset)
	p.ioWait()
	p.ports.Outb(p.slave.dataPort, p.slave.offset)
	p.ioWait()

	// ICW3: the master is told which line has the slave attached (as a
	// bit mask) and the slave is told its cascade identity.
	p.ports.Outb(p.master.dataPort, 1<<cascadeLine)
	p.ioWait()
	p.ports.Outb(p.slave.dataPort, cascadeLine)
	p.ioWait()

	// ICW4
	p.ports.Outb(p.master.dataPort, mode8086)
	p.ioWait()
	p.ports.Outb(p.slave.dataPort, mode8086)
	p.ioWait()

	p.WriteMasks(mask1, mask2)

	kfmt.Printf("[pic] remapped IRQs 0-7 to vectors %d-%d and IRQs 8-15 to vectors %d-%d\n",
		p.master.offset, p.master.offset+linesPerController-1,
		p.slave.offset, p.slave.offset+linesPerController-1,
	)
}

// HandlesInterrupt returns true if vector belongs to one of the two
// controllers.
func (p *ChainedPICs) HandlesInterrupt(vector uint8) bool {
	return p.master.handlesInterrupt(vector) || p.slave.handlesInterrupt(vector)
}

// NotifyEndOfInterrupt acknowledges the interrupt with the given vector so
// that the controllers can deliver further interrupts. Vectors belonging to
// the slave controller are acknowledged on both controllers. Vectors not
// owned by the chain are ignored.
//
// The caller must pass the vector of the interrupt that is currently being
// serviced; acknowledging any other vector may drop an interrupt.
func (p *ChainedPICs) NotifyEndOfInterrupt(vector uint8) {
	if !p.HandlesInterrupt(vector) {
		return
	}

	if p.slave.handlesInterrupt(vector) {
		p.ports.Outb(p.slave.commandPort, cmdEndOfInterrupt)
	}
	p.ports.Outb(p.master.commandPort, cmdEndOfInterrupt)
}

// ReadMasks returns the interrupt masks of the master and slave
// controllers. A set bit disables the corresponding IRQ line.
func (p *ChainedPICs) ReadMasks() (uint8, uint8) {
	return p.ports.Inb(p.master.dataPort), p.ports.Inb(p.slave.dataPort)
}

// WriteMasks sets the interrupt masks of the master and slave controllers.
func (p *ChainedPICs) WriteMasks(mask1, mask2 uint8) {
	p.ports.Outb(p.master.dataPort, mask1)
	p.ports.Outb(p.slave.dataPort, mask2)
}

// Unmask enables the IRQ line mapped to vector. Unmasking a slave line also
// unmasks the cascade line on the master.
func (p *ChainedPICs) Unmask(vector uint8) *kernel.Error {
	mask1, mask2 := p.ReadMasks()

	switch {
	case p.master.handlesInterrupt(vector):
		mask1 &^= 1 << (vector - p.master.offset)
	case p.slave.handlesInterrupt(vector):
		mask2 &^= 1 << (vector - p.slave.offset)
		mask1 &^= 1 << cascadeLine
	default:
		return ErrVectorNotHandled
	}

	p.WriteMasks(mask1, mask2)
	return nil
}

// Mask disables the IRQ line mapped to vector.
func (p *ChainedPICs) Mask(vector uint8) *kernel.Error {
	mask1, mask2 := p.ReadMasks()

	switch {
	case p.master.handlesInterrupt(vector):
		mask1 |= 1 << (vector - p.master.offset)
	case p.slave.handlesInterrupt(vector):
		mask2 |= 1 << (vector - p.slave.offset)
	default:
		return ErrVectorNotHandled
	}

	p.WriteMasks(mask1, mask2)
	return nil
}

func (p *ChainedPICs) ioWait() {
	p.ports.Outb(waitPort, 0)
}
