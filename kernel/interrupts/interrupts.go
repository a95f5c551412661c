// Package interrupts builds the kernel interrupt table and services the
// CPU exceptions and hardware interrupts that the kernel handles: the
// breakpoint and double fault exceptions and the timer and keyboard IRQs
// delivered through the 8259 PIC chain.
package interrupts

import (
	"kcore/kernel"
	"kcore/kernel/cpu"
	"kcore/kernel/driver/kbd"
	"kcore/kernel/gate"
	"kcore/kernel/gdt"
	"kcore/kernel/kfmt"
	"kcore/kernel/pic"
	"kcore/kernel/sync"
)

const (
	// PIC1Offset is the first vector used by the master PIC. Vectors 0-31
	// are reserved for CPU exceptions.
	PIC1Offset = 32

	// PIC2Offset is the first vector used by the slave PIC.
	PIC2Offset = PIC1Offset + 8

	// Timer is raised by the programmable interval timer on IRQ 0.
	Timer = gate.InterruptNumber(PIC1Offset)

	// Keyboard is raised by the PS/2 keyboard on IRQ 1.
	Keyboard = gate.InterruptNumber(PIC1Offset + 1)

	// keyboardDataPort is the PS/2 controller port that holds the last
	// scancode.
	keyboardDataPort = 0x60
)

var (
	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	loadTableFn        = (*gate.Table).Load
	enableInterruptsFn = cpu.EnableInterrupts
	setOutputGuardFn   = kfmt.SetOutputGuard
	panicFn            = kfmt.Panic

	// portIO is replaced by tests to emulate the PIC and the keyboard.
	portIO cpu.PortIO = cpu.Ports{}

	idt     gate.Table
	idtOnce sync.Once

	// enabledLines lists the vectors whose PIC lines Init unmasks.
	enabledLines = [...]gate.InterruptNumber{Timer, Keyboard}

	// pics is shared between Init and the interrupt handlers; picLock
	// must be held while accessing it.
	pics    pic.ChainedPICs
	picLock sync.Spinlock

	// keyboard is set up by Init and afterwards only accessed by
	// keyboardHandler; keyboardLock keeps the decoder state consistent if
	// the handler is ever re-entered.
	keyboard     kbd.Keyboard
	keyboardLock sync.Spinlock

	errDoubleFault = &kernel.Error{Module: "interrupts", Message: "double fault"}
)

// IDT returns the kernel interrupt table. The table is populated on first
// use and lives for the remainder of the kernel's lifetime.
func IDT() *gate.Table {
	idtOnce.Do(func() {
		idt.SetHandler(gate.Breakpoint, breakpointHandler)

		if err := idt.SetHandler(gate.DoubleFault, doubleFaultHandler).SetStackIndex(gdt.DoubleFaultISTIndex); err != nil {
			panicFn(err)
		}

		idt.SetHandler(Timer, timerHandler)
		idt.SetHandler(Keyboard, keyboardHandler)
	})

	return &idt
}

// Init loads the interrupt table, remaps the PIC chain, enables the timer
// and keyboard IRQ lines and finally enables interrupt delivery.
//
// Init must be called once, with interrupts disabled, after the GDT and TSS
// providing the double fault stack have been loaded.
func Init() {
	loadTableFn(IDT())

	keyboardLock.Acquire()
	keyboard.Init(kbd.Ignore)
	keyboardLock.Release()

	picLock.Acquire()
	pics = pic.New(PIC1Offset, PIC2Offset, portIO)
	pics.Initialize()
	pics.WriteMasks(0xff, 0xff)
	for _, line := range enabledLines {
		if err := pics.Unmask(uint8(line)); err != nil {
			picLock.Release()
			panicFn(err)
			return
		}
	}
	picLock.Release()

	// Handlers print; from now on code printing outside of an interrupt
	// handler must not be interrupted while holding the output lock.
	setOutputGuardFn(sync.SuspendInterrupts, sync.RestoreInterrupts)

	enableInterruptsFn()
}

func breakpointHandler(regs *gate.Registers) {
	kfmt.Printf("EXCEPTION: BREAKPOINT\n")
	regs.DumpTo(kfmt.GetOutputSink())
}

func doubleFaultHandler(regs *gate.Registers) {
	kfmt.Printf("EXCEPTION: DOUBLE FAULT (error code: %x)\n", regs.ErrorCode)
	regs.DumpTo(kfmt.GetOutputSink())

	// A double fault is not recoverable; panicFn never returns.
	panicFn(errDoubleFault)
}

func timerHandler(_ *gate.Registers) {
	kfmt.Printf(".")

	notifyEndOfInterrupt(Timer)
}

func keyboardHandler(_ *gate.Registers) {
	scancode := portIO.Inb(keyboardDataPort)

	keyboardLock.Acquire()
	if ev, complete, err := keyboard.AddByte(scancode); err == nil && complete {
		if key, ok := keyboard.ProcessKeyEvent(ev); ok {
			switch key.Kind {
			case kbd.Unicode:
				kfmt.Printf("%c", key.Rune)
			case kbd.RawKey:
				kfmt.Printf("%s", key.Key.String())
			}
		}
	}
	keyboardLock.Release()

	notifyEndOfInterrupt(Keyboard)
}

// notifyEndOfInterrupt acknowledges a hardware interrupt. Until it is
// called the PIC chain delivers no further interrupts of the same or lower
// priority.
func notifyEndOfInterrupt(intNumber gate.InterruptNumber) {
	picLock.Acquire()
	pics.NotifyEndOfInterrupt(uint8(intNumber))
	picLock.Release()
}
