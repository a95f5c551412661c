package main

import (
	"kcore/kernel/boot"
	"kcore/kernel/driver/vga"
	"kcore/kernel/kfmt"
	"kcore/kernel/kmain"
)

// The following variables are populated by the rt0 code before main is
// invoked.
var (
	multibootInfoPtr     uintptr
	physicalMemoryOffset uintptr
	kernelStart          uintptr
	kernelEnd            uintptr

	bootInfo boot.Info
	screen   vga.Writer
)

// main makes a dummy call to the actual kernel main entrypoint function. It
// is intentionally defined to prevent the Go compiler from optimizing away the
// real kernel code.
//
// Global variables are used as arguments to prevent the compiler from
// inlining the actual call and removing Kmain from the generated .o file.
func main() {
	screen.Init(physicalMemoryOffset + vga.BufferAddr)
	kfmt.SetOutputSink(&screen)

	bootInfo.KernelStart, bootInfo.KernelEnd = kernelStart, kernelEnd
	if err := boot.FromMultiboot(&bootInfo, multibootInfoPtr, physicalMemoryOffset); err != nil {
		kfmt.Panic(err)
	}

	kmain.Kmain(&bootInfo)
}
