// Command gengates generates the interrupt entry stubs used by the gate
// package. Each stub is exactly 16 bytes long so that the address of the stub
// for interrupt n is base + n*16. The stubs are emitted as raw bytes since
// the Go assembler is free to pick different encodings (and lengths) for
// PUSHQ and JMP.
//
// Usage: go run ./tools/gengates -out kernel/gate/entries_amd64.s
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
)

const (
	entryCount    = 256
	entryStubSize = 16

	// jmpEnd is the offset within a stub right after the JMP rel32
	// instruction; the jump displacement is relative to it.
	jmpEnd = 12
)

// errorCodeVectors lists the exceptions for which the CPU pushes an error
// code. The stubs for these vectors must not push a dummy one.
var errorCodeVectors = map[int]bool{
	8:  true,
	10: true,
	11: true,
	12: true,
	13: true,
	14: true,
	17: true,
	21: true,
	29: true,
	30: true,
}

const header = `// Code generated by gengates; DO NOT EDIT.

#include "textflag.h"

// fpuSaveSize is the size of the FXSAVE64 area.
#define fpuSaveSize 512

// func interruptGateEntries()
TEXT ·interruptGateEntries(SB),NOSPLIT,$0
`

const commonEntry = `
	// common entry; the stack holds the interrupt number, the error code
	// and the frame pushed by the CPU.
	PUSHQ R15
	PUSHQ R14
	PUSHQ R13
	PUSHQ R12
	PUSHQ R11
	PUSHQ R10
	PUSHQ R9
	PUSHQ R8
	PUSHQ BP
	PUSHQ DI
	PUSHQ SI
	PUSHQ DX
	PUSHQ CX
	PUSHQ BX
	PUSHQ AX

	// Handlers are regular Go code which may use the SSE registers and
	// assumes that the direction flag is clear. The x87/SSE state of the
	// interrupted code is saved to a 16-byte aligned area below the
	// registers; the slot after it keeps the address of the registers as
	// the call may clobber every general purpose register.
	MOVQ SP, AX
	SUBQ $fpuSaveSize+8, SP
	ANDQ $~15, SP
	FXSAVE64 0(SP)
	MOVQ AX, fpuSaveSize(SP)
	CLD

	// dispatchInterrupt(regs *Registers)
	SUBQ $8, SP
	MOVQ AX, 0(SP)
	CALL ·dispatchInterrupt(SB)
	ADDQ $8, SP

	FXRSTOR64 0(SP)
	MOVQ fpuSaveSize(SP), SP

	POPQ AX
	POPQ BX
	POPQ CX
	POPQ DX
	POPQ SI
	POPQ DI
	POPQ BP
	POPQ R8
	POPQ R9
	POPQ R10
	POPQ R11
	POPQ R12
	POPQ R13
	POPQ R14
	POPQ R15

	// drop the interrupt number and error code
	ADDQ $16, SP
	IRETQ

// func gateEntriesBase() uintptr
TEXT ·gateEntriesBase(SB),NOSPLIT,$0-8
	LEAQ ·interruptGateEntries(SB), AX
	MOVQ AX, ret+0(FP)
	RET
`

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[gengates] error: %s\n", err.Error())
	os.Exit(1)
}

// stubBytes returns the machine code of the entry stub for vector.
func stubBytes(vector int) []byte {
	stub := make([]byte, 0, entryStubSize)

	if errorCodeVectors[vector] {
		// NOP; NOP
		stub = append(stub, 0x90, 0x90)
	} else {
		// PUSHQ $0
		stub = append(stub, 0x6a, 0x00)
	}

	// PUSHQ $vector (imm32)
	stub = append(stub, 0x68, byte(vector), 0x00, 0x00, 0x00)

	// JMP rel32 to the common entry that follows the last stub
	rel := int32(entryCount*entryStubSize - (vector*entryStubSize + jmpEnd))
	stub = append(stub, 0xe9, byte(rel), byte(rel>>8), byte(rel>>16), byte(rel>>24))

	for len(stub) < entryStubSize {
		stub = append(stub, 0x90)
	}

	return stub
}

func writeBytes(w io.Writer, b []byte) {
	fmt.Fprint(w, "\t")
	for i, v := range b {
		if i != 0 {
			fmt.Fprint(w, "; ")
		}
		fmt.Fprintf(w, "BYTE $0x%02x", v)
	}
	fmt.Fprint(w, "\n")
}

func genEntries(w io.Writer) {
	fmt.Fprint(w, header)

	for vector := 0; vector < entryCount; vector++ {
		stub := stubBytes(vector)

		if errorCodeVectors[vector] {
			fmt.Fprintf(w, "\t// vector %d (error code pushed by the CPU)\n", vector)
		} else {
			fmt.Fprintf(w, "\t// vector %d\n", vector)
		}
		writeBytes(w, stub[0:2])
		writeBytes(w, stub[2:7])
		writeBytes(w, stub[7:12])
		writeBytes(w, stub[12:])
	}

	fmt.Fprint(w, commonEntry)
}

func main() {
	out := flag.String("out", "kernel/gate/entries_amd64.s", "the output file")
	flag.Parse()

	var buf bytes.Buffer
	genEntries(&buf)

	if err := ioutil.WriteFile(*out, buf.Bytes(), 0644); err != nil {
		exit(err)
	}
}
