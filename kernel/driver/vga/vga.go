// Package vga provides a text-mode writer for the 80x25 VGA text buffer. It
// is used as the kfmt output sink.
package vga

import (
	"reflect"
	"unsafe"
)

// BufferAddr is the physical address of the VGA text buffer.
const BufferAddr = 0xb8000

const (
	width  = 80
	height = 25

	clearChar = byte(' ')

	// unprintableChar is the code page 437 glyph (a small square) used for
	// bytes outside the printable ASCII range.
	unprintableChar = byte(0xfe)
)

// Attr defines a color attribute.
type Attr uint8

// The set of colors supported by the text buffer.
const (
	Black Attr = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGrey
	Grey
	LightBlue
	LightGreen
	LightCyan
	LightRed
	LightMagenta
	Yellow
	White
)

// textBuffer wraps the memory of a width x height text buffer. Each cell
// holds a character in the low byte and its color attribute in the high
// byte.
type textBuffer struct {
	cells []uint16
}

// bufferAt returns a textBuffer overlaying the memory at addr.
func bufferAt(addr uintptr) textBuffer {
	return textBuffer{
		cells: *(*[]uint16)(unsafe.Pointer(&reflect.SliceHeader{
			Len:  width * height,
			Cap:  width * height,
			Data: addr,
		})),
	}
}

// clearRow fills row y with blanks.
func (b textBuffer) clearRow(y uint16, attr Attr) {
	clr := uint16(attr)<<8 | uint16(clearChar)
	for i := y * width; i < (y+1)*width; i++ {
		b.cells[i] = clr
	}
}

// scrollUp moves every row up by one line, discarding the top row. The
// bottom row is left untouched.
func (b textBuffer) scrollUp() {
	copy(b.cells, b.cells[width:])
}

// put writes ch at (x, y). Off-screen coordinates are ignored.
func (b textBuffer) put(ch byte, attr Attr, x, y uint16) {
	if x >= width || y >= height {
		return
	}

	b.cells[y*width+x] = uint16(attr)<<8 | uint16(ch)
}
