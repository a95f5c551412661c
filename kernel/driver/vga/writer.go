package vga

// Writer implements a simple terminal on top of the text buffer that
// processes LF and CR characters and scrolls when the last line fills up.
type Writer struct {
	buf textBuffer

	curX    uint16
	curY    uint16
	curAttr Attr
}

// Init attaches the writer to the text buffer mapped at fbAddr, clears it
// and resets the cursor to the top-left corner. Text is written in yellow on
// black.
func (w *Writer) Init(fbAddr uintptr) {
	w.buf = bufferAt(fbAddr)
	w.curAttr = MakeAttr(Yellow, Black)
	w.Clear()
}

// MakeAttr combines a foreground and a background color.
func MakeAttr(fg, bg Attr) Attr {
	return (bg << 4) | (fg & 0xf)
}

// SetColor changes the attribute used for subsequent writes.
func (w *Writer) SetColor(attr Attr) {
	w.curAttr = attr
}

// Clear blanks the screen and moves the cursor to the top-left corner.
func (w *Writer) Clear() {
	for y := uint16(0); y < height; y++ {
		w.buf.clearRow(y, w.curAttr)
	}
	w.curX, w.curY = 0, 0
}

// Position returns the current cursor position (x, y).
func (w *Writer) Position() (uint16, uint16) {
	return w.curX, w.curY
}

// SetPosition sets the current cursor position to (x,y).
func (w *Writer) SetPosition(x, y uint16) {
	if x >= width {
		x = width - 1
	}

	if y >= height {
		y = height - 1
	}

	w.curX, w.curY = x, y
}

// Write implements io.Writer.
func (w *Writer) Write(data []byte) (int, error) {
	for _, b := range data {
		switch {
		case b == '\r':
			w.curX = 0
		case b == '\n':
			w.curX = 0
			w.lf()
		default:
			if b < 0x20 || b > 0x7e {
				b = unprintableChar
			}

			w.buf.put(b, w.curAttr, w.curX, w.curY)
			w.curX++
			if w.curX == width {
				w.curX = 0
				w.lf()
			}
		}
	}

	return len(data), nil
}

// lf advances the cursor by one line scrolling the screen contents if the
// last line is reached.
func (w *Writer) lf() {
	if w.curY+1 < height {
		w.curY++
		return
	}

	w.buf.scrollUp()
	w.buf.clearRow(height-1, w.curAttr)
}
