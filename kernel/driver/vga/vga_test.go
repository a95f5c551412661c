package vga

import (
	"testing"
	"unsafe"
)

func newTestWriter() (*Writer, []uint16) {
	fb := make([]uint16, width*height)
	var w Writer
	w.Init(uintptr(unsafe.Pointer(&fb[0])))
	return &w, fb
}

func charAt(fb []uint16, x, y uint16) byte {
	return byte(fb[y*width+x] & 0xff)
}

func TestWriterInit(t *testing.T) {
	w, fb := newTestWriter()

	expCell := uint16(MakeAttr(Yellow, Black))<<8 | uint16(' ')
	for i, cell := range fb {
		if cell != expCell {
			t.Fatalf("expected cell %d to be cleared to %x; got %x", i, expCell, cell)
		}
	}

	if x, y := w.Position(); x != 0 || y != 0 {
		t.Fatalf("expected cursor at (0, 0); got (%d, %d)", x, y)
	}
}

func TestWriterPosition(t *testing.T) {
	specs := []struct {
		inX, inY   uint16
		expX, expY uint16
	}{
		{20, 20, 20, 20},
		{100, 20, 79, 20},
		{10, 200, 10, 24},
		{100, 100, 79, 24},
	}

	w, _ := newTestWriter()
	for specIndex, spec := range specs {
		w.SetPosition(spec.inX, spec.inY)
		if x, y := w.Position(); x != spec.expX || y != spec.expY {
			t.Errorf("[spec %d] expected setting position to (%d, %d) to update the position to (%d, %d); got (%d, %d)", specIndex, spec.inX, spec.inY, spec.expX, spec.expY, x, y)
		}
	}
}

func TestWriterWrite(t *testing.T) {
	w, fb := newTestWriter()

	w.SetColor(MakeAttr(White, Blue))
	if n, err := w.Write([]byte("12\n3\r45\x01")); err != nil || n != 8 {
		t.Fatalf("expected Write to return (8, nil); got (%d, %v)", n, err)
	}

	specs := []struct {
		x, y    uint16
		expChar byte
	}{
		{0, 0, '1'},
		{1, 0, '2'},
		{0, 1, '4'},
		{1, 1, '5'},
		{2, 1, unprintableChar},
	}

	for specIndex, spec := range specs {
		if ch := charAt(fb, spec.x, spec.y); ch != spec.expChar {
			t.Errorf("[spec %d] expected char at (%d, %d) to be %c; got %c", specIndex, spec.x, spec.y, spec.expChar, ch)
		}
	}

	if exp, got := MakeAttr(White, Blue), Attr(fb[0]>>8); got != exp {
		t.Errorf("expected attribute %x; got %x", exp, got)
	}
}

func TestWriterWrapAndScroll(t *testing.T) {
	w, fb := newTestWriter()

	w.SetPosition(0, 1)
	_, _ = w.Write([]byte("top"))

	// Filling the last line wraps the cursor and scrolls the screen.
	w.SetPosition(78, height-1)
	_, _ = w.Write([]byte("ab!"))

	specs := []struct {
		x, y    uint16
		expChar byte
	}{
		{0, 0, 't'},
		{1, 0, 'o'},
		{2, 0, 'p'},
		{78, height - 2, 'a'},
		{79, height - 2, 'b'},
		{0, height - 1, '!'},
		{1, height - 1, ' '},
	}

	for specIndex, spec := range specs {
		if ch := charAt(fb, spec.x, spec.y); ch != spec.expChar {
			t.Errorf("[spec %d] expected char at (%d, %d) to be %c; got %c", specIndex, spec.x, spec.y, spec.expChar, ch)
		}
	}

	if x, y := w.Position(); x != 1 || y != height-1 {
		t.Errorf("expected cursor at (1, %d); got (%d, %d)", height-1, x, y)
	}
}

func TestWriteOffScreen(t *testing.T) {
	_, fb := newTestWriter()
	buf := bufferAt(uintptr(unsafe.Pointer(&fb[0])))

	for _, spec := range []struct{ x, y uint16 }{{80, 25}, {90, 24}, {79, 30}} {
		buf.put('!', Red, spec.x, spec.y)
	}

	for i, cell := range fb {
		if byte(cell) == '!' {
			t.Fatalf("expected off-screen writes to be ignored; cell %d was modified", i)
		}
	}
}
