package kfmt

import (
	"bytes"
	"io"
	"testing"
)

func TestRingBuffer(t *testing.T) {
	var (
		buf      bytes.Buffer
		expStr   = "the big brown fox jumped over the lazy dog"
		rb       ringBuffer
		n        int
		err      error
		readBuf  = make([]byte, 8)
		fillSize = ringBufferSize + 10
	)

	t.Run("read/write", func(t *testing.T) {
		rb.wIndex, rb.rIndex = 0, 0
		_, _ = rb.Write([]byte(expStr))

		buf.Reset()
		if _, err = io.Copy(&buf, &rb); err != nil {
			t.Fatal(err)
		}

		if got := buf.String(); got != expStr {
			t.Fatalf("expected to read %q; got %q", expStr, got)
		}
	})

	t.Run("overwrite oldest data", func(t *testing.T) {
		rb.wIndex, rb.rIndex = 0, 0
		for i := 0; i < fillSize; i++ {
			_, _ = rb.Write([]byte{byte('a' + i%26)})
		}

		buf.Reset()
		if _, err = io.Copy(&buf, &rb); err != nil {
			t.Fatal(err)
		}

		// One slot is always kept free to tell a full buffer from an empty one.
		if exp, got := ringBufferSize-1, buf.Len(); got != exp {
			t.Fatalf("expected to read %d bytes; got %d", exp, got)
		}

		if exp, got := byte('a'+(fillSize-1)%26), buf.Bytes()[buf.Len()-1]; got != exp {
			t.Fatalf("expected last byte to be %q; got %q", exp, got)
		}
	})

	t.Run("empty buffer", func(t *testing.T) {
		rb.wIndex, rb.rIndex = 0, 0
		if n, err = rb.Read(readBuf); n != 0 || err != io.EOF {
			t.Fatalf("expected (0, io.EOF); got (%d, %v)", n, err)
		}
	})
}
