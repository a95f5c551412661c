// Package kfmt implements the kernel's diagnostic output: a Printf that never
// allocates, a ring buffer that captures output until a console is attached
// and the Panic routine that halts the CPU.
package kfmt

import (
	"io"
	"unsafe"

	"kcore/kernel/sync"
)

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")
	digits          = []byte("0123456789abcdef")

	numFmtBuf [maxBufSize]byte

	// singleByte is used as a shared buffer for passing single characters
	// to doWrite.
	singleByte = []byte(" ")

	// earlyPrintBuffer stores Printf output until SetOutputSink is called.
	earlyPrintBuffer ringBuffer

	// outputSink is the io.Writer that receives Printf output. If nil, the
	// output is captured by earlyPrintBuffer.
	outputSink io.Writer

	// outputLock serializes access to the shared formatting buffers and the
	// output sink.
	outputLock sync.Spinlock

	// outputGuardEnter and outputGuardExit bracket every Printf call. Once
	// interrupt handlers may print they must suspend interrupt delivery
	// (see SetOutputGuard).
	outputGuardEnter = guardNoopEnter
	outputGuardExit  = guardNoopExit
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the early print buffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		_, _ = io.Copy(w, &earlyPrintBuffer)
	}
}

// GetOutputSink returns the currently active output sink.
func GetOutputSink() io.Writer {
	return outputSink
}

// SetOutputGuard registers the functions invoked before and after each
// Printf call; the value returned by enter is passed to exit. The interrupt
// subsystem installs sync.SuspendInterrupts and sync.RestoreInterrupts here
// before enabling interrupts so that a handler can never spin on outputLock
// while the interrupted code holds it. Passing nil functions restores the
// default pass-through guard.
//
// The guard is a pair of plain functions rather than a wrapper taking a
// closure so that Printf does not allocate.
func SetOutputGuard(enter func() bool, exit func(bool)) {
	if enter == nil || exit == nil {
		enter, exit = guardNoopEnter, guardNoopExit
	}
	outputGuardEnter, outputGuardExit = enter, exit
}

func guardNoopEnter() bool { return false }
func guardNoopExit(bool)   {}

// Printf provides a minimal Printf implementation that is safe to use from
// interrupt handlers and before the Go allocator is available.
//
// The following subset of formatting verbs is supported:
//
//	%s  the uninterpreted bytes of a string or byte slice
//	%c  a single character (byte or rune)
//	%o  base 8
//	%d  base 10
//	%x  base 16, with lower-case letters for a-f
//	%t  "true" or "false"
//
// Width is specified by an optional decimal number immediately preceding the
// verb. Strings and base-10 integers are left-padded with spaces; base-8 and
// base-16 integers are left-padded with zeroes.
func Printf(format string, args ...interface{}) {
	defer outputGuardExit(outputGuardEnter())

	outputLock.Acquire()
	defer outputLock.Release()
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer. Unlike Printf it performs no locking.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		nextArg int
		padLen  int
		fmtLen  = len(format)
	)

	for i := 0; i < fmtLen; i++ {
		if format[i] != '%' {
			writeByte(w, format[i])
			continue
		}

		padLen = 0
		for i++; i < fmtLen && format[i] >= '0' && format[i] <= '9'; i++ {
			padLen = padLen*10 + int(format[i]-'0')
		}

		if i == fmtLen {
			doWrite(w, errNoVerb)
			break
		}

		verb := format[i]
		switch verb {
		case '%':
			writeByte(w, '%')
			continue
		case 'd', 'x', 'o', 's', 'c', 't':
		default:
			doWrite(w, errNoVerb)
			continue
		}

		if nextArg >= len(args) {
			doWrite(w, errMissingArg)
			continue
		}

		switch verb {
		case 'o':
			fmtInt(w, args[nextArg], 8, padLen)
		case 'd':
			fmtInt(w, args[nextArg], 10, padLen)
		case 'x':
			fmtInt(w, args[nextArg], 16, padLen)
		case 's':
			fmtString(w, args[nextArg], padLen)
		case 'c':
			fmtChar(w, args[nextArg])
		case 't':
			fmtBool(w, args[nextArg])
		}
		nextArg++
	}

	for ; nextArg < len(args); nextArg++ {
		doWrite(w, errExtraArg)
	}
}

func fmtBool(w io.Writer, v interface{}) {
	b, ok := v.(bool)
	switch {
	case !ok:
		doWrite(w, errWrongArgType)
	case b:
		doWrite(w, trueValue)
	default:
		doWrite(w, falseValue)
	}
}

// fmtChar writes a single byte or the UTF-8 encoding of a rune.
func fmtChar(w io.Writer, v interface{}) {
	var r rune
	switch c := v.(type) {
	case byte:
		writeByte(w, c)
		return
	case rune:
		r = c
	default:
		doWrite(w, errWrongArgType)
		return
	}

	switch {
	case r >= 0 && r < 0x80:
		writeByte(w, byte(r))
	case r < 0x800:
		writeByte(w, 0xc0|byte(r>>6))
		writeByte(w, 0x80|byte(r)&0x3f)
	case r < 0x10000:
		writeByte(w, 0xe0|byte(r>>12))
		writeByte(w, 0x80|byte(r>>6)&0x3f)
		writeByte(w, 0x80|byte(r)&0x3f)
	default:
		writeByte(w, 0xf0|byte(r>>18))
		writeByte(w, 0x80|byte(r>>12)&0x3f)
		writeByte(w, 0x80|byte(r>>6)&0x3f)
		writeByte(w, 0x80|byte(r)&0x3f)
	}
}

func fmtString(w io.Writer, v interface{}, padLen int) {
	switch s := v.(type) {
	case string:
		fmtRepeat(w, ' ', padLen-len(s))
		// converting the string to a byte slice triggers a memory
		// allocation so it is written one byte at a time.
		for i := 0; i < len(s); i++ {
			writeByte(w, s[i])
		}
	case []byte:
		fmtRepeat(w, ' ', padLen-len(s))
		doWrite(w, s)
	default:
		doWrite(w, errWrongArgType)
	}
}

func fmtRepeat(w io.Writer, ch byte, count int) {
	for ; count > 0; count-- {
		writeByte(w, ch)
	}
}

// fmtInt prints out a formatted version of v in the requested base, applying
// the padding specified by padLen. All built-in signed and unsigned integer
// types are supported.
func fmtInt(w io.Writer, v interface{}, base uint64, padLen int) {
	var (
		uval     uint64
		negative bool
		padCh    = byte('0')
	)

	switch n := v.(type) {
	case uint8:
		uval = uint64(n)
	case uint16:
		uval = uint64(n)
	case uint32:
		uval = uint64(n)
	case uint64:
		uval = n
	case uint:
		uval = uint64(n)
	case uintptr:
		uval = uint64(n)
	case int8:
		uval, negative = abs(int64(n))
	case int16:
		uval, negative = abs(int64(n))
	case int32:
		uval, negative = abs(int64(n))
	case int64:
		uval, negative = abs(n)
	case int:
		uval, negative = abs(int64(n))
	default:
		doWrite(w, errWrongArgType)
		return
	}

	if base == 10 {
		padCh = ' '
	}
	if padLen >= maxBufSize {
		padLen = maxBufSize - 1
	}

	// Digits are generated right-to-left starting from the end of the buffer.
	pos := maxBufSize
	for {
		pos--
		numFmtBuf[pos] = digits[uval%base]
		uval /= base
		if uval == 0 {
			break
		}
	}

	if negative && padCh == ' ' {
		pos--
		numFmtBuf[pos] = '-'
	}

	for maxBufSize-pos < padLen && pos > 1 {
		pos--
		numFmtBuf[pos] = padCh
	}

	// Zero-padded negative numbers carry the sign in front of the padding.
	if negative && padCh == '0' {
		pos--
		numFmtBuf[pos] = '-'
	}

	doWrite(w, numFmtBuf[pos:])
}

func abs(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

func writeByte(w io.Writer, b byte) {
	singleByte[0] = b
	doWrite(w, singleByte)
}

// doWrite is a proxy that uses the runtime.noescape hack to hide p from the
// compiler's escape analysis. Without it the compiler flags p as escaping
// (the sink is an unknown io.Writer) and every Printf call would allocate.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		_, _ = w.Write(p)
	} else {
		_, _ = earlyPrintBuffer.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. This function is copied over
// from runtime/stubs.go
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
