// Command kbdecho reads keys from the terminal, converts each one to the
// scancode set 1 byte sequence a PS/2 keyboard would send and prints what the
// kernel keyboard decoder makes of it. Press Ctrl-D to quit.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"kcore/kernel/driver/kbd"

	tty "github.com/mattn/go-tty"
)

const eot = 0x04

type runeReader interface {
	ReadRune() (rune, error)
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[kbdecho] error: %s\n", err.Error())
	os.Exit(1)
}

// echo processes runes from r until EOF or Ctrl-D. Lines are terminated with
// CRLF as the terminal is in raw mode.
func echo(r runeReader, w io.Writer, keyboard *kbd.Keyboard) error {
	for {
		ch, err := r.ReadRune()
		if err == io.EOF || ch == eot {
			return nil
		} else if err != nil {
			return err
		}

		switch ch {
		case '\r':
			ch = '\n'
		case 0x7f:
			ch = '\b'
		}

		seq, ok := kbd.EncodeRune(ch)
		if !ok {
			fmt.Fprintf(w, "%-30s -> %q cannot be typed\r\n", "", ch)
			continue
		}

		fmt.Fprintf(w, "%-30s -> %s\r\n", fmt.Sprintf("% x", seq), decode(keyboard, seq))
	}
}

// decode feeds seq to keyboard and returns the decoded keys.
func decode(keyboard *kbd.Keyboard, seq []byte) string {
	var out []string
	for _, b := range seq {
		ev, ok, err := keyboard.AddByte(b)
		if err != nil {
			out = append(out, "<"+err.Message+">")
			continue
		} else if !ok {
			continue
		}

		key, ok := keyboard.ProcessKeyEvent(ev)
		if !ok {
			continue
		}

		switch key.Kind {
		case kbd.Unicode:
			out = append(out, fmt.Sprintf("%q", key.Rune))
		default:
			out = append(out, key.Key.String())
		}
	}

	return strings.Join(out, " ")
}

func main() {
	term, err := tty.Open()
	if err != nil {
		exit(err)
	}
	defer func() { _ = term.Close() }()

	fmt.Fprint(term.Output(), "type keys to see their scancodes; Ctrl-D quits\r\n")
	if err = echo(term, term.Output(), kbd.New(kbd.Ignore)); err != nil {
		_ = term.Close()
		exit(err)
	}
}
