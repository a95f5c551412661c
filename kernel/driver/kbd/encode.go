package kbd

// encodableKeys lists the keys that EncodeRune may use, in order of
// preference. Keypad keys are left out in favor of their main block
// counterparts.
var encodableKeys = []KeyCode{
	KeyBackTick, Key1, Key2, Key3, Key4, Key5, Key6, Key7, Key8, Key9, Key0,
	KeyMinus, KeyEquals, KeyBracketSquareLeft, KeyBracketSquareRight,
	KeyBackSlash, KeySemiColon, KeyQuote, KeyComma, KeyFullstop, KeySlash,
	KeySpacebar, KeyTab, KeyEnter, KeyBackspace, KeyEscape, KeyDelete,
}

// EncodeRune returns the scancode set 1 byte sequence that a US 104-key
// keyboard sends when r is typed: the key is pressed and released, wrapped
// in a left shift press and release when needed. It returns false if r
// cannot be typed.
func EncodeRune(r rune) ([]byte, bool) {
	code, shifted, ok := keyForRune(r)
	if !ok {
		return nil, false
	}

	var seq []byte
	if shifted {
		seq = appendKey(seq, KeyShiftLeft, Down)
	}
	seq = appendKey(seq, code, Down)
	seq = appendKey(seq, code, Up)
	if shifted {
		seq = appendKey(seq, KeyShiftLeft, Up)
	}

	return seq, true
}

func keyForRune(r rune) (KeyCode, bool, bool) {
	for code, letter := range us104Letters {
		if letter == 0 {
			continue
		}

		switch r {
		case letter:
			return KeyCode(code), false, true
		case letter - 'a' + 'A':
			return KeyCode(code), true, true
		}
	}

	for _, code := range encodableKeys {
		printable := us104Printable[code]
		switch r {
		case printable.base:
			return code, false, true
		case printable.shifted:
			return code, true, true
		}
	}

	return 0, false, false
}

// appendKey appends the make or break code of a key to seq.
func appendKey(seq []byte, code KeyCode, state KeyState) []byte {
	var stateBit uint8
	if state == Up {
		stateBit = breakBit
	}

	for b, keyCode := range set1Keys {
		if keyCode == code {
			return append(seq, uint8(b)|stateBit)
		}
	}

	for _, ext := range set1ExtendedKeys {
		if ext.key == code {
			return append(seq, extendedPrefix, ext.code|stateBit)
		}
	}

	return seq
}
