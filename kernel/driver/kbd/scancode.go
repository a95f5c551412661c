package kbd

import "kcore/kernel"

const (
	extendedPrefix = 0xe0
	pausePrefix    = 0xe1
	breakBit       = 0x80
	noKey          = KeyCode(0xff)
)

var (
	// ErrUnknownScancode is returned when the keyboard sends a byte
	// that does not correspond to any key in the current state.
	ErrUnknownScancode = &kernel.Error{Module: "kbd", Message: "unknown scancode"}

	// set1Keys maps the make codes of scancode set 1 to key codes.
	set1Keys = [0x59]KeyCode{
		0x00: noKey,
		0x01: KeyEscape,
		0x02: Key1,
		0x03: Key2,
		0x04: Key3,
		0x05: Key4,
		0x06: Key5,
		0x07: Key6,
		0x08: Key7,
		0x09: Key8,
		0x0a: Key9,
		0x0b: Key0,
		0x0c: KeyMinus,
		0x0d: KeyEquals,
		0x0e: KeyBackspace,
		0x0f: KeyTab,
		0x10: KeyQ,
		0x11: KeyW,
		0x12: KeyE,
		0x13: KeyR,
		0x14: KeyT,
		0x15: KeyY,
		0x16: KeyU,
		0x17: KeyI,
		0x18: KeyO,
		0x19: KeyP,
		0x1a: KeyBracketSquareLeft,
		0x1b: KeyBracketSquareRight,
		0x1c: KeyEnter,
		0x1d: KeyControlLeft,
		0x1e: KeyA,
		0x1f: KeyS,
		0x20: KeyD,
		0x21: KeyF,
		0x22: KeyG,
		0x23: KeyH,
		0x24: KeyJ,
		0x25: KeyK,
		0x26: KeyL,
		0x27: KeySemiColon,
		0x28: KeyQuote,
		0x29: KeyBackTick,
		0x2a: KeyShiftLeft,
		0x2b: KeyBackSlash,
		0x2c: KeyZ,
		0x2d: KeyX,
		0x2e: KeyC,
		0x2f: KeyV,
		0x30: KeyB,
		0x31: KeyN,
		0x32: KeyM,
		0x33: KeyComma,
		0x34: KeyFullstop,
		0x35: KeySlash,
		0x36: KeyShiftRight,
		0x37: KeyNumpadStar,
		0x38: KeyAltLeft,
		0x39: KeySpacebar,
		0x3a: KeyCapsLock,
		0x3b: KeyF1,
		0x3c: KeyF2,
		0x3d: KeyF3,
		0x3e: KeyF4,
		0x3f: KeyF5,
		0x40: KeyF6,
		0x41: KeyF7,
		0x42: KeyF8,
		0x43: KeyF9,
		0x44: KeyF10,
		0x45: KeyNumpadLock,
		0x46: KeyScrollLock,
		0x47: KeyNumpad7,
		0x48: KeyNumpad8,
		0x49: KeyNumpad9,
		0x4a: KeyNumpadMinus,
		0x4b: KeyNumpad4,
		0x4c: KeyNumpad5,
		0x4d: KeyNumpad6,
		0x4e: KeyNumpadPlus,
		0x4f: KeyNumpad1,
		0x50: KeyNumpad2,
		0x51: KeyNumpad3,
		0x52: KeyNumpad0,
		0x53: KeyNumpadPeriod,
		0x54: noKey,
		0x55: noKey,
		0x56: KeyOem102,
		0x57: KeyF11,
		0x58: KeyF12,
	}

	// set1ExtendedKeys lists the make codes that follow the 0xe0 prefix.
	set1ExtendedKeys = [...]struct {
		code uint8
		key  KeyCode
	}{
		{0x1c, KeyNumpadEnter},
		{0x1d, KeyControlRight},
		{0x35, KeyNumpadSlash},
		{0x37, KeyPrintScreen},
		{0x38, KeyAltRight},
		{0x47, KeyHome},
		{0x48, KeyArrowUp},
		{0x49, KeyPageUp},
		{0x4b, KeyArrowLeft},
		{0x4d, KeyArrowRight},
		{0x4f, KeyEnd},
		{0x50, KeyArrowDown},
		{0x51, KeyPageDown},
		{0x52, KeyInsert},
		{0x53, KeyDelete},
		{0x5b, KeyWindowsLeft},
		{0x5c, KeyWindowsRight},
		{0x5d, KeyApps},
	}
)

type decodeState uint8

const (
	stateStart decodeState = iota
	stateExtended
	statePause
	statePauseMake
	statePauseBreak
)

// ScancodeSet1 decodes the byte stream of a keyboard operating in scancode
// set 1 (the set emulated by the PS/2 controller by default). Most keys send
// a single make byte when pressed and the same byte with bit 7 set when
// released; some keys are prefixed by 0xe0 and the pause key sends a fixed
// 0xe1 sequence.
type ScancodeSet1 struct {
	state decodeState
}

// AddByte feeds the next byte read from the keyboard to the decoder. It
// returns true together with the key event once a complete scancode has
// been received. Unknown bytes are reported as ErrUnknownScancode and reset
// the decoder.
func (s *ScancodeSet1) AddByte(b uint8) (KeyEvent, bool, *kernel.Error) {
	switch s.state {
	case stateExtended:
		s.state = stateStart

		code := b &^ breakBit
		// Some keyboards wrap PrintScreen and the navigation block in
		// fake shift presses.
		if code == 0x2a || code == 0x36 {
			return KeyEvent{}, false, nil
		}

		keyCode, ok := extendedKey(code)
		if !ok {
			return KeyEvent{}, false, ErrUnknownScancode
		}
		return KeyEvent{Code: keyCode, State: stateFor(b)}, true, nil

	// Pause sends e1 1d 45 when pressed and e1 9d c5 when released.
	case statePause:
		switch b {
		case 0x1d:
			s.state = statePauseMake
		case 0x9d:
			s.state = statePauseBreak
		default:
			s.state = stateStart
			return KeyEvent{}, false, ErrUnknownScancode
		}
		return KeyEvent{}, false, nil
	case statePauseMake, statePauseBreak:
		expect := uint8(0x45)
		if s.state == statePauseBreak {
			expect |= breakBit
		}
		s.state = stateStart

		if b != expect {
			return KeyEvent{}, false, ErrUnknownScancode
		}
		return KeyEvent{Code: KeyPauseBreak, State: stateFor(b)}, true, nil
	}

	switch b {
	case extendedPrefix:
		s.state = stateExtended
		return KeyEvent{}, false, nil
	case pausePrefix:
		s.state = statePause
		return KeyEvent{}, false, nil
	}

	code := b &^ breakBit
	if int(code) >= len(set1Keys) || set1Keys[code] == noKey {
		return KeyEvent{}, false, ErrUnknownScancode
	}

	return KeyEvent{Code: set1Keys[code], State: stateFor(b)}, true, nil
}

// extendedKey returns the key that sends code after the 0xe0 prefix.
func extendedKey(code uint8) (KeyCode, bool) {
	for _, ext := range set1ExtendedKeys {
		if ext.code == code {
			return ext.key, true
		}
	}
	return noKey, false
}

func stateFor(b uint8) KeyState {
	if b&breakBit != 0 {
		return Up
	}
	return Down
}
