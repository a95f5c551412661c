package kbd

// DecodedKeyKind tells which field of a DecodedKey is valid.
type DecodedKeyKind uint8

const (
	// Unicode keys produce a character.
	Unicode DecodedKeyKind = iota

	// RawKey keys have no character representation in the active layout.
	RawKey
)

// DecodedKey is the result of applying the keyboard layout to a key press.
type DecodedKey struct {
	Kind DecodedKeyKind

	// Rune is set for Unicode keys.
	Rune rune

	// Key is set for RawKey keys.
	Key KeyCode
}

// HandleControl selects how letters are decoded while a control key is
// held down.
type HandleControl uint8

const (
	// Ignore decodes letters as if no control key was pressed.
	Ignore HandleControl = iota

	// MapLettersToUnicode maps Ctrl+A to Ctrl+Z to U+0001 to U+001A.
	MapLettersToUnicode
)

// Modifiers tracks the state of the modifier and lock keys.
type Modifiers struct {
	LShift, RShift bool
	LCtrl, RCtrl   bool
	Alt            bool
	CapsLock       bool
	NumLock        bool
}

func (m *Modifiers) isShifted() bool {
	return m.LShift || m.RShift
}

func (m *Modifiers) isCtrl() bool {
	return m.LCtrl || m.RCtrl
}

// isCaps returns true if letters should be upper case.
func (m *Modifiers) isCaps() bool {
	return m.isShifted() != m.CapsLock
}

// printableKey holds the characters produced by a key without and with
// shift on the US 104-key layout.
type printableKey struct {
	base, shifted rune
}

// The layout tables are indexed by KeyCode. Keys without an entry hold the
// zero value.
var us104Printable = [keyCodeCount]printableKey{
	KeyBackTick:           {'`', '~'},
	Key1:                  {'1', '!'},
	Key2:                  {'2', '@'},
	Key3:                  {'3', '#'},
	Key4:                  {'4', '$'},
	Key5:                  {'5', '%'},
	Key6:                  {'6', '^'},
	Key7:                  {'7', '&'},
	Key8:                  {'8', '*'},
	Key9:                  {'9', '('},
	Key0:                  {'0', ')'},
	KeyMinus:              {'-', '_'},
	KeyEquals:             {'=', '+'},
	KeyBracketSquareLeft:  {'[', '{'},
	KeyBracketSquareRight: {']', '}'},
	KeyBackSlash:          {'\\', '|'},
	KeySemiColon:          {';', ':'},
	KeyQuote:              {'\'', '"'},
	KeyComma:              {',', '<'},
	KeyFullstop:           {'.', '>'},
	KeySlash:              {'/', '?'},
	KeySpacebar:           {' ', ' '},
	KeyTab:                {'\t', '\t'},
	KeyEnter:              {'\n', '\n'},
	KeyBackspace:          {'\b', '\b'},
	KeyEscape:             {0x1b, 0x1b},
	KeyDelete:             {0x7f, 0x7f},
	KeyNumpadSlash:        {'/', '/'},
	KeyNumpadStar:         {'*', '*'},
	KeyNumpadMinus:        {'-', '-'},
	KeyNumpadPlus:         {'+', '+'},
	KeyNumpadEnter:        {'\n', '\n'},
}

// us104Letters maps the letter keys to their lower case character.
var us104Letters = [keyCodeCount]rune{
	KeyA: 'a', KeyB: 'b', KeyC: 'c', KeyD: 'd', KeyE: 'e', KeyF: 'f',
	KeyG: 'g', KeyH: 'h', KeyI: 'i', KeyJ: 'j', KeyK: 'k', KeyL: 'l',
	KeyM: 'm', KeyN: 'n', KeyO: 'o', KeyP: 'p', KeyQ: 'q', KeyR: 'r',
	KeyS: 's', KeyT: 't', KeyU: 'u', KeyV: 'v', KeyW: 'w', KeyX: 'x',
	KeyY: 'y', KeyZ: 'z',
}

// numpadKey holds the character a keypad key produces with num lock on and
// the key it acts as with num lock off.
type numpadKey struct {
	digit rune
	alt   KeyCode
}

var us104Numpad = [keyCodeCount]numpadKey{
	KeyNumpad0:      {'0', KeyInsert},
	KeyNumpad1:      {'1', KeyEnd},
	KeyNumpad2:      {'2', KeyArrowDown},
	KeyNumpad3:      {'3', KeyPageDown},
	KeyNumpad4:      {'4', KeyArrowLeft},
	KeyNumpad5:      {'5', KeyNumpad5},
	KeyNumpad6:      {'6', KeyArrowRight},
	KeyNumpad7:      {'7', KeyHome},
	KeyNumpad8:      {'8', KeyArrowUp},
	KeyNumpad9:      {'9', KeyPageUp},
	KeyNumpadPeriod: {'.', KeyDelete},
}

// mapUS104 applies the US 104-key layout to a pressed key.
func mapUS104(code KeyCode, mods *Modifiers, handleCtrl HandleControl) DecodedKey {
	if code >= keyCodeCount {
		return DecodedKey{Kind: RawKey, Key: code}
	}

	if letter := us104Letters[code]; letter != 0 {
		switch {
		case handleCtrl == MapLettersToUnicode && mods.isCtrl():
			return DecodedKey{Kind: Unicode, Rune: letter - 'a' + 1}
		case mods.isCaps():
			return DecodedKey{Kind: Unicode, Rune: letter - 'a' + 'A'}
		default:
			return DecodedKey{Kind: Unicode, Rune: letter}
		}
	}

	if numpad := us104Numpad[code]; numpad.digit != 0 {
		if mods.NumLock {
			return DecodedKey{Kind: Unicode, Rune: numpad.digit}
		}
		code = numpad.alt
	}

	if printable := us104Printable[code]; printable.base != 0 {
		if mods.isShifted() {
			return DecodedKey{Kind: Unicode, Rune: printable.shifted}
		}
		return DecodedKey{Kind: Unicode, Rune: printable.base}
	}

	return DecodedKey{Kind: RawKey, Key: code}
}
