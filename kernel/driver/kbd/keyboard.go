// Package kbd decodes the byte stream produced by a PS/2 keyboard into key
// events and characters.
package kbd

import "kcore/kernel"

// Keyboard combines a scancode set 1 decoder with the modifier state and
// the US 104-key layout.
type Keyboard struct {
	decoder    ScancodeSet1
	modifiers  Modifiers
	handleCtrl HandleControl
}

// New returns an initialized Keyboard.
func New(handleCtrl HandleControl) *Keyboard {
	var k Keyboard
	k.Init(handleCtrl)
	return &k
}

// Init resets the decoder, enables num lock and releases all other
// modifiers. It allows a Keyboard to be set up without heap allocations.
func (k *Keyboard) Init(handleCtrl HandleControl) {
	*k = Keyboard{
		modifiers:  Modifiers{NumLock: true},
		handleCtrl: handleCtrl,
	}
}

// Modifiers returns the current modifier state.
func (k *Keyboard) Modifiers() Modifiers {
	return k.modifiers
}

// AddByte feeds a byte from the keyboard data port to the scancode decoder.
// It returns true together with the decoded key event once a complete
// scancode has been received.
func (k *Keyboard) AddByte(b uint8) (KeyEvent, bool, *kernel.Error) {
	return k.decoder.AddByte(b)
}

// ProcessKeyEvent updates the modifier state and translates key presses to
// characters using the keyboard layout. It returns false for key releases
// and for modifier keys.
func (k *Keyboard) ProcessKeyEvent(ev KeyEvent) (DecodedKey, bool) {
	down := ev.State == Down

	switch ev.Code {
	case KeyShiftLeft:
		k.modifiers.LShift = down
	case KeyShiftRight:
		k.modifiers.RShift = down
	case KeyControlLeft:
		k.modifiers.LCtrl = down
	case KeyControlRight:
		k.modifiers.RCtrl = down
	case KeyAltLeft, KeyAltRight:
		k.modifiers.Alt = down
	case KeyCapsLock:
		if down {
			k.modifiers.CapsLock = !k.modifiers.CapsLock
		}
	case KeyNumpadLock:
		if down {
			k.modifiers.NumLock = !k.modifiers.NumLock
		}
	default:
		if !down {
			return DecodedKey{}, false
		}
		return mapUS104(ev.Code, &k.modifiers, k.handleCtrl), true
	}

	return DecodedKey{}, false
}
