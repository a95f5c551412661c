package kbd

// KeyCode identifies a physical key independently of the keyboard layout.
type KeyCode uint8

const (
	// function row
	KeyEscape KeyCode = iota
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
	KeyPrintScreen
	KeyScrollLock
	KeyPauseBreak

	// number row
	KeyBackTick
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	Key0
	KeyMinus
	KeyEquals
	KeyBackspace

	// top letter row
	KeyTab
	KeyQ
	KeyW
	KeyE
	KeyR
	KeyT
	KeyY
	KeyU
	KeyI
	KeyO
	KeyP
	KeyBracketSquareLeft
	KeyBracketSquareRight
	KeyBackSlash

	// home row
	KeyCapsLock
	KeyA
	KeyS
	KeyD
	KeyF
	KeyG
	KeyH
	KeyJ
	KeyK
	KeyL
	KeySemiColon
	KeyQuote
	KeyEnter

	// bottom letter row
	KeyShiftLeft
	KeyZ
	KeyX
	KeyC
	KeyV
	KeyB
	KeyN
	KeyM
	KeyComma
	KeyFullstop
	KeySlash
	KeyShiftRight

	// space bar row
	KeyControlLeft
	KeyWindowsLeft
	KeyAltLeft
	KeySpacebar
	KeyAltRight
	KeyWindowsRight
	KeyApps
	KeyControlRight

	// navigation block
	KeyInsert
	KeyHome
	KeyPageUp
	KeyDelete
	KeyEnd
	KeyPageDown
	KeyArrowUp
	KeyArrowLeft
	KeyArrowDown
	KeyArrowRight

	// numeric keypad
	KeyNumpadLock
	KeyNumpadSlash
	KeyNumpadStar
	KeyNumpadMinus
	KeyNumpad7
	KeyNumpad8
	KeyNumpad9
	KeyNumpadPlus
	KeyNumpad4
	KeyNumpad5
	KeyNumpad6
	KeyNumpad1
	KeyNumpad2
	KeyNumpad3
	KeyNumpad0
	KeyNumpadPeriod
	KeyNumpadEnter

	// keys missing from the US layout
	KeyOem102

	keyCodeCount
)

var keyCodeNames = [keyCodeCount]string{
	KeyEscape:             "Escape",
	KeyF1:                 "F1",
	KeyF2:                 "F2",
	KeyF3:                 "F3",
	KeyF4:                 "F4",
	KeyF5:                 "F5",
	KeyF6:                 "F6",
	KeyF7:                 "F7",
	KeyF8:                 "F8",
	KeyF9:                 "F9",
	KeyF10:                "F10",
	KeyF11:                "F11",
	KeyF12:                "F12",
	KeyPrintScreen:        "PrintScreen",
	KeyScrollLock:         "ScrollLock",
	KeyPauseBreak:         "PauseBreak",
	KeyBackTick:           "BackTick",
	Key1:                  "Key1",
	Key2:                  "Key2",
	Key3:                  "Key3",
	Key4:                  "Key4",
	Key5:                  "Key5",
	Key6:                  "Key6",
	Key7:                  "Key7",
	Key8:                  "Key8",
	Key9:                  "Key9",
	Key0:                  "Key0",
	KeyMinus:              "Minus",
	KeyEquals:             "Equals",
	KeyBackspace:          "Backspace",
	KeyTab:                "Tab",
	KeyQ:                  "Q",
	KeyW:                  "W",
	KeyE:                  "E",
	KeyR:                  "R",
	KeyT:                  "T",
	KeyY:                  "Y",
	KeyU:                  "U",
	KeyI:                  "I",
	KeyO:                  "O",
	KeyP:                  "P",
	KeyBracketSquareLeft:  "BracketSquareLeft",
	KeyBracketSquareRight: "BracketSquareRight",
	KeyBackSlash:          "BackSlash",
	KeyCapsLock:           "CapsLock",
	KeyA:                  "A",
	KeyS:                  "S",
	KeyD:                  "D",
	KeyF:                  "F",
	KeyG:                  "G",
	KeyH:                  "H",
	KeyJ:                  "J",
	KeyK:                  "K",
	KeyL:                  "L",
	KeySemiColon:          "SemiColon",
	KeyQuote:              "Quote",
	KeyEnter:              "Enter",
	KeyShiftLeft:          "ShiftLeft",
	KeyZ:                  "Z",
	KeyX:                  "X",
	KeyC:                  "C",
	KeyV:                  "V",
	KeyB:                  "B",
	KeyN:                  "N",
	KeyM:                  "M",
	KeyComma:              "Comma",
	KeyFullstop:           "Fullstop",
	KeySlash:              "Slash",
	KeyShiftRight:         "ShiftRight",
	KeyControlLeft:        "ControlLeft",
	KeyWindowsLeft:        "WindowsLeft",
	KeyAltLeft:            "AltLeft",
	KeySpacebar:           "Spacebar",
	KeyAltRight:           "AltRight",
	KeyWindowsRight:       "WindowsRight",
	KeyApps:               "Apps",
	KeyControlRight:       "ControlRight",
	KeyInsert:             "Insert",
	KeyHome:               "Home",
	KeyPageUp:             "PageUp",
	KeyDelete:             "Delete",
	KeyEnd:                "End",
	KeyPageDown:           "PageDown",
	KeyArrowUp:            "ArrowUp",
	KeyArrowLeft:          "ArrowLeft",
	KeyArrowDown:          "ArrowDown",
	KeyArrowRight:         "ArrowRight",
	KeyNumpadLock:         "NumpadLock",
	KeyNumpadSlash:        "NumpadSlash",
	KeyNumpadStar:         "NumpadStar",
	KeyNumpadMinus:        "NumpadMinus",
	KeyNumpad7:            "Numpad7",
	KeyNumpad8:            "Numpad8",
	KeyNumpad9:            "Numpad9",
	KeyNumpadPlus:         "NumpadPlus",
	KeyNumpad4:            "Numpad4",
	KeyNumpad5:            "Numpad5",
	KeyNumpad6:            "Numpad6",
	KeyNumpad1:            "Numpad1",
	KeyNumpad2:            "Numpad2",
	KeyNumpad3:            "Numpad3",
	KeyNumpad0:            "Numpad0",
	KeyNumpadPeriod:       "NumpadPeriod",
	KeyNumpadEnter:        "NumpadEnter",
	KeyOem102:             "Oem102",
}

// String returns the name of the key.
func (k KeyCode) String() string {
	if k >= keyCodeCount {
		return "Unknown"
	}
	return keyCodeNames[k]
}

// KeyState describes whether a key was pressed or released.
type KeyState uint8

const (
	// Up is reported when a key is released.
	Up KeyState = iota

	// Down is reported when a key is pressed or repeats.
	Down
)

// KeyEvent is a decoded key press or release.
type KeyEvent struct {
	Code  KeyCode
	State KeyState
}
