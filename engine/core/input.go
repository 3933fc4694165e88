package core

type Button uint16

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
	BUTTON_MAX_BUTTONS
)

// Key code definitions
type KeyCode uint16

const (
	KEY_UNKNOWN  KeyCode = 0x00
	KEY_TAB      KeyCode = 0x09
	KEY_ENTER    KeyCode = 0x0D
	KEY_ESCAPE   KeyCode = 0x1B
	KEY_SPACE    KeyCode = 0x20
	KEY_LEFT     KeyCode = 0x25
	KEY_UP       KeyCode = 0x26
	KEY_RIGHT    KeyCode = 0x27
	KEY_DOWN     KeyCode = 0x28
	KEY_A        KeyCode = 0x41
	KEY_D        KeyCode = 0x44
	KEY_E        KeyCode = 0x45
	KEY_Q        KeyCode = 0x51
	KEY_R        KeyCode = 0x52
	KEY_S        KeyCode = 0x53
	KEY_W        KeyCode = 0x57
	KEY_F1       KeyCode = 0x70
	KEY_LSHIFT   KeyCode = 0xA0
	KEY_RSHIFT   KeyCode = 0xA1
	KEY_LCONTROL KeyCode = 0xA2
	KEY_RCONTROL KeyCode = 0xA3
	KEYS_MAX_KEYS
)

// Mouse state structure
type MouseState struct {
	X       float64
	Y       float64
	Buttons [BUTTON_MAX_BUTTONS]bool
}

// Keyboard state structure
type KeyboardState struct {
	Keys [256]bool
}

// Input holds current and previous states for keyboard and mouse. The
// previous state is the snapshot taken by the last call to Update.
type Input struct {
	events           *EventBus
	keyboardCurrent  KeyboardState
	keyboardPrevious KeyboardState
	mouseCurrent     MouseState
	mousePrevious    MouseState
	mouseSeen        bool
}

func NewInput(events *EventBus) *Input {
	return &Input{events: events}
}

// Update copies current states to previous states. Call once at the end of a frame.
func (in *Input) Update() {
	in.keyboardPrevious = in.keyboardCurrent
	in.mousePrevious = in.mouseCurrent
}

func (in *Input) IsKeyDown(key KeyCode) bool {
	return in.keyboardCurrent.Keys[key]
}

func (in *Input) IsKeyUp(key KeyCode) bool {
	return !in.keyboardCurrent.Keys[key]
}

func (in *Input) WasKeyDown(key KeyCode) bool {
	return in.keyboardPrevious.Keys[key]
}

func (in *Input) ProcessKey(key KeyCode, pressed bool) {
	// Only handle this if the state actually changed.
	if in.keyboardCurrent.Keys[key] == pressed {
		return
	}
	in.keyboardCurrent.Keys[key] = pressed

	code := EVENT_CODE_KEY_RELEASED
	if pressed {
		code = EVENT_CODE_KEY_PRESSED
	}
	if in.events != nil {
		in.events.Fire(EventContext{Type: code, Data: &KeyEvent{KeyCode: key}})
	}
}

func (in *Input) IsButtonDown(button Button) bool {
	return in.mouseCurrent.Buttons[button]
}

func (in *Input) ProcessButton(button Button, pressed bool) {
	if in.mouseCurrent.Buttons[button] == pressed {
		return
	}
	in.mouseCurrent.Buttons[button] = pressed

	code := EVENT_CODE_BUTTON_RELEASED
	if pressed {
		code = EVENT_CODE_BUTTON_PRESSED
	}
	if in.events != nil {
		in.events.Fire(EventContext{Type: code, Data: &MouseEvent{Button: button, X: in.mouseCurrent.X, Y: in.mouseCurrent.Y}})
	}
}

func (in *Input) ProcessMouseMove(x, y float64) {
	if !in.mouseSeen {
		// First sample: no delta against the zero position.
		in.mousePrevious.X, in.mousePrevious.Y = x, y
		in.mouseSeen = true
	}
	if in.mouseCurrent.X == x && in.mouseCurrent.Y == y {
		return
	}
	in.mouseCurrent.X = x
	in.mouseCurrent.Y = y
	if in.events != nil {
		in.events.Fire(EventContext{Type: EVENT_CODE_MOUSE_MOVED, Data: &MouseEvent{X: x, Y: y}})
	}
}

func (in *Input) MousePosition() (float64, float64) {
	return in.mouseCurrent.X, in.mouseCurrent.Y
}

// MouseDelta is the cursor movement since the last Update.
func (in *Input) MouseDelta() (float64, float64) {
	return in.mouseCurrent.X - in.mousePrevious.X, in.mouseCurrent.Y - in.mousePrevious.Y
}
