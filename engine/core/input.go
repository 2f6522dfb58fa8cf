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
	KEY_TAB    KeyCode = 0x09
	KEY_SHIFT  KeyCode = 0x10
	KEY_ESCAPE KeyCode = 0x1B
	KEY_SPACE  KeyCode = 0x20
	KEY_LEFT   KeyCode = 0x25
	KEY_UP     KeyCode = 0x26
	KEY_RIGHT  KeyCode = 0x27
	KEY_DOWN   KeyCode = 0x28
	KEY_A      KeyCode = 0x41
	KEY_D      KeyCode = 0x44
	KEY_E      KeyCode = 0x45
	KEY_Q      KeyCode = 0x51
	KEY_S      KeyCode = 0x53
	KEY_W      KeyCode = 0x57
	KEYS_MAX_KEYS
)

// Mouse state structure
type MouseState struct {
	X       float32
	Y       float32
	Buttons [BUTTON_MAX_BUTTONS]bool
}

// Keyboard state structure
type KeyboardState struct {
	Keys [256]bool
}

// Input holds current and previous states for keyboard and mouse. The
// platform layer feeds it and game code reads it.
type Input struct {
	events *EventBus

	keyboardCurrent  KeyboardState
	keyboardPrevious KeyboardState
	mouseCurrent     MouseState
	mousePrevious    MouseState
}

// NewInput returns input state that fires key and mouse events on bus. bus may be nil.
func NewInput(bus *EventBus) *Input {
	return &Input{events: bus}
}

// Update copies current states to previous states. Call once per frame after game update.
func (in *Input) Update() {
	in.keyboardPrevious = in.keyboardCurrent
	in.mousePrevious = in.mouseCurrent
}

func (in *Input) IsKeyDown(key KeyCode) bool {
	return in.keyboardCurrent.Keys[key]
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

	if in.events == nil {
		return
	}
	code := EVENT_CODE_KEY_RELEASED
	if pressed {
		code = EVENT_CODE_KEY_PRESSED
	}
	ctx := EventContext{}
	ctx.Data.U16[0] = uint16(key)
	in.events.Fire(code, in, ctx)
}

func (in *Input) IsButtonDown(button Button) bool {
	return in.mouseCurrent.Buttons[button]
}

func (in *Input) ProcessButton(button Button, pressed bool) {
	in.mouseCurrent.Buttons[button] = pressed
}

func (in *Input) ProcessMouseMove(x, y float32) {
	if in.mouseCurrent.X == x && in.mouseCurrent.Y == y {
		return
	}
	in.mouseCurrent.X = x
	in.mouseCurrent.Y = y

	if in.events != nil {
		ctx := EventContext{}
		ctx.Data.F32[0] = x
		ctx.Data.F32[1] = y
		in.events.Fire(EVENT_CODE_MOUSE_MOVED, in, ctx)
	}
}

// MouseDelta is the cursor movement since the last Update.
func (in *Input) MouseDelta() (float32, float32) {
	return in.mouseCurrent.X - in.mousePrevious.X, in.mouseCurrent.Y - in.mousePrevious.Y
}
