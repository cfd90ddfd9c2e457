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
	KEY_ESCAPE KeyCode = 0x1B
	KEY_SPACE  KeyCode = 0x20
	KEY_A      KeyCode = 0x41
	KEY_D      KeyCode = 0x44
	KEY_E      KeyCode = 0x45
	KEY_Q      KeyCode = 0x51
	KEY_R      KeyCode = 0x52
	KEY_S      KeyCode = 0x53
	KEY_W      KeyCode = 0x57
	KEY_LSHIFT KeyCode = 0xA0
	KEYS_MAX_KEYS
)

type MouseState struct {
	X       float64
	Y       float64
	Buttons [BUTTON_MAX_BUTTONS]bool
}

type KeyboardState struct {
	Keys [256]bool
}

// InputState holds current and previous keyboard and mouse states. The platform
// layer feeds it through the Process* methods; consumers poll it once per frame.
type InputState struct {
	keyboardCurrent  KeyboardState
	keyboardPrevious KeyboardState
	mouseCurrent     MouseState
	mousePrevious    MouseState
	events           *EventBus
}

func NewInputState(events *EventBus) *InputState {
	return &InputState{events: events}
}

// Update copies current states to previous states. Call once at the end of a frame.
func (s *InputState) Update() {
	s.keyboardPrevious = s.keyboardCurrent
	s.mousePrevious = s.mouseCurrent
}

func (s *InputState) IsKeyDown(key KeyCode) bool {
	return s.keyboardCurrent.Keys[key]
}

func (s *InputState) WasKeyDown(key KeyCode) bool {
	return s.keyboardPrevious.Keys[key]
}

func (s *InputState) IsButtonDown(button Button) bool {
	return s.mouseCurrent.Buttons[button]
}

func (s *InputState) MousePosition() (float64, float64) {
	return s.mouseCurrent.X, s.mouseCurrent.Y
}

// MouseDelta is the pointer motion since the last Update.
func (s *InputState) MouseDelta() (float64, float64) {
	return s.mouseCurrent.X - s.mousePrevious.X, s.mouseCurrent.Y - s.mousePrevious.Y
}

func (s *InputState) ProcessKey(key KeyCode, pressed bool) {
	if int(key) >= len(s.keyboardCurrent.Keys) || s.keyboardCurrent.Keys[key] == pressed {
		return
	}
	s.keyboardCurrent.Keys[key] = pressed

	code := EVENT_CODE_KEY_RELEASED
	if pressed {
		code = EVENT_CODE_KEY_PRESSED
	}
	s.fire(EventContext{Type: code, Data: &KeyEvent{KeyCode: key}})
}

func (s *InputState) ProcessButton(button Button, pressed bool) {
	if button >= BUTTON_MAX_BUTTONS || s.mouseCurrent.Buttons[button] == pressed {
		return
	}
	s.mouseCurrent.Buttons[button] = pressed

	code := EVENT_CODE_BUTTON_RELEASED
	if pressed {
		code = EVENT_CODE_BUTTON_PRESSED
	}
	s.fire(EventContext{Type: code, Data: &MouseEvent{Button: button}})
}

func (s *InputState) ProcessMouseMove(x, y float64) {
	if s.mouseCurrent.X == x && s.mouseCurrent.Y == y {
		return
	}
	s.mouseCurrent.X = x
	s.mouseCurrent.Y = y
	s.fire(EventContext{Type: EVENT_CODE_MOUSE_MOVED, Data: &MouseEvent{PosX: x, PosY: y}})
}

func (s *InputState) ProcessMouseWheel(delta float64) {
	s.fire(EventContext{Type: EVENT_CODE_MOUSE_WHEEL, Data: &MouseEvent{Scroll: delta}})
}

func (s *InputState) fire(ctx EventContext) {
	if s.events != nil {
		s.events.Fire(ctx)
	}
}
