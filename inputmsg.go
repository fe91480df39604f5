package browserbridge

// InputMessage is one input action in the engine's vocabulary, with
// coordinates already mapped to the browsing context's viewport. Messages
// are transient values: the engine consumes them during InjectInput.
type InputMessage interface {
	isInputMessage()
}

// Modifiers is the set of modifier keys held during an input action.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModAlt
	ModMeta
)

// MouseButton identifies a pointer button.
type MouseButton int

const (
	MouseLeft MouseButton = iota
	MouseMiddle
	MouseRight
)

// MouseAction is what the pointer did.
type MouseAction int

const (
	MouseMove MouseAction = iota
	MouseDown
	MouseUp
)

// MouseMessage is a pointer move, press, or release at Pos.
type MouseMessage struct {
	Pos       Point
	Button    MouseButton
	Action    MouseAction
	Modifiers Modifiers
}

func (MouseMessage) isInputMessage() {}

// KeyMessage is a key press or release. Rune carries the character for
// printable keys; Code is the engine's key code for the physical key.
type KeyMessage struct {
	Rune      rune
	Code      int
	Down      bool
	Modifiers Modifiers
}

func (KeyMessage) isInputMessage() {}

// WheelMessage is a scroll at Pos. Deltas are in pixels, positive down/right.
type WheelMessage struct {
	Pos       Point
	DeltaX    float64
	DeltaY    float64
	Modifiers Modifiers
}

func (WheelMessage) isInputMessage() {}
