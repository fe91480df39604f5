package input

import (
	"math"

	browserbridge "github.com/embedkit/browser-bridge"
)

// Event is one host-side input event. Coordinates, where present, are
// fractions of the host widget in [0,1].
type Event interface {
	isEvent()
}

// PointerEvent is a pointer move, press, or release.
type PointerEvent struct {
	X, Y      float64
	Button    browserbridge.MouseButton
	Action    browserbridge.MouseAction
	Modifiers browserbridge.Modifiers
}

func (PointerEvent) isEvent() {}

// KeyEvent is a key press or release.
type KeyEvent struct {
	Rune      rune
	Code      int
	Down      bool
	Modifiers browserbridge.Modifiers
}

func (KeyEvent) isEvent() {}

// ScrollEvent is a wheel or trackpad scroll at a pointer position. Deltas
// are in pixels, positive down and right.
type ScrollEvent struct {
	X, Y           float64
	DeltaX, DeltaY float64
	Modifiers      browserbridge.Modifiers
}

func (ScrollEvent) isEvent() {}

// Target is where translated messages go. *browser.Instance satisfies it.
type Target interface {
	// Viewport returns the current render size, used to scale coordinates.
	Viewport() browserbridge.Size

	// PostInput queues one message for injection, reporting whether it was
	// accepted.
	PostInput(browserbridge.InputMessage) bool
}

// Translator maps host events onto one target's viewport.
type Translator struct {
	target Target

	// OnDrop, when set, observes events the target refused. Runs on the
	// dispatching goroutine.
	OnDrop func(Event)
}

// New creates a translator for target.
func New(target Target) *Translator {
	return &Translator{target: target}
}

// Dispatch translates and posts one event, reporting whether the target
// accepted it. Unknown event types are dropped.
func (t *Translator) Dispatch(ev Event) bool {
	var msg browserbridge.InputMessage
	switch e := ev.(type) {
	case PointerEvent:
		msg = browserbridge.MouseMessage{
			Pos:       t.toViewport(e.X, e.Y),
			Button:    e.Button,
			Action:    e.Action,
			Modifiers: e.Modifiers,
		}
	case KeyEvent:
		msg = browserbridge.KeyMessage{
			Rune:      e.Rune,
			Code:      e.Code,
			Down:      e.Down,
			Modifiers: e.Modifiers,
		}
	case ScrollEvent:
		msg = browserbridge.WheelMessage{
			Pos:       t.toViewport(e.X, e.Y),
			DeltaX:    e.DeltaX,
			DeltaY:    e.DeltaY,
			Modifiers: e.Modifiers,
		}
	default:
		t.drop(ev)
		return false
	}

	if !t.target.PostInput(msg) {
		t.drop(ev)
		return false
	}
	return true
}

func (t *Translator) drop(ev Event) {
	if t.OnDrop != nil {
		t.OnDrop(ev)
	}
}

// toViewport scales a fractional widget position to viewport pixels,
// clamping out-of-range positions (drag past the widget edge) to the
// nearest edge pixel.
func (t *Translator) toViewport(fx, fy float64) browserbridge.Point {
	size := t.target.Viewport()
	return browserbridge.Point{
		X: scale(fx, size.Width),
		Y: scale(fy, size.Height),
	}
}

func scale(f float64, extent int) int {
	if extent <= 0 {
		return 0
	}
	p := int(math.Round(f * float64(extent-1)))
	if p < 0 {
		return 0
	}
	if p > extent-1 {
		return extent - 1
	}
	return p
}
