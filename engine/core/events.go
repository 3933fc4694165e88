package core

// System internal event codes. Application should use codes beyond 255.
type EventCode uint16

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT EventCode = 0x01
	// Keyboard key pressed. Data: *KeyEvent
	EVENT_CODE_KEY_PRESSED EventCode = 0x02
	// Keyboard key released. Data: *KeyEvent
	EVENT_CODE_KEY_RELEASED EventCode = 0x03
	// Mouse button pressed. Data: *MouseEvent
	EVENT_CODE_BUTTON_PRESSED EventCode = 0x04
	// Mouse button released. Data: *MouseEvent
	EVENT_CODE_BUTTON_RELEASED EventCode = 0x05
	// Mouse moved. Data: *MouseEvent
	EVENT_CODE_MOUSE_MOVED EventCode = 0x06
	// Resized/resolution changed from the OS. Data: *SystemEvent
	EVENT_CODE_RESIZED EventCode = 0x08
	// Scene file reloaded from disk. Data: the reloaded scene.
	EVENT_CODE_SCENE_RELOADED EventCode = 0x09

	MAX_EVENT_CODE EventCode = 0xFF
)

type EventContext struct {
	Type EventCode
	Data interface{}
}

type KeyEvent struct {
	KeyCode KeyCode
}

type MouseEvent struct {
	Button Button
	X, Y   float64
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

// Should return true if handled.
type FnOnEvent func(context EventContext) bool

// EventBus dispatches events synchronously, on the caller's goroutine, to
// the listeners registered for the event code.
type EventBus struct {
	registered map[EventCode][]FnOnEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[EventCode][]FnOnEvent),
	}
}

// Register a listener for code. Listeners are invoked in registration order.
func (b *EventBus) Register(code EventCode, onEvent FnOnEvent) {
	b.registered[code] = append(b.registered[code], onEvent)
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * TRUE, the event is considered handled and is not passed on to any more listeners.
 * @returns TRUE if handled, otherwise FALSE.
 */
func (b *EventBus) Fire(context EventContext) bool {
	for _, fn := range b.registered[context.Type] {
		if fn(context) {
			return true
		}
	}
	return false
}

func (b *EventBus) Shutdown() {
	clear(b.registered)
}
