package core

import "sync"

// EventContext carries the payload of a fired event.
type EventContext struct {
	Data struct {
		I32 [4]int32
		U32 [4]uint32
		F32 [4]float32
		U16 [8]uint16
	}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Keyboard key pressed.
	/* Context usage:
	 * u16 key_code = data.U16[0];
	 */
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02

	// Keyboard key released.
	/* Context usage:
	 * u16 key_code = data.U16[0];
	 */
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03

	// Mouse moved.
	/* Context usage:
	 * f32 x = data.F32[0];
	 * f32 y = data.F32[1];
	 */
	EVENT_CODE_MOUSE_MOVED SystemEventCode = 0x06

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * u32 width = data.U32[0];
	 * u32 height = data.U32[1];
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// A frame finished submission and the frame index advanced.
	/* Context usage:
	 * u32 frame = data.U32[0];
	 */
	EVENT_CODE_FRAME_FINISHED SystemEventCode = 0x09

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, listener interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus dispatches events to registered listeners. Each engine owns one.
type EventBus struct {
	mu         sync.RWMutex
	registered map[SystemEventCode][]*registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[SystemEventCode][]*registeredEvent),
	}
}

/**
 * Register to listen for when events are sent with the provided code. Events with duplicate
 * listeners will not be registered again and will cause this to return false.
 * @param code The event code to listen for.
 * @param listener A pointer to a listener instance. Can be nil.
 * @param onEvent The callback to be invoked when the event code is fired.
 * @returns true if the event is successfully registered; otherwise false.
 */
func (b *EventBus) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.registered[code] {
		if e.listener == listener {
			return false
		}
	}
	b.registered[code] = append(b.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

/**
 * Unregister from listening for when events are sent with the provided code.
 * @returns true if a registration was removed; otherwise false.
 */
func (b *EventBus) Unregister(code SystemEventCode, listener interface{}) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := b.registered[code]
	for i, e := range events {
		if e.listener == listener {
			b.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 * @returns true if handled, otherwise false.
 */
func (b *EventBus) Fire(code SystemEventCode, sender interface{}, context EventContext) bool {
	b.mu.RLock()
	events := append([]*registeredEvent(nil), b.registered[code]...)
	b.mu.RUnlock()

	for _, e := range events {
		if e.callback(code, sender, e.listener, context) {
			return true
		}
	}
	return false
}
