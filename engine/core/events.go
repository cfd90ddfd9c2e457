package core

import "sync"

// System event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01
	// Data: *KeyEvent
	EVENT_CODE_KEY_PRESSED  SystemEventCode = 0x02
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03
	// Data: *MouseEvent
	EVENT_CODE_BUTTON_PRESSED  SystemEventCode = 0x04
	EVENT_CODE_BUTTON_RELEASED SystemEventCode = 0x05
	EVENT_CODE_MOUSE_MOVED     SystemEventCode = 0x06
	EVENT_CODE_MOUSE_WHEEL     SystemEventCode = 0x07
	// Data: *ResizeEvent
	EVENT_CODE_RESIZED SystemEventCode = 0x08
	// Data: *ShaderChangedEvent
	EVENT_CODE_SHADER_CHANGED SystemEventCode = 0x09

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

type KeyEvent struct {
	KeyCode KeyCode
}

type MouseEvent struct {
	Button Button
	PosX   float64
	PosY   float64
	Scroll float64
}

type ResizeEvent struct {
	Width  uint32
	Height uint32
}

type ShaderChangedEvent struct {
	Path string
}

// Should return true if handled.
type FnOnEvent func(ctx EventContext, listener interface{}) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus dispatches events synchronously to the registered listeners, in
// registration order, until one reports the event as handled.
type EventBus struct {
	mu         sync.RWMutex
	registered map[SystemEventCode][]registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{registered: make(map[SystemEventCode][]registeredEvent)}
}

/**
 * Register to listen for when events are sent with the provided code. A listener
 * registered twice for the same code is rejected.
 * @returns true if the event is successfully registered; otherwise false.
 */
func (b *EventBus) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.registered[code] {
		if listener != nil && e.listener == listener {
			LogWarn("listener already registered for event code %d", code)
			return false
		}
	}
	b.registered[code] = append(b.registered[code], registeredEvent{listener: listener, callback: onEvent})
	return true
}

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
 */
func (b *EventBus) Fire(ctx EventContext) bool {
	b.mu.RLock()
	events := append([]registeredEvent(nil), b.registered[ctx.Type]...)
	b.mu.RUnlock()
	for _, e := range events {
		if e.callback(ctx, e.listener) {
			return true
		}
	}
	return false
}

func (b *EventBus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.registered)
}
