package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// A native-backed object was registered for the first time.
	/* Context usage:
	 * sender = the resource wrapper
	 * data   = ResourceEventData
	 */
	EVENT_CODE_RESOURCE_CREATED SystemEventCode = 0x01

	// A native-backed object was disposed and removed from its registry.
	/* Context usage:
	 * data = ResourceEventData (Name and Tag as they were at disposal)
	 */
	EVENT_CODE_RESOURCE_DESTROYED SystemEventCode = 0x02

	// The device is about to release default pool resources.
	/* Context usage:
	 * sender = the device
	 * data   = DeviceEventData
	 */
	EVENT_CODE_DEVICE_RESETTING SystemEventCode = 0x03

	// The device finished a reset and every resource was recreated.
	EVENT_CODE_DEVICE_RESET SystemEventCode = 0x04

	// Presentation detected that the native device was lost.
	EVENT_CODE_DEVICE_LOST SystemEventCode = 0x05

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// ResourceEventData is the payload of the resource notifications.
type ResourceEventData struct {
	Handle uint64
	Name   string
	Tag    interface{}
}

// DeviceEventData is the payload of the device notifications.
type DeviceEventData struct {
	// FullRecreation is true when the native device object was replaced.
	FullRecreation bool
}

// EventContext is what listeners receive.
type EventContext struct {
	Sender interface{}
	Data   interface{}
}

// Should return true if handled. A handled event is not passed to later listeners.
type FnOnEvent func(code SystemEventCode, listener interface{}, ctx EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus dispatches notifications to listeners registered per code.
// Each device owns one; there is no process-wide instance.
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
 * Register to listen for when events are sent with the provided code. A listener
 * can only be registered once per code; a duplicate returns false.
 */
func (eb *EventBus) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if onEvent == nil {
		return false
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, e := range eb.registered[code] {
		if e.listener == listener {
			LogWarn("event listener already registered for code %d", code)
			return false
		}
	}
	eb.registered[code] = append(eb.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

// Unregister removes the listener for code. It returns false when it was not registered.
func (eb *EventBus) Unregister(code SystemEventCode, listener interface{}) bool {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	events := eb.registered[code]
	for i, e := range events {
		if e.listener == listener {
			eb.registered[code] = append(events[:i:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// Fire sends an event to every listener of code, in registration order,
// stopping at the first one that reports it handled.
func (eb *EventBus) Fire(code SystemEventCode, sender interface{}, data interface{}) bool {
	if eb == nil {
		return false
	}
	eb.mu.RLock()
	events := make([]*registeredEvent, len(eb.registered[code]))
	copy(events, eb.registered[code])
	eb.mu.RUnlock()

	ctx := EventContext{Sender: sender, Data: data}
	for _, e := range events {
		if e.callback(code, e.listener, ctx) {
			return true
		}
	}
	return false
}
