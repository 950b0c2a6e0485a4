package core

import "sync"

type EventContext struct {
	// 128 bytes
	Data struct {
		I64 [2]int64
		U64 [2]uint64
		F64 [2]float64

		I32 [4]int32
		U32 [4]uint32
		F32 [4]float32

		I16 [8]int16
		U16 [8]uint16

		I8 [16]int8
		U8 [16]uint8

		C [16]string
	}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// The config file was reloaded; the new values apply at the start of
	// the next frame.
	/* Context usage:
	 * u64 generation = data.data.u64[0];
	 */
	EVENT_CODE_CONFIG_RELOADED SystemEventCode = 0x02

	// Resized/resolution changed.
	/* Context usage:
	 * u32 width = data.data.u32[0];
	 * u32 height = data.data.u32[1];
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x03

	// A frame finished.
	/* Context usage:
	 * u64 frame = data.data.u64[0];
	 * f64 frame_ms = data.data.f64[0];
	 * i32 dirty = data.data.i32[0];
	 * i32 pairs_created = data.data.i32[1];
	 * i32 pairs_destroyed = data.data.i32[2];
	 * i32 visibility_culls = data.data.i32[3];
	 */
	EVENT_CODE_FRAME_END SystemEventCode = 0x04

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// This should be more than enough codes...
const MAX_MESSAGE_CODES = 16384

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, listenerInst interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

type eventCodeEntry struct {
	events []*registeredEvent
}

/**
 * @brief Event system state. Listeners may register and fire from any
 * goroutine; callbacks run on the firing goroutine.
 */
type eventSystemState struct {
	mutex sync.RWMutex
	// Lookup table for event codes.
	registered [MAX_MESSAGE_CODES]eventCodeEntry
}

var eventMutex sync.Mutex
var eventState *eventSystemState = nil

func EventInitialize() bool {
	eventMutex.Lock()
	defer eventMutex.Unlock()
	if eventState != nil {
		return false
	}
	eventState = &eventSystemState{}
	return true
}

func EventShutdown() error {
	eventMutex.Lock()
	defer eventMutex.Unlock()
	eventState = nil
	return nil
}

func getEventState() *eventSystemState {
	eventMutex.Lock()
	defer eventMutex.Unlock()
	return eventState
}

/**
 * Register to listen for when events are sent with the provided code. Events with duplicate
 * listener/callback combos will not be registered again and will cause this to return FALSE.
 * @param code The event code to listen for.
 * @param listener A listener instance. Can be nil.
 * @param onEvent The callback function to be invoked when the event code is fired.
 * @returns TRUE if the event is successfully registered; otherwise false.
 */
func EventRegister(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	state := getEventState()
	if state == nil || code < 0 || code >= MAX_MESSAGE_CODES {
		return false
	}
	state.mutex.Lock()
	defer state.mutex.Unlock()

	for _, e := range state.registered[code].events {
		if e.listener == listener {
			LogWarn("listener already registered for event code %d", code)
			return false
		}
	}
	// If at this point, no duplicate was found. Proceed with registration.
	state.registered[code].events = append(state.registered[code].events, &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

/**
 * Unregister from listening for when events are sent with the provided code. If no matching
 * registration is found, this function returns FALSE.
 * @param code The event code to stop listening for.
 * @param listener The listener instance used at registration.
 * @returns TRUE if the event is successfully unregistered; otherwise false.
 */
func EventUnregister(code SystemEventCode, listener interface{}) bool {
	state := getEventState()
	if state == nil || code < 0 || code >= MAX_MESSAGE_CODES {
		return false
	}
	state.mutex.Lock()
	defer state.mutex.Unlock()

	events := state.registered[code].events
	for i, e := range events {
		if e.listener == listener {
			state.registered[code].events = append(events[:i], events[i+1:]...)
			return true
		}
	}
	// Not found.
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * TRUE, the event is considered handled and is not passed on to any more listeners.
 * @param code The event code to fire.
 * @param sender The sender. Can be nil.
 * @param context The event data.
 * @returns TRUE if handled, otherwise FALSE.
 */
func EventFire(code SystemEventCode, sender interface{}, context EventContext) bool {
	state := getEventState()
	if state == nil || code < 0 || code >= MAX_MESSAGE_CODES {
		return false
	}
	state.mutex.RLock()
	events := append([]*registeredEvent(nil), state.registered[code].events...)
	state.mutex.RUnlock()

	for _, e := range events {
		if e.callback(code, sender, e.listener, context) {
			// Message has been handled, do not send to other listeners.
			return true
		}
	}
	return false
}
