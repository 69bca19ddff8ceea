package push

import (
	"slices"
	"sync"
	"time"
)

// EventType names a client lifecycle or data event.
type EventType int

const (
	EventConnected EventType = iota + 1
	EventDisconnected
	EventNotification
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventNotification:
		return "notification"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered to every Observer of a Client.
type Event struct {
	Type      EventType
	ClientKey string
	At        time.Time

	// Topic and Notification are set for EventNotification.
	Topic        string
	Notification *Notification

	// Err is the close reason for EventDisconnected (nil on a clean or
	// requested close) and the failure for EventError. Server-reported
	// errors are *ServerError.
	Err error
}

// Observer receives client events. Observers run on the client goroutine.
type Observer func(Event)

// emitter is the per-client observer list.
type emitter struct {
	mu        sync.RWMutex
	next      uint64
	observers map[uint64]Observer
}

func newEmitter() *emitter {
	return &emitter{observers: make(map[uint64]Observer)}
}

// add registers o and returns a function that removes it.
func (e *emitter) add(o Observer) func() {
	e.mu.Lock()
	e.next++
	id := e.next
	e.observers[id] = o
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.observers, id)
			e.mu.Unlock()
		})
	}
}

// emit calls every observer in registration order. A panicking observer
// is logged and skipped.
func (e *emitter) emit(ev Event, logger Logger) {
	e.mu.RLock()
	ids := make([]uint64, 0, len(e.observers))
	for id := range e.observers {
		ids = append(ids, id)
	}
	observers := make([]Observer, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		observers = append(observers, e.observers[id])
	}
	e.mu.RUnlock()

	for _, o := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("push observer panic recovered",
						"event", ev.Type.String(),
						"panic", r,
					)
				}
			}()
			o(ev)
		}()
	}
}
