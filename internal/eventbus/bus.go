// Package eventbus implements EventBus (C10): it fans out domain events
// (trade executed/failed, position opened/closed, circuit breaker state
// changes, whale sharing status changes) to any number of subscribed
// handlers, in-process.
//
// Uses the same register/unregister/broadcast-goroutine shape as
// internal/websocket.Hub, generalized from *Client connections to typed
// Handler functions; the optional UI surface attaches via a Hub-backed
// handler (internal/eventbus/ws.go).
package eventbus

import "sync"

// EventType discriminates the Payload carried by an Event.
type EventType string

const (
	EventTradeExecuted  EventType = "TRADE_EXECUTED"
	EventTradeFailed    EventType = "TRADE_FAILED"
	EventPositionOpened EventType = "POSITION_OPENED"
	EventPositionClosed EventType = "POSITION_CLOSED"
	EventBreakerState   EventType = "BREAKER_STATE_CHANGED"
	EventWhaleStatus    EventType = "WHALE_STATUS_CHANGED"
)

// Event is one published domain occurrence.
type Event struct {
	Type    EventType
	Payload interface{}
}

// Handler receives every published Event; handlers must not block.
type Handler func(Event)

// Bus fans out published events to registered handlers over a
// register/unregister/broadcast channel loop.
type Bus struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int

	publish chan Event
	done    chan struct{}
}

// New builds a Bus with a buffered publish channel; call Run in its own
// goroutine before publishing.
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Bus{
		handlers: make(map[int]Handler),
		publish:  make(chan Event, bufferSize),
		done:     make(chan struct{}),
	}
}

// Subscribe registers handler and returns an id usable with Unsubscribe.
func (b *Bus) Subscribe(handler Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	return id
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, id)
}

// Publish enqueues an event for delivery; non-blocking if the buffer has
// room, otherwise blocks the caller until Run drains it.
func (b *Bus) Publish(evt Event) {
	select {
	case b.publish <- evt:
	case <-b.done:
	}
}

// Run drains the publish channel and fans each event out to every
// registered handler, until ctx-equivalent Stop is called.
func (b *Bus) Run() {
	for {
		select {
		case evt := <-b.publish:
			b.mu.RLock()
			handlers := make([]Handler, 0, len(b.handlers))
			for _, h := range b.handlers {
				handlers = append(handlers, h)
			}
			b.mu.RUnlock()

			for _, h := range handlers {
				h(evt)
			}
		case <-b.done:
			return
		}
	}
}

// Stop shuts down Run's loop. Safe to call once.
func (b *Bus) Stop() {
	close(b.done)
}
