// Package events provides an in-memory event bus for turn lifecycle
// notifications.
package events

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var ErrBusClosed = errors.New("event bus is closed")

// EventType represents the type of event.
type EventType string

const (
	// Turn lifecycle
	EventTurnStarted   EventType = "turn.started"
	EventTurnCompleted EventType = "turn.completed"
	EventTurnDegraded  EventType = "turn.degraded"

	// Tasks and rules
	EventTaskCompleted   EventType = "task.completed"
	EventAdjustmentFired EventType = "adjustment.fired"

	// Tools
	EventToolCall  EventType = "tool.call"
	EventToolError EventType = "tool.error"

	// Persistence
	EventCheckpointSaved EventType = "checkpoint.saved"
)

// Event is a single bus notification.
type Event struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id,omitempty"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

var eventIDCounter uint64

// NewEvent creates an event with the current timestamp.
func NewEvent(eventType EventType, sessionID string, payload map[string]any) Event {
	seq := atomic.AddUint64(&eventIDCounter, 1)
	return Event{
		ID:        fmt.Sprintf("%d-%d", time.Now().UnixNano(), seq),
		SessionID: sessionID,
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// Subscriber is a function that receives events.
type Subscriber func(Event)

type subscription struct {
	eventTypes []EventType
	handler    Subscriber
}

// Bus is a buffered in-memory event bus. Publishing never blocks a turn:
// when the buffer is full the event is dropped.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]*subscription
	nextID      int
	eventChan   chan Event
	closed      bool
	done        chan struct{}
	drained     sync.WaitGroup
}

// NewBus creates a bus with the given buffer size and starts its dispatch
// loop.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	b := &Bus{
		subscribers: make(map[int]*subscription),
		eventChan:   make(chan Event, bufferSize),
		done:        make(chan struct{}),
	}
	b.drained.Add(1)
	go b.dispatch()
	return b
}

func (b *Bus) dispatch() {
	defer b.drained.Done()
	for {
		select {
		case event := <-b.eventChan:
			b.notifySubscribers(event)
		case <-b.done:
			// Drain what is already buffered before stopping.
			for {
				select {
				case event := <-b.eventChan:
					b.notifySubscribers(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) notifySubscribers(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if matches(sub, event) {
			sub.handler(event)
		}
	}
}

func matches(sub *subscription, event Event) bool {
	if len(sub.eventTypes) == 0 {
		return true
	}
	for _, t := range sub.eventTypes {
		if t == event.Type {
			return true
		}
	}
	return false
}

// Publish sends an event to the bus. Non-blocking: drops when full or
// closed.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return
	}

	select {
	case b.eventChan <- event:
	default:
	}
}

// Subscribe registers a handler for the given event types (all types when
// empty). Returns an unsubscribe function.
func (b *Bus) Subscribe(handler Subscriber, eventTypes ...EventType) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subscribers[id] = &subscription{eventTypes: eventTypes, handler: handler}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers, id)
	}
}

// Close stops the dispatch loop after draining buffered events. Further
// publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.done)
	b.drained.Wait()
}
