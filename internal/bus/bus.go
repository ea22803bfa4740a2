// Package bus provides an internal event bus for lifecycle notifications
// between the sync engine and its host application.
package bus

import (
	"sync"
)

// EventType identifies different event types.
type EventType string

// Lifecycle events published by the engine.
const (
	// EventSpeechStarted fires when audio playback begins and the blend
	// scheduler anchors its timeline.
	EventSpeechStarted EventType = "speech.started"
	// EventSpeechEnded fires when playback completes, fails, or is
	// canceled; Data carries "error" when the cause was a failure.
	EventSpeechEnded EventType = "speech.ended"
	// EventFaceNeutral fires when the neutral-return animation finishes and
	// every channel is exactly zero.
	EventFaceNeutral EventType = "face.neutral"
	// EventPoseApplied fires when a provider pose event is applied to the
	// visible channels (coarse mode only; dense streams would be too chatty).
	EventPoseApplied EventType = "face.pose_applied"
)

// Event represents a bus event.
type Event struct {
	Type EventType
	Data map[string]any
}

// Handler is a function that handles events.
type Handler func(Event)

// Bus is a simple pub/sub event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for an event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish sends an event to all subscribed handlers. Handlers run on their
// own goroutines so publishing never blocks the per-frame tick.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type]))
	copy(handlers, b.handlers[event.Type])
	b.mu.RUnlock()

	for _, handler := range handlers {
		go handler(event)
	}
}
