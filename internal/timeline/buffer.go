// Package timeline buffers timed pose events for the current utterance and
// hands them out in timestamp order as playback time advances.
package timeline

import (
	"sync"

	"github.com/normanking/facesync/internal/pose"
)

// Buffer is an append-only ordered sequence of timed pose events with a
// separate read cursor. Appends arrive from a network callback while the
// per-frame scheduler reads concurrently; all access is mutex-guarded.
//
// Network batches may arrive out of order relative to each other, so events
// are inserted in timestamp order on append (a tail scan — arrival is
// near-ordered in practice). Events that sort behind the read cursor are too
// late to apply in order and are dropped.
type Buffer struct {
	mu      sync.Mutex
	events  []pose.Event
	cursor  int
	dropped int
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append inserts an event keeping the sequence sorted by TimestampMs.
// Equal timestamps keep arrival order. Returns false if the event sorted
// behind the read cursor and was dropped.
func (b *Buffer) Append(ev pose.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := len(b.events)
	for i > 0 && b.events[i-1].TimestampMs > ev.TimestampMs {
		i--
	}

	if i < b.cursor {
		b.dropped++
		return false
	}

	b.events = append(b.events, pose.Event{})
	copy(b.events[i+1:], b.events[i:])
	b.events[i] = ev
	return true
}

// NextDue returns the next unconsumed event whose timestamp has passed,
// advancing the read cursor. Call repeatedly each tick until it returns
// false.
func (b *Buffer) NextDue(elapsedMs int) (pose.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cursor >= len(b.events) {
		return pose.Event{}, false
	}
	ev := b.events[b.cursor]
	if ev.TimestampMs > elapsedMs {
		return pose.Event{}, false
	}
	b.cursor++
	return ev, true
}

// Reset clears all events and rewinds the read cursor. Called when a new
// utterance preempts the current one.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = b.events[:0]
	b.cursor = 0
	b.dropped = 0
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Pending returns the number of events not yet consumed.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events) - b.cursor
}

// Dropped returns how many late events were discarded since the last reset.
func (b *Buffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
