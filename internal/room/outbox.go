// Package room provides the room session engine: the registry of live quiz
// rooms, per-room player rosters, and room-scoped broadcast fan-out.
package room

import (
	"fmt"
	"sync"
)

// Outbox is the per-connection outbound event queue. The session pushes
// encoded events into it under the room lock; the connection's write loop
// drains it. Pushes never block: a full outbox drops the event and reports
// an error so a slow consumer cannot stall the room.
type Outbox struct {
	id     string
	events chan []byte
	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox identified by id (used only for logging).
//
// Precondition: id must be non-empty.
// Postcondition: Returns an Outbox with an open events channel.
func NewOutbox(id string, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Outbox{
		id:     id,
		events: make(chan []byte, bufferSize),
	}
}

// ID returns the outbox identifier.
func (o *Outbox) ID() string {
	return o.id
}

// Push enqueues an encoded event for delivery.
//
// Postcondition: The event is enqueued, or an error if the outbox is closed
// or full.
func (o *Outbox) Push(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox %s is closed", o.id)
	}
	select {
	case o.events <- data:
		return nil
	default:
		return fmt.Errorf("outbox %s event buffer full", o.id)
	}
}

// Events returns the read-only events channel. The connection's write loop
// reads from this channel until it is closed.
func (o *Outbox) Events() <-chan []byte {
	return o.events
}

// Close marks the outbox as closed and closes the events channel.
//
// Postcondition: The events channel is closed. Further Push calls return an error.
func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.events)
	}
	return nil
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
