// Package api exposes the archive pipeline over HTTP: build submission,
// build/task status, cancellation, the edit-list store, and the
// non-blocking GUI notification channel (spec §7) as an SSE stream.
// Grounded on the teacher's internal/api (httprouter-less mux, SSE job
// stream) generalized to httprouter per SPEC_FULL.md's DOMAIN STACK
// (livepeer-catalyst-api is the pack's only real HTTP-framework user).
package api

import (
	"encoding/json"
	"sync"
)

// EventKind is one of the three notification kinds spec §7 names: "a
// non-blocking notification channel receives (event_kind, message)
// where event_kind in {info, message, error}."
type EventKind string

const (
	EventInfo    EventKind = "info"
	EventMessage EventKind = "message"
	EventError   EventKind = "error"
)

// Event is one notification delivered to subscribers.
type Event struct {
	Kind    EventKind `json:"kind"`
	Message string    `json:"message"`
}

// Notifier is the sole coupling between the core and a GUI (spec §7).
// Publish never blocks: a slow subscriber misses the events its full
// buffer cannot take, and is never allowed to stall the publishing
// goroutine (which is usually the
// dispatcher's single delivery goroutine — spec §5 forbids anything
// from blocking it).
type Notifier struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewNotifier constructs an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new channel that receives every future
// Publish call. The caller must Unsubscribe when done.
func (n *Notifier) Subscribe() chan Event {
	ch := make(chan Event, 32)
	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch.
func (n *Notifier) Unsubscribe(ch chan Event) {
	n.mu.Lock()
	if _, ok := n.subs[ch]; ok {
		delete(n.subs, ch)
		close(ch)
	}
	n.mu.Unlock()
}

// Publish delivers kind/message to every current subscriber. A
// subscriber whose buffer is full is skipped for this event rather
// than blocking the publisher.
func (n *Notifier) Publish(kind EventKind, message string) {
	ev := Event{Kind: kind, Message: message}
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Info/Message/Error are convenience wrappers over Publish.
func (n *Notifier) Info(message string)    { n.Publish(EventInfo, message) }
func (n *Notifier) Message(message string) { n.Publish(EventMessage, message) }
func (n *Notifier) Error(message string)   { n.Publish(EventError, message) }

func (e Event) marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}
