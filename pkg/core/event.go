package core

import (
	"fmt"
)

// EventKind represents the type of change delivered by a subscription feed.
type EventKind string

const (
	EventCreated EventKind = "CREATED"
	EventUpdated EventKind = "UPDATED"
	EventDeleted EventKind = "DELETED"
)

// EventKinds lists every feed a client subscribes to, in subscription order.
var EventKinds = []EventKind{EventCreated, EventUpdated, EventDeleted}

// Valid reports whether k is one of the known kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventCreated, EventUpdated, EventDeleted:
		return true
	}
	return false
}

// Event is a change pushed by the backend.
// For EventDeleted only Note.ID is meaningful.
type Event struct {
	Kind EventKind `json:"kind"`
	Note Note      `json:"note"`
}

// Created builds a creation event.
func Created(n Note) Event { return Event{Kind: EventCreated, Note: n} }

// Updated builds an update event.
func Updated(n Note) Event { return Event{Kind: EventUpdated, Note: n} }

// Deleted builds a deletion event.
func Deleted(id string) Event { return Event{Kind: EventDeleted, Note: Note{ID: id}} }

// Validate checks the event at the boundary, before it reaches the reducer.
func (e Event) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	if e.Note.ID == "" {
		return fmt.Errorf("%w: %s event without note id", ErrInvalidEvent, e.Kind)
	}
	return nil
}

// String implements fmt.Stringer (and lifecycle.Event).
func (e Event) String() string {
	if e.Kind == EventDeleted {
		return fmt.Sprintf("%s %s", e.Kind, e.Note.ID)
	}
	return fmt.Sprintf("%s %s %q", e.Kind, e.Note.ID, e.Note.Text)
}
