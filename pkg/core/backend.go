package core

import "context"

// Backend defines the contract of the external service that owns the notes.
// Adhering to this interface keeps the reconciler independent of the
// transport (managed GraphQL API, SQL, filesystem, memory).
//
// Mutations are fire-and-forget from the caller's point of view: their
// completion is observed through the matching subscription event.
type Backend interface {
	// List returns a snapshot of all notes.
	List(ctx context.Context) ([]Note, error)

	// Create asks the backend to store a new note with the given text.
	Create(ctx context.Context, text string) error

	// Update replaces the text of an existing note.
	Update(ctx context.Context, id, text string) error

	// Delete removes a note by its ID.
	Delete(ctx context.Context, id string) error

	// Subscribe opens a long-lived feed of events of one kind.
	Subscribe(ctx context.Context, kind EventKind) (Subscription, error)

	// Close releases the resources held by the backend.
	Close() error
}

// Subscription is a push channel delivering events of one kind until released.
type Subscription interface {
	// Events returns the feed. It is closed once the subscription is released
	// or the underlying transport ends.
	Events() <-chan Event

	// Release stops the feed. It is safe to call more than once; no event is
	// delivered after the first call returns.
	Release() error
}
