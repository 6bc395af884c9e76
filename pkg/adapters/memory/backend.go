// Package memory provides an in-process core.Backend.
//
// It behaves like the managed service from the client's point of view: IDs are
// assigned on creation and every mutation is echoed on the matching feed.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/aretw0/notetaker/internal/broker"
	"github.com/aretw0/notetaker/pkg/core"
)

// Backend stores notes in memory.
type Backend struct {
	// publishMu spans a mutation and its echo, so events leave in the order
	// the mutations were applied.
	publishMu sync.Mutex

	mu     sync.RWMutex
	order  []string
	notes  map[string]core.Note
	broker *broker.Broker
	newID  func() string
}

// Option configures the memory backend.
type Option func(*Backend)

// WithIDGenerator replaces the UUID generator (useful for deterministic tests).
func WithIDGenerator(fn func() string) Option {
	return func(b *Backend) {
		b.newID = fn
	}
}

// WithBuffer sets the per-subscription buffer size.
func WithBuffer(size int) Option {
	return func(b *Backend) {
		b.broker = broker.New(size)
	}
}

// WithNotes seeds the backend without emitting events.
func WithNotes(notes ...core.Note) Option {
	return func(b *Backend) {
		for _, n := range notes {
			if _, ok := b.notes[n.ID]; !ok {
				b.order = append(b.order, n.ID)
			}
			b.notes[n.ID] = n
		}
	}
}

// New creates an empty backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		notes:  make(map[string]core.Note),
		broker: broker.New(0),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// List returns the notes in creation order.
func (b *Backend) List(ctx context.Context) ([]core.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.Note, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.notes[id])
	}
	return out, nil
}

// Get returns one note.
func (b *Backend) Get(ctx context.Context, id string) (core.Note, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, ok := b.notes[id]
	if !ok {
		return core.Note{}, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return n, nil
}

// Create stores a note under a fresh ID and publishes a Created event.
func (b *Backend) Create(ctx context.Context, text string) error {
	_, err := b.Add(ctx, text)
	return err
}

// Add is Create returning the stored note.
func (b *Backend) Add(ctx context.Context, text string) (core.Note, error) {
	if err := ctx.Err(); err != nil {
		return core.Note{}, err
	}
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.Lock()
	n := core.Note{ID: b.newID(), Text: text}
	b.notes[n.ID] = n
	b.order = append(b.order, n.ID)
	b.mu.Unlock()

	b.broker.Publish(ctx, core.Created(n))
	return n, nil
}

// Update replaces the text of an existing note and publishes an Updated event.
func (b *Backend) Update(ctx context.Context, id, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.Lock()
	if _, ok := b.notes[id]; !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	n := core.Note{ID: id, Text: text}
	b.notes[id] = n
	b.mu.Unlock()

	b.broker.Publish(ctx, core.Updated(n))
	return nil
}

// Delete removes a note and publishes a Deleted event.
func (b *Backend) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.Lock()
	if _, ok := b.notes[id]; !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	delete(b.notes, id)
	for i, cur := range b.order {
		if cur == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.mu.Unlock()

	b.broker.Publish(ctx, core.Deleted(id))
	return nil
}

// Subscribe opens a feed for one kind of event.
func (b *Backend) Subscribe(ctx context.Context, kind core.EventKind) (core.Subscription, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	return b.broker.Subscribe(kind), nil
}

// Close releases every open feed.
func (b *Backend) Close() error {
	b.broker.Close()
	return nil
}

// State implements introspection.Introspectable.
func (b *Backend) State() any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return map[string]any{
		"notes":         len(b.order),
		"subscriptions": b.broker.Subscribers(),
	}
}

// ComponentType implements introspection.Component.
func (b *Backend) ComponentType() string {
	return "memory"
}

var _ core.Backend = (*Backend)(nil)
