// Package broker fans backend events out to subscription feeds.
package broker

import (
	"context"
	"sync"

	"github.com/aretw0/notetaker/pkg/core"
)

// DefaultBuffer is the per-subscription buffer used when none is given.
const DefaultBuffer = 64

// Broker delivers each published event to every live subscription of its kind.
// Publish blocks while a subscriber's buffer is full, so a slow reader applies
// back-pressure instead of losing events.
type Broker struct {
	mu     sync.RWMutex
	subs   map[core.EventKind]map[*subscription]struct{}
	buffer int
	closed bool
}

// New creates a Broker. A buffer of zero or less means DefaultBuffer.
func New(buffer int) *Broker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broker{
		subs:   make(map[core.EventKind]map[*subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe opens a feed for one kind of event.
func (b *Broker) Subscribe(kind core.EventKind) core.Subscription {
	s := &subscription{
		broker: b,
		kind:   kind,
		ch:     make(chan core.Event, b.buffer),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.once.Do(func() {})
		close(s.done)
		close(s.ch)
		return s
	}
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[*subscription]struct{})
	}
	b.subs[kind][s] = struct{}{}
	return s
}

// Publish delivers e to every subscriber of e.Kind. It returns early when ctx
// is done.
func (b *Broker) Publish(ctx context.Context, e core.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs[e.Kind] {
		select {
		case s.ch <- e:
		case <-s.done:
		case <-ctx.Done():
			return
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, set := range b.subs {
		n += len(set)
	}
	return n
}

// Close releases every subscription. Later subscriptions are born closed.
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	var all []*subscription
	for _, set := range b.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	b.mu.Unlock()

	for _, s := range all {
		_ = s.Release()
	}
}

type subscription struct {
	broker *Broker
	kind   core.EventKind
	ch     chan core.Event
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) Events() <-chan core.Event {
	return s.ch
}

// Release unblocks pending publishes first, then detaches the feed and closes
// its channel once no publisher can reach it.
func (s *subscription) Release() error {
	s.once.Do(func() {
		close(s.done)

		s.broker.mu.Lock()
		defer s.broker.mu.Unlock()
		if set, ok := s.broker.subs[s.kind]; ok {
			if _, ok := set[s]; ok {
				delete(set, s)
				drain(s.ch)
				close(s.ch)
			}
		}
	})
	return nil
}

// drain discards buffered events so nothing is read after Release.
func drain(ch chan core.Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
