// Package lifecycle exposes backend feeds as a lifecycle.Source.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/notetaker/pkg/core"
)

type feedSource struct {
	backend core.Backend
	kinds   []core.EventKind
	out     chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that emits the raw events of backend.
// With no kinds it listens to all of them. Feeds are released when the
// context given to Start is done.
func NewSource(backend core.Backend, kinds ...core.EventKind) lifecycle.Source {
	if len(kinds) == 0 {
		kinds = core.EventKinds
	}
	return &feedSource{
		backend: backend,
		kinds:   kinds,
		out:     make(chan lifecycle.Event),
	}
}

func (s *feedSource) Events() <-chan lifecycle.Event {
	return s.out
}

// Start subscribes to every kind before returning, so no event published
// afterwards is missed.
func (s *feedSource) Start(ctx context.Context) error {
	subs := make([]core.Subscription, 0, len(s.kinds))
	for _, kind := range s.kinds {
		sub, err := s.backend.Subscribe(ctx, kind)
		if err != nil {
			for _, open := range subs {
				_ = open.Release()
			}
			return fmt.Errorf("subscribe %s: %w", kind, err)
		}
		subs = append(subs, sub)
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		lifecycle.Go(ctx, func(ctx context.Context) error {
			defer wg.Done()
			return s.forward(ctx, sub)
		})
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		var errs []error
		for _, sub := range subs {
			errs = append(errs, sub.Release())
		}
		wg.Wait()
		close(s.out)
		return errors.Join(errs...)
	})
	return nil
}

func (s *feedSource) forward(ctx context.Context, sub core.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-sub.Events():
			if !ok {
				return nil
			}
			// core.Event implements lifecycle.Event (has String())
			select {
			case s.out <- e:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
