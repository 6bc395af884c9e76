package main

import (
	"context"
	"errors"

	"github.com/aretw0/notetaker/pkg/core"
)

var errFeedClosed = errors.New("event feed closed")

// await subscribes to kind, runs op and returns the first event match accepts.
// Subscribing first guarantees the echo of op is not missed.
func await(ctx context.Context, b core.Backend, kind core.EventKind, op func(context.Context) error, match func(core.Event) bool) (core.Event, error) {
	sub, err := b.Subscribe(ctx, kind)
	if err != nil {
		return core.Event{}, err
	}
	defer sub.Release()

	if err := op(ctx); err != nil {
		return core.Event{}, err
	}
	for {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				return core.Event{}, errFeedClosed
			}
			if match(e) {
				return e, nil
			}
		case <-ctx.Done():
			return core.Event{}, ctx.Err()
		}
	}
}
