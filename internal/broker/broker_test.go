package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/pkg/core"
)

func TestBroker_FanOutByKind(t *testing.T) {
	b := New(4)
	created1 := b.Subscribe(core.EventCreated)
	created2 := b.Subscribe(core.EventCreated)
	deleted := b.Subscribe(core.EventDeleted)
	defer b.Close()

	ctx := context.Background()
	b.Publish(ctx, core.Created(core.Note{ID: "1", Text: "a"}))

	for _, sub := range []core.Subscription{created1, created2} {
		select {
		case e := <-sub.Events():
			assert.Equal(t, core.EventCreated, e.Kind)
			assert.Equal(t, "1", e.Note.ID)
		case <-time.After(time.Second):
			t.Fatal("created subscriber did not receive event")
		}
	}

	select {
	case e := <-deleted.Events():
		t.Fatalf("deleted feed received %v", e)
	default:
	}
}

func TestBroker_ReleaseIsIdempotentAndClosesFeed(t *testing.T) {
	b := New(1)
	sub := b.Subscribe(core.EventUpdated)
	require.Equal(t, 1, b.Subscribers())

	require.NoError(t, sub.Release())
	require.NoError(t, sub.Release())
	assert.Equal(t, 0, b.Subscribers())

	_, ok := <-sub.Events()
	assert.False(t, ok, "feed should be closed after release")

	// Publishing to nobody must not block.
	b.Publish(context.Background(), core.Updated(core.Note{ID: "x"}))
}

func TestBroker_ReleaseUnblocksPublisher(t *testing.T) {
	b := New(1)
	sub := b.Subscribe(core.EventCreated)

	ctx := context.Background()
	b.Publish(ctx, core.Created(core.Note{ID: "1"})) // fills the buffer

	done := make(chan struct{})
	go func() {
		b.Publish(ctx, core.Created(core.Note{ID: "2"}))
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, sub.Release())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher stayed blocked after release")
	}

	_, ok := <-sub.Events()
	assert.False(t, ok, "buffered events must not be read after release")
}

func TestBroker_SubscribeAfterClose(t *testing.T) {
	b := New(0)
	b.Close()

	sub := b.Subscribe(core.EventDeleted)
	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.NoError(t, sub.Release())
}
