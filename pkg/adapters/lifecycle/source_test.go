package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/pkg/adapters/lifecycle"
	"github.com/aretw0/notetaker/pkg/adapters/memory"
	"github.com/aretw0/notetaker/pkg/core"
)

func TestSource_ForwardsBackendEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := memory.New(memory.WithIDGenerator(func() string { return "n1" }))
	defer b.Close()

	src := lifecycle.NewSource(b)
	require.NoError(t, src.Start(ctx))

	require.NoError(t, b.Create(ctx, "hello"))
	require.NoError(t, b.Delete(ctx, "n1"))

	var got []string
	for len(got) < 2 {
		select {
		case e := <-src.Events():
			got = append(got, e.String())
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	assert.ElementsMatch(t, []string{core.Created(core.Note{ID: "n1", Text: "hello"}).String(), core.Deleted("n1").String()}, got)
}

func TestSource_FiltersKinds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := memory.New(memory.WithIDGenerator(func() string { return "n1" }))
	defer b.Close()

	src := lifecycle.NewSource(b, core.EventDeleted)
	require.NoError(t, src.Start(ctx))

	require.NoError(t, b.Create(ctx, "hello"))
	require.NoError(t, b.Delete(ctx, "n1"))

	select {
	case e := <-src.Events():
		assert.Equal(t, core.Deleted("n1").String(), e.String())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestSource_ReleasesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := memory.New()
	defer b.Close()

	src := lifecycle.NewSource(b)
	require.NoError(t, src.Start(ctx))
	assert.Equal(t, 3, b.State().(map[string]any)["subscriptions"])

	cancel()
	select {
	case _, open := <-src.Events():
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel was not closed")
	}
	assert.Equal(t, 0, b.State().(map[string]any)["subscriptions"])
}
