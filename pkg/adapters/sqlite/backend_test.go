package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/pkg/adapters/sqlite"
	"github.com/aretw0/notetaker/pkg/core"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("n%d", n)
	}
}

func openTest(t *testing.T, path string) *sqlite.Backend {
	t.Helper()
	b, err := sqlite.Open(path, sqlite.WithIDGenerator(sequentialIDs()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBackend_CRUDEchoesEvents(t *testing.T) {
	ctx := context.Background()
	b := openTest(t, filepath.Join(t.TempDir(), "notes.db"))

	created, err := b.Subscribe(ctx, core.EventCreated)
	require.NoError(t, err)
	updated, err := b.Subscribe(ctx, core.EventUpdated)
	require.NoError(t, err)
	deleted, err := b.Subscribe(ctx, core.EventDeleted)
	require.NoError(t, err)

	require.NoError(t, b.Create(ctx, "first"))
	require.NoError(t, b.Create(ctx, "second"))
	assert.Equal(t, core.Created(core.Note{ID: "n1", Text: "first"}), <-created.Events())
	assert.Equal(t, core.Created(core.Note{ID: "n2", Text: "second"}), <-created.Events())

	require.NoError(t, b.Update(ctx, "n1", "changed"))
	assert.Equal(t, core.Updated(core.Note{ID: "n1", Text: "changed"}), <-updated.Events())

	list, err := b.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Note{{ID: "n1", Text: "changed"}, {ID: "n2", Text: "second"}}, list)

	require.NoError(t, b.Delete(ctx, "n1"))
	assert.Equal(t, core.Deleted("n1"), <-deleted.Events())

	_, err = b.Get(ctx, "n1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestBackend_MissingNote(t *testing.T) {
	ctx := context.Background()
	b := openTest(t, ":memory:")

	assert.ErrorIs(t, b.Update(ctx, "nope", "x"), core.ErrNotFound)
	assert.ErrorIs(t, b.Delete(ctx, "nope"), core.ErrNotFound)
}

func TestBackend_PersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "notes.db")

	first, err := sqlite.Open(path, sqlite.WithIDGenerator(sequentialIDs()))
	require.NoError(t, err)
	require.NoError(t, first.Create(ctx, "kept"))
	require.NoError(t, first.Close())

	second := openTest(t, path)
	list, err := second.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Note{{ID: "n1", Text: "kept"}}, list)
}

func TestBackend_DrivesReconciler(t *testing.T) {
	ctx := context.Background()
	b := openTest(t, ":memory:")

	r := core.NewReconciler(b)
	require.NoError(t, r.Start(ctx))
	defer r.Close()

	require.NoError(t, r.SetText(ctx, "stored"))
	require.NoError(t, r.Submit(ctx))
	require.Eventually(t, func() bool {
		notes := r.Snapshot().Notes
		return len(notes) == 1 && notes[0] == core.Note{ID: "n1", Text: "stored"}
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, r.Remove(ctx, "n1"))
	require.Eventually(t, func() bool {
		return len(r.Snapshot().Notes) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBackend_Introspection(t *testing.T) {
	b := openTest(t, ":memory:")
	_, err := b.Subscribe(context.Background(), core.EventDeleted)
	require.NoError(t, err)

	state := b.State().(map[string]any)
	assert.Equal(t, ":memory:", state["path"])
	assert.Equal(t, 1, state["subscriptions"])
	assert.Equal(t, "sqlite", b.ComponentType())
}
