package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker"
)

func TestSessionTree(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		s, err := notetaker.New(ctx, "", notetaker.WithAdapter("memory"))
		require.NoError(t, err)
		defer s.Close()

		tree := sessionTree(s)
		assert.Equal(t, "Reconciler", tree.Name)
		assert.Equal(t, "running", tree.Status)
		assert.Equal(t, "0", tree.Metadata["notes"])
		require.Len(t, tree.Children, 1)
		assert.Equal(t, "memory", tree.Children[0].Metadata["type"])
		assert.Empty(t, tree.Children[0].Children)
	})

	t.Run("fs with watcher", func(t *testing.T) {
		s, err := notetaker.New(ctx, t.TempDir(), notetaker.WithAdapter("fs"))
		require.NoError(t, err)
		defer s.Close()

		backend := sessionTree(s).Children[0]
		assert.Equal(t, "fs", backend.Metadata["type"])
		require.Len(t, backend.Children, 1)
		assert.Equal(t, "Watcher", backend.Children[0].Name)
	})
}
