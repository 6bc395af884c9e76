package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker/pkg/core"
)

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add [text]",
		Short: "Create a note",
		Long:  `Add creates a note and prints the ID the backend assigned to it.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")

			backend, err := a.openBackend(cmd.Context())
			if err != nil {
				return fmt.Errorf("open backend: %w", err)
			}
			defer backend.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Reconciler.CommandTimeout)
			defer cancel()

			e, err := await(ctx, backend, core.EventCreated,
				func(ctx context.Context) error { return backend.Create(ctx, text) },
				func(e core.Event) bool { return e.Note.Text == text },
			)
			if err != nil {
				return fmt.Errorf("create note: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Note created: %s\n", e.Note.ID)
			return nil
		},
	}
}
