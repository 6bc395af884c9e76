package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			backend, err := a.openBackend(cmd.Context())
			if err != nil {
				return fmt.Errorf("open backend: %w", err)
			}
			defer backend.Close()

			if err := backend.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("delete note %s: %w", id, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Note deleted: %s\n", id)
			return nil
		},
	}
}
