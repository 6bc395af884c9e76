package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newEditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit [id] [text]",
		Short: "Replace the text of a note",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, text := args[0], strings.Join(args[1:], " ")

			backend, err := a.openBackend(cmd.Context())
			if err != nil {
				return fmt.Errorf("open backend: %w", err)
			}
			defer backend.Close()

			if err := backend.Update(cmd.Context(), id, text); err != nil {
				return fmt.Errorf("update note %s: %w", id, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Note updated: %s\n", id)
			return nil
		},
	}
}
