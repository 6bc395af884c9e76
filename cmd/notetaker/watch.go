package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker/pkg/adapters/lifecycle"
	"github.com/aretw0/notetaker/pkg/core"
)

func newWatchCmd(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the note list every time it changes",
		Long: `Watch keeps a reconciled copy of the list and prints it after each change.
With --raw it prints the Created, Updated and Deleted events as they arrive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			if raw {
				return a.watchRaw(ctx, cmd)
			}

			s, err := a.openSession(ctx)
			if err != nil {
				return fmt.Errorf("open session: %w", err)
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			printSnapshot(out, s.Snapshot())
			for {
				select {
				case <-ctx.Done():
					return nil
				case snap, ok := <-s.Updates():
					if !ok {
						return nil
					}
					printSnapshot(out, snap)
				}
			}
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print backend events instead of the reconciled list")
	return cmd
}

func (a *app) watchRaw(ctx context.Context, cmd *cobra.Command) error {
	backend, err := a.openLiveBackend(ctx)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer backend.Close()

	src := lifecycle.NewSource(backend)
	if err := src.Start(ctx); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for e := range src.Events() {
		fmt.Fprintln(out, e.String())
	}
	return nil
}

func printSnapshot(w io.Writer, snap core.Snapshot) {
	fmt.Fprintf(w, "--- %d notes\n", len(snap.Notes))
	for _, n := range snap.Notes {
		fmt.Fprintf(w, "%s\t%s\n", n.ID, n.Text)
	}
	if snap.LastError != "" {
		fmt.Fprintf(w, "error: %s\n", snap.LastError)
	}
}
