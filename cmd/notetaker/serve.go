package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker/internal/emulator"
)

func newServeCmd(a *app) *cobra.Command {
	var addr, apiKey string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the configured backend as a local GraphQL service",
		Long: `Serve runs an emulator of the managed notes API on top of the configured
backend. Queries and mutations are POSTed to /graphql; subscriptions use the
graphql-transport-ws protocol on the same path. Point the graphql adapter at it
to share notes between clients.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Serve.Addr = addr
			}
			if cmd.Flags().Changed("api-key") {
				a.cfg.Serve.APIKey = apiKey
			}
			if a.cfg.Adapter == "graphql" {
				return fmt.Errorf("serve needs a local backend, got %q", a.cfg.Adapter)
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			backend, err := a.openLiveBackend(ctx)
			if err != nil {
				return fmt.Errorf("open backend: %w", err)
			}
			defer backend.Close()

			srv := emulator.New(backend,
				emulator.WithAPIKey(a.cfg.Serve.APIKey),
				emulator.WithLogger(a.logger),
			)
			a.logger.Info("serving notes", "adapter", a.cfg.Adapter, "addr", "http://"+a.cfg.Serve.Addr+"/graphql")
			return srv.ListenAndServe(ctx, a.cfg.Serve.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, localhost:8080)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Require this x-api-key on every request")
	return cmd
}
