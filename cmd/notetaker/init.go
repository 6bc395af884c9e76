package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker/internal/config"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a notetaker.toml in the current directory",
		Long: `Init writes a notetaker.toml with the default settings, plus the adapter and
URI given as flags. For the fs adapter it also prepares the notes directory.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationConfig: configFresh},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if path == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("get working directory: %w", err)
				}
				path = filepath.Join(cwd, config.FileName)
			}

			cfg := a.cfg
			cfg.Path = path
			if err := config.Write(path, cfg); err != nil {
				return err
			}
			a.cfg = cfg

			if cfg.Adapter == "fs" {
				backend, err := a.openBackend(cmd.Context())
				if err != nil {
					return fmt.Errorf("prepare notes directory: %w", err)
				}
				if err := backend.Close(); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Initialized notetaker (%s) in %s\n", cfg.Adapter, filepath.Dir(path))
			return nil
		},
	}
}
