package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker"
	"github.com/aretw0/notetaker/internal/config"
	"github.com/aretw0/notetaker/pkg/core"
)

const (
	annotationConfig = "config"
	// configFresh marks commands that start from the defaults instead of an
	// existing file.
	configFresh = "fresh"
)

// app carries the global flags and the configuration they resolve to.
type app struct {
	verbose    bool
	configPath string
	adapter    string
	uri        string

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "notetaker",
		Short: "A notes client that keeps a live list in sync with its backend",
		Long: `Notetaker edits notes stored in a directory of Markdown files, a SQLite
database or a managed GraphQL service. The list is driven by the backend's
Created, Updated and Deleted feeds, so changes made elsewhere show up live.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}

			opts := &slog.HandlerOptions{
				Level: level,
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), opts))
			slog.SetDefault(a.logger)

			return a.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to notetaker.toml (default: nearest one above the working directory)")
	flags.StringVarP(&a.adapter, "adapter", "a", "", "Backend: fs, sqlite, graphql or memory")
	flags.StringVarP(&a.uri, "uri", "u", "", "Notes directory, database file or GraphQL endpoint")

	cmd.AddCommand(
		newInitCmd(a),
		newListCmd(a),
		newAddCmd(a),
		newEditCmd(a),
		newDeleteCmd(a),
		newWatchCmd(a),
		newUICmd(a),
		newServeCmd(a),
		newStatusCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the command tree. This is called by main.main().
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fatal("Error", err)
	}
}

// load resolves the configuration file. Flags win over the file.
func (a *app) load(cmd *cobra.Command) error {
	cfg := config.Default()
	if cmd.Annotations[annotationConfig] != configFresh {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		cfg, err = config.Resolve(a.configPath, wd)
		if err != nil {
			return err
		}
		if cfg.Path != "" {
			a.logger.Debug("configuration loaded", "path", cfg.Path)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("adapter") {
		cfg.Adapter = a.adapter
	}
	if flags.Changed("uri") {
		// A URI given on the command line is relative to the working directory.
		cfg.URI = a.uri
		cfg.Path = ""
	}
	a.cfg = cfg
	return nil
}

func (a *app) options(extra ...notetaker.Option) []notetaker.Option {
	c := a.cfg
	opts := []notetaker.Option{
		notetaker.WithAdapter(c.Adapter),
		notetaker.WithLogger(a.logger),
		notetaker.WithSystemDir(c.FS.SystemDir),
		notetaker.WithExtension(c.FS.Extension),
		notetaker.WithPattern(c.FS.Pattern),
		notetaker.WithDebounce(c.FS.Debounce),
		notetaker.WithMustExist(c.FS.MustExist),
		notetaker.WithAPIKey(c.GraphQL.APIKey),
		notetaker.WithToken(c.GraphQL.Token),
		notetaker.WithBufferSize(c.Reconciler.Buffer),
		notetaker.WithCommandTimeout(c.Reconciler.CommandTimeout),
	}
	return append(opts, extra...)
}

// openBackend opens the configured backend without a reconciler.
// One-shot commands do not need the fs watcher.
func (a *app) openBackend(ctx context.Context) (core.Backend, error) {
	return notetaker.Open(ctx, a.cfg.Location(), a.options(notetaker.WithWatch(false))...)
}

// openLiveBackend opens the configured backend with the fs watcher on, for
// commands that report changes made by other processes.
func (a *app) openLiveBackend(ctx context.Context) (core.Backend, error) {
	return notetaker.Open(ctx, a.cfg.Location(), a.options()...)
}

func (a *app) openSession(ctx context.Context) (*notetaker.Session, error) {
	return notetaker.New(ctx, a.cfg.Location(), a.options()...)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
