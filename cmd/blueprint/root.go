package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/rpggio/blueprint/internal/app"
	"github.com/rpggio/blueprint/internal/config"
	"github.com/spf13/cobra"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
	LogLevel   string
	DBPath     string

	cfg    config.Config
	logger *slog.Logger
	closer io.Closer
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "blueprint",
		Short:         "Offline-first project store with cloud sync",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := opts.ConfigPath
			if path == "" {
				path = config.ConfigPathFromEnv()
			}
			cfg, err := config.LoadFile(path)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if opts.LogLevel != "" {
				cfg.Log.Level = opts.LogLevel
			}
			if opts.DBPath != "" {
				cfg.DB.Path = opts.DBPath
			}
			opts.cfg = cfg

			logger, closer, err := newLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("log file error: %w", err)
			}
			opts.logger = logger
			opts.closer = closer
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.closer != nil {
				return opts.closer.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default $BLUEPRINT_CONFIG_PATH)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "local database path")

	cmd.AddCommand(newProjectsCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newMCPCommand(opts))
	cmd.AddCommand(newDevServerCommand(opts))

	return cmd
}

// withApp opens the local store, starts the session and runs fn. The
// session is ended afterwards, which makes one attempt to push pending changes.
func withApp(ctx context.Context, opts *rootOptions, fn func(*app.App) error) error {
	a, err := app.New(opts.cfg, opts.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			opts.logger.Warn("closing store", "error", err)
		}
	}()

	if _, err := a.Start(ctx); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
