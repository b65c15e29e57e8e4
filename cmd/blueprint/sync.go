package main

import (
	"fmt"

	"github.com/rpggio/blueprint/internal/app"
	"github.com/rpggio/blueprint/internal/domain/cloudsync"
	"github.com/spf13/cobra"
)

func newSyncCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push, pull and inspect cloud sync",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "push",
		Short: "Upload queued changes now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app.App) error {
				scope := a.Sessions.Scope()
				if scope.IsAnonymous() {
					return cloudsync.ErrNotAuthenticated
				}
				res, err := a.Queue.Flush(cmd.Context(), scope)
				if err != nil {
					return err
				}
				if res == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing to push")
					return nil
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "pull",
		Short: "Fetch the cloud state; newer cloud copies replace local ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app.App) error {
				res, err := a.Sync.PullFull(cmd.Context(), a.Sessions.Scope())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show pending changes and the last sync time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app.App) error {
				scope := a.Sessions.Scope()
				pending, err := a.Queue.Pending(cmd.Context(), scope)
				if err != nil {
					return err
				}
				last, err := a.Sync.LastSynced(cmd.Context(), scope)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "scope:        %s\n", scope)
				fmt.Fprintf(out, "status:       %s\n", a.Queue.Status(scope).Status)
				fmt.Fprintf(out, "pending:      %d projects, %d chat batches\n", len(pending.Projects), len(pending.ChatMessages))
				if last.IsZero() {
					fmt.Fprintln(out, "last synced:  never")
				} else {
					fmt.Fprintf(out, "last synced:  %s\n", last.Local().Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	})
	return cmd
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Move single-project data from an older install into the current account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			login, err := a.Start(cmd.Context())
			if err != nil {
				return err
			}
			if login.Migration == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to migrate")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), login.Migration)
		},
	}
}
