package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rpggio/blueprint/internal/app"
	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/spf13/cobra"
)

func newProjectsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage local projects",
	}
	cmd.AddCommand(newProjectsListCommand(opts))
	cmd.AddCommand(newProjectsCreateCommand(opts))
	cmd.AddCommand(newProjectsShowCommand(opts))
	cmd.AddCommand(newProjectsDeleteCommand(opts))
	return cmd
}

func newProjectsListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects of the current account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app.App) error {
				items, err := a.Projects.ListSummaries(cmd.Context(), a.Sessions.Scope())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tPROGRESS\tSYNCED\tUPDATED")
				for _, it := range items {
					synced := "no"
					if it.CloudProjectID != "" {
						synced = "yes"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t%s\t%s\n", it.ID, it.Name, it.Status, it.Progress, synced, it.UpdatedAt.Local().Format("2006-01-02 15:04"))
				}
				return tw.Flush()
			})
		},
	}
}

func newProjectsCreateCommand(opts *rootOptions) *cobra.Command {
	var req project.CreateRequest
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create an empty project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			return withApp(cmd.Context(), opts, func(a *app.App) error {
				rec, err := a.Projects.CreateProject(cmd.Context(), a.Sessions.Scope(), req)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Industry, "industry", "", "industry the app serves")
	cmd.Flags().StringVar(&req.UseCase, "use-case", "", "what the app is for")
	return cmd
}

func newProjectsShowCommand(opts *rootOptions) *cobra.Command {
	var withChat bool
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Print a project's state as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app.App) error {
				scope := a.Sessions.Scope()
				env, err := a.Projects.LoadState(cmd.Context(), scope, args[0])
				if err != nil {
					return err
				}
				out := struct {
					*project.Envelope
					Chat []project.ChatMessage `json:"chat,omitempty"`
				}{Envelope: env}
				if withChat {
					if out.Chat, err = a.Projects.LoadChat(cmd.Context(), scope, args[0]); err != nil {
						return err
					}
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().BoolVar(&withChat, "chat", false, "include the chat log")
	return cmd
}

func newProjectsDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a project from this device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app.App) error {
				if err := a.Projects.DeleteProject(cmd.Context(), a.Sessions.Scope(), args[0]); err != nil {
					return err
				}
				if a.Sessions.ActiveProject() == args[0] {
					return a.Sessions.ClearActiveProject(cmd.Context())
				}
				return nil
			})
		},
	}
}
