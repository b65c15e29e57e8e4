package main

import (
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rpggio/blueprint/internal/transport"
	"github.com/spf13/cobra"
)

func newDevServerCommand(opts *rootOptions) *cobra.Command {
	var users []string
	cmd := &cobra.Command{
		Use:   "dev-server",
		Short: "Run an in-memory sync server for local development",
		Long: "Run the sync HTTP API backed by memory. Each --user token=userID " +
			"registers a bearer token; state is lost on exit.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := parseUserTokens(users)
			if err != nil {
				return err
			}
			if len(users) == 0 {
				opts.logger.Warn("no users registered; every request will be rejected")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			router := transport.NewServer(transport.NewMemoryBackend(), transport.AuthMiddleware(tokens), opts.logger)
			addr := net.JoinHostPort(opts.cfg.Server.Host, strconv.Itoa(opts.cfg.Server.Port))
			return serveUntilDone(ctx, opts.logger, &http.Server{Addr: addr, Handler: router})
		},
	}
	cmd.Flags().StringArrayVar(&users, "user", nil, "token=userID pair accepted by the server (repeatable)")
	return cmd
}

func parseUserTokens(pairs []string) (*transport.TokenTable, error) {
	tokens := transport.NewTokenTable()
	for _, pair := range pairs {
		token, userID, ok := strings.Cut(pair, "=")
		if !ok || token == "" || userID == "" {
			return nil, fmt.Errorf("invalid --user %q: want token=userID", pair)
		}
		tokens.Add(token, userID)
	}
	return tokens, nil
}
