package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseUserTokens(t *testing.T) {
	tokens, err := parseUserTokens([]string{"tok-a=alice", "tok-b=bob=x"})
	require.NoError(t, err)

	user, err := tokens.ResolveUser(context.Background(), "tok-a")
	require.NoError(t, err)
	require.Equal(t, "alice", user)

	user, err = tokens.ResolveUser(context.Background(), "tok-b")
	require.NoError(t, err)
	require.Equal(t, "bob=x", user)

	_, err = tokens.ResolveUser(context.Background(), "nope")
	require.Error(t, err)
}

func TestParseUserTokens_Invalid(t *testing.T) {
	for _, pair := range []string{"", "tok-only", "=alice", "tok="} {
		_, err := parseUserTokens([]string{pair})
		require.Error(t, err, pair)
	}
}

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	require.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	require.Equal(t, slog.LevelError, parseLogLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}
