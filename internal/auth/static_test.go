package auth_test

import (
	"context"
	"testing"

	"github.com/rpggio/blueprint/internal/auth"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	creds := auth.NewStatic("alice", "tok")
	require.True(t, creds.IsAuthenticated())
	require.Equal(t, "alice", creds.CurrentIdentity())

	token, err := creds.BearerToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok", token)

	creds.SignOut()
	require.False(t, creds.IsAuthenticated())
	require.Empty(t, creds.CurrentIdentity())
	_, err = creds.BearerToken(context.Background())
	require.ErrorIs(t, err, auth.ErrNoToken)
}

func TestStatic_IdentityWithoutToken(t *testing.T) {
	creds := auth.NewStatic("alice", "")
	require.False(t, creds.IsAuthenticated())
	require.Empty(t, creds.CurrentIdentity())
}
