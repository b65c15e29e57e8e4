package ownership_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rpggio/blueprint/internal/domain/activity"
	"github.com/rpggio/blueprint/internal/domain/ownership"
	"github.com/rpggio/blueprint/internal/repository/mocks"
	"github.com/rpggio/blueprint/internal/tenant"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestVerifier_OwnedProjectCachedPerScope(t *testing.T) {
	ctx := context.Background()
	alice, _ := tenant.ForUser("alice")
	bob, _ := tenant.ForUser("bob")

	remote := &mocks.OwnerFetcher{}
	remote.On("FetchProjectOwner", ctx, "c1").Return("alice", nil)
	rec := &mocks.ActivityRecorder{}
	rec.On("Record", ctx, bob, activity.TypeOwnershipRejected, "c1", mock.Anything).Return()

	v := ownership.NewVerifier(remote, rec, nil)

	require.True(t, v.Verify(ctx, alice, "c1"))
	require.True(t, v.Verify(ctx, alice, "c1"))
	remote.AssertNumberOfCalls(t, "FetchProjectOwner", 1)

	// Alice's answer does not leak into Bob's scope.
	require.False(t, v.Verify(ctx, bob, "c1"))
	remote.AssertNumberOfCalls(t, "FetchProjectOwner", 2)
	rec.AssertNumberOfCalls(t, "Record", 1)

	v.Forget(alice)
	require.True(t, v.Verify(ctx, alice, "c1"))
	remote.AssertNumberOfCalls(t, "FetchProjectOwner", 3)
}

func TestVerifier_NegativeAnswersRechecked(t *testing.T) {
	ctx := context.Background()
	alice, _ := tenant.ForUser("alice")

	remote := &mocks.OwnerFetcher{}
	remote.On("FetchProjectOwner", ctx, "c2").Return("", errors.New("unreachable")).Once()
	remote.On("FetchProjectOwner", ctx, "c2").Return("alice", nil)

	v := ownership.NewVerifier(remote, nil, nil)

	require.False(t, v.Verify(ctx, alice, "c2"))
	require.True(t, v.Verify(ctx, alice, "c2"))
	remote.AssertNumberOfCalls(t, "FetchProjectOwner", 2)
}

func TestVerifier_NothingVerifiedWithoutIdentity(t *testing.T) {
	ctx := context.Background()
	alice, _ := tenant.ForUser("alice")

	remote := &mocks.OwnerFetcher{}
	v := ownership.NewVerifier(remote, nil, nil)

	require.False(t, v.Verify(ctx, tenant.NewAnonymous(), "c1"))
	require.False(t, v.Verify(ctx, tenant.Scope{}, "c1"))
	require.False(t, v.Verify(ctx, alice, " "))
	remote.AssertNotCalled(t, "FetchProjectOwner", mock.Anything, mock.Anything)
}
