package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/blueprint/internal/domain/activity"
	"github.com/stretchr/testify/require"
)

func TestActivityRepository_LogList(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	repo := NewActivityRepository(db)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entry1 := &activity.Entry{
		ProjectID: "p1",
		Type:      activity.TypePushed,
		Summary:   "pushed",
		Details:   `{"projects":1}`,
		CreatedAt: base,
	}
	entry2 := &activity.Entry{
		ProjectID: "p1",
		Type:      activity.TypeRemoteWon,
		Summary:   "remote copy applied",
		CreatedAt: base.Add(time.Second),
	}

	require.NoError(t, repo.Log(ctx, "u:alice", entry1))
	require.NoError(t, repo.Log(ctx, "u:alice", entry2))
	require.NotZero(t, entry1.ID)

	entries, err := repo.List(ctx, "u:alice", activity.ListOptions{ProjectID: "p1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, entry2.Type, entries[0].Type)
	require.Equal(t, entry1.Type, entries[1].Type)
}

func TestActivityRepository_FiltersAndScopeIsolation(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	repo := NewActivityRepository(db)
	require.NoError(t, repo.Log(ctx, "u:alice", &activity.Entry{
		ProjectID: "p1",
		Type:      activity.TypeOwnershipRejected,
		Summary:   "rejected remote project",
	}))
	require.NoError(t, repo.Log(ctx, "u:alice", &activity.Entry{
		Type:    activity.TypePushed,
		Summary: "pushed",
	}))

	typ := activity.TypeOwnershipRejected
	entries, err := repo.List(ctx, "u:alice", activity.ListOptions{Type: &typ})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "p1", entries[0].ProjectID)

	entries, err = repo.List(ctx, "u:bob", activity.ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 0)

	entries, err = repo.List(ctx, "u:alice", activity.ListOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
