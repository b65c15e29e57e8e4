package settings_test

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/blueprint/internal/domain/settings"
	"github.com/rpggio/blueprint/internal/repository/mocks"
	"github.com/rpggio/blueprint/internal/testutil"
	"github.com/rpggio/blueprint/internal/tenant"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSettingsService_Preferences(t *testing.T) {
	ctx := context.Background()
	store, _ := testutil.NewStore(t, 0)
	scope, _ := tenant.ForUser("alice")

	enq := &mocks.Enqueuer{}
	enq.On("EnqueuePreferences", ctx, scope, settings.Preferences{"theme": "dark"}).Return(nil)
	svc := settings.NewService(store, enq, nil)

	prefs, err := svc.Preferences(ctx, scope)
	require.NoError(t, err)
	require.Empty(t, prefs)

	require.NoError(t, svc.ApplyRemotePreferences(ctx, scope, settings.Preferences{"lang": "en", "theme": "light"}))
	prefs, err = svc.UpdatePreferences(ctx, scope, settings.Preferences{"theme": "dark"})
	require.NoError(t, err)
	require.Equal(t, settings.Preferences{"lang": "en", "theme": "dark"}, prefs)

	// Pulled values are never queued back.
	enq.AssertNumberOfCalls(t, "EnqueuePreferences", 1)
}

func TestSettingsService_Archetypes(t *testing.T) {
	ctx := context.Background()
	store, _ := testutil.NewStore(t, 0)
	scope, _ := tenant.ForUser("alice")

	enq := &mocks.Enqueuer{}
	enq.On("EnqueueArchetypes", ctx, scope, mock.Anything).Return(nil)
	svc := settings.NewService(store, enq, nil)

	_, err := svc.SaveArchetype(ctx, scope, settings.Archetype{ArchetypeID: "a1"})
	require.ErrorIs(t, err, settings.ErrInvalidInput)

	saved, err := svc.SaveArchetype(ctx, scope, settings.Archetype{ArchetypeID: "a1", Name: "Shop"})
	require.NoError(t, err)
	require.False(t, saved.UpdatedAt.IsZero())

	applied, err := svc.ApplyRemoteArchetypes(ctx, scope, []settings.Archetype{
		{ArchetypeID: "a1", Name: "Old shop", UpdatedAt: saved.UpdatedAt.Add(-time.Hour)},
		{ArchetypeID: "a2", Name: "Clinic", UpdatedAt: saved.UpdatedAt},
	})
	require.NoError(t, err)
	require.Equal(t, 1, applied)

	list, err := svc.Archetypes(ctx, scope)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Clinic", list[0].Name)
	require.Equal(t, "Shop", list[1].Name)

	enq.AssertNumberOfCalls(t, "EnqueueArchetypes", 1)
}
