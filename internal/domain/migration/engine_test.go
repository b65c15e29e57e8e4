package migration_test

import (
	"context"
	"testing"

	"github.com/rpggio/blueprint/internal/domain/activity"
	"github.com/rpggio/blueprint/internal/domain/migration"
	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/rpggio/blueprint/internal/kv"
	"github.com/rpggio/blueprint/internal/repository"
	"github.com/rpggio/blueprint/internal/repository/mocks"
	"github.com/rpggio/blueprint/internal/testutil"
	"github.com/rpggio/blueprint/internal/tenant"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const legacyState = `{"name":"Corner shop","industry":"retail","objects":[{"id":"o1","name":"Product"}]}`

const legacyChat = `[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]`

func setup(t *testing.T) (*kv.Store, *project.Service, *mocks.Verifier, tenant.Scope) {
	t.Helper()
	store, _ := testutil.NewStore(t, 0)
	ver := &mocks.Verifier{}
	scope, err := tenant.ForUser("alice")
	require.NoError(t, err)
	return store, project.NewService(store, nil, ver, nil), ver, scope
}

func seedLegacy(t *testing.T, store *kv.Store, cloudID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SetGlobal(ctx, migration.LegacyStateKey, []byte(legacyState)))
	require.NoError(t, store.SetGlobal(ctx, migration.LegacyChatKey, []byte(legacyChat)))
	if cloudID != "" {
		require.NoError(t, store.SetGlobal(ctx, migration.LegacyCloudIDKey, []byte(`"`+cloudID+`"`)))
	}
}

func TestEngine_MigratesOnce(t *testing.T) {
	ctx := context.Background()
	store, projects, ver, scope := setup(t)
	seedLegacy(t, store, "c1")
	ver.On("Verify", ctx, scope, "c1").Return(true)

	engine := migration.NewEngine(store, projects, nil, nil, migration.Options{})

	res, err := engine.Run(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, migration.OutcomeMigrated, res.Outcome)
	require.True(t, res.Linked)
	require.Equal(t, 2, res.Messages)

	list, err := projects.ListSummaries(ctx, scope)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Corner shop", list[0].Name)
	require.True(t, list[0].Legacy)
	require.Equal(t, "c1", list[0].CloudProjectID)

	env, err := projects.LoadState(ctx, scope, res.ProjectID)
	require.NoError(t, err)
	require.NotNil(t, env.State.Links)

	chat, err := projects.LoadChat(ctx, scope, res.ProjectID)
	require.NoError(t, err)
	require.Len(t, chat, 2)

	done, err := engine.Migrated(ctx)
	require.NoError(t, err)
	require.True(t, done)
	_, err = store.GetGlobal(ctx, migration.LegacyStateKey)
	require.ErrorIs(t, err, repository.ErrNotFound)

	again, err := engine.Run(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, migration.OutcomeSkipped, again.Outcome)

	list, err = projects.ListSummaries(ctx, scope)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestEngine_NothingToMigrate(t *testing.T) {
	ctx := context.Background()
	store, projects, _, scope := setup(t)

	engine := migration.NewEngine(store, projects, nil, nil, migration.Options{})
	res, err := engine.Run(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, migration.OutcomeNothingToMigrate, res.Outcome)

	done, err := engine.Migrated(ctx)
	require.NoError(t, err)
	require.True(t, done)
}

func TestEngine_InterruptedRunDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	store, projects, _, scope := setup(t)
	seedLegacy(t, store, "")

	// A project from an earlier run that stopped before writing the marker.
	_, err := projects.SaveState(ctx, scope, &project.Record{
		ID: "migrated", Name: "Corner shop", Objects: []project.Object{}, Links: []project.Link{},
	}, project.SaveOptions{Legacy: true})
	require.NoError(t, err)

	engine := migration.NewEngine(store, projects, nil, nil, migration.Options{KeepLegacyKeys: true})
	res, err := engine.Run(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, migration.OutcomeAlreadyMigrated, res.Outcome)
	require.Equal(t, "migrated", res.ProjectID)

	list, err := projects.ListSummaries(ctx, scope)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = store.GetGlobal(ctx, migration.LegacyStateKey)
	require.NoError(t, err, "legacy keys kept when configured")
}

func TestEngine_UnverifiedCloudIDDropped(t *testing.T) {
	ctx := context.Background()
	store, projects, ver, scope := setup(t)
	seedLegacy(t, store, "someone-elses")
	ver.On("Verify", ctx, scope, "someone-elses").Return(false)

	engine := migration.NewEngine(store, projects, nil, nil, migration.Options{})
	res, err := engine.Run(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, migration.OutcomeMigrated, res.Outcome)
	require.False(t, res.Linked)

	item, err := projects.Get(ctx, scope, res.ProjectID)
	require.NoError(t, err)
	require.Empty(t, item.CloudProjectID)
}

func TestEngine_CorruptLegacyStateFailsOnce(t *testing.T) {
	ctx := context.Background()
	store, projects, _, scope := setup(t)
	require.NoError(t, store.SetGlobal(ctx, migration.LegacyStateKey, []byte("{broken")))

	rec := &mocks.ActivityRecorder{}
	rec.On("Record", ctx, scope, activity.TypeMigrationFailed, "", mock.Anything).Return()

	engine := migration.NewEngine(store, projects, rec, nil, migration.Options{})
	res, err := engine.Run(ctx, scope)
	require.ErrorIs(t, err, migration.ErrMigrationFailed)
	require.Equal(t, migration.OutcomeFailed, res.Outcome)
	rec.AssertExpectations(t)

	again, err := engine.Run(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, migration.OutcomeSkipped, again.Outcome)

	list, err := projects.ListSummaries(ctx, scope)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestEngine_RequiresScope(t *testing.T) {
	store, projects, _, _ := setup(t)
	engine := migration.NewEngine(store, projects, nil, nil, migration.Options{})
	_, err := engine.Run(context.Background(), tenant.Scope{})
	require.ErrorIs(t, err, repository.ErrNoScope)
}
