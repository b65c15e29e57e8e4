package app_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rpggio/blueprint/internal/app"
	"github.com/rpggio/blueprint/internal/config"
	"github.com/rpggio/blueprint/internal/domain/activity"
	"github.com/rpggio/blueprint/internal/domain/cloudsync"
	"github.com/rpggio/blueprint/internal/domain/migration"
	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/rpggio/blueprint/internal/testserver"
	"github.com/rpggio/blueprint/internal/testutil"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type device struct {
	*app.App
	sched *testutil.Scheduler
	clock *testutil.Clock
}

func newDevice(t *testing.T, ts *testserver.TestServer, dbPath, userID, token string) *device {
	t.Helper()

	cfg := config.Default()
	cfg.DB.Path = dbPath
	cfg.Remote.BaseURL = ts.URL()
	cfg.Remote.Timeout = 5 * time.Second
	cfg.Auth.UserID = userID
	cfg.Auth.Token = token
	cfg.Sync.Debounce = time.Second
	cfg.Sync.RetryInterval = 30 * time.Second
	cfg.Store.QuotaBytes = 0

	d := &device{sched: testutil.NewScheduler(), clock: testutil.NewClock(base)}
	a, err := app.New(cfg, nil, app.WithScheduler(d.sched), app.WithClock(d.clock))
	require.NoError(t, err)
	t.Cleanup(func() { a.DB.Close() })
	d.App = a
	return d
}

func TestApp_OfflineEditsSyncWhenBackOnline(t *testing.T) {
	ctx := context.Background()
	ts := testserver.New(t)
	ts.AddUser("alice-token", "alice")

	d := newDevice(t, ts, ":memory:", "alice", "alice-token")
	login, err := d.Start(ctx)
	require.NoError(t, err)
	require.Empty(t, login.PullError)
	scope := d.Sessions.Scope()
	require.Equal(t, "alice", scope.UserID())

	ts.Backend.SetOffline(true)
	rec, err := d.Projects.CreateProject(ctx, scope, project.CreateRequest{Name: "Shop"})
	require.NoError(t, err)
	_, err = d.Projects.AppendChat(ctx, scope, rec.ID, project.ChatMessage{Role: "user", Content: "add a checkout"})
	require.NoError(t, err)

	d.sched.Advance(time.Second)
	require.Equal(t, cloudsync.StatusOffline, d.Queue.Status(scope).Status)
	pending, err := d.Queue.HasPendingSync(ctx, scope)
	require.NoError(t, err)
	require.True(t, pending)

	ts.Backend.SetOffline(false)
	d.sched.Advance(30 * time.Second)
	require.Equal(t, cloudsync.StatusSynced, d.Queue.Status(scope).Status)

	item, err := d.Projects.Get(ctx, scope, rec.ID)
	require.NoError(t, err)
	require.NotEmpty(t, item.CloudProjectID)

	remote, ok := ts.Backend.Project(item.CloudProjectID)
	require.True(t, ok)
	require.Equal(t, "Shop", remote.Name)
	require.Equal(t, "alice", remote.OwnerID)
	require.Empty(t, remote.ChatMessages, "chat waits for the project link")

	d.sched.Advance(30 * time.Second)
	remote, _ = ts.Backend.Project(item.CloudProjectID)
	require.Len(t, remote.ChatMessages, 1)
	require.Equal(t, "add a checkout", remote.ChatMessages[0].Content)

	pending, err = d.Queue.HasPendingSync(ctx, scope)
	require.NoError(t, err)
	require.False(t, pending)

	last, err := d.Sync.LastSynced(ctx, scope)
	require.NoError(t, err)
	require.False(t, last.IsZero())
}

func TestApp_NewerRemoteEditReachesOtherDevice(t *testing.T) {
	ctx := context.Background()
	ts := testserver.New(t)
	ts.AddUser("alice-token", "alice")

	laptop := newDevice(t, ts, ":memory:", "alice", "alice-token")
	_, err := laptop.Start(ctx)
	require.NoError(t, err)
	scope := laptop.Sessions.Scope()

	rec, err := laptop.Projects.CreateProject(ctx, scope, project.CreateRequest{Name: "Shop"})
	require.NoError(t, err)
	laptop.sched.Advance(time.Second)
	item, err := laptop.Projects.Get(ctx, scope, rec.ID)
	require.NoError(t, err)
	cloudID := item.CloudProjectID
	require.NotEmpty(t, cloudID)

	phone := newDevice(t, ts, ":memory:", "alice", "alice-token")
	login, err := phone.Start(ctx)
	require.NoError(t, err)
	require.NotNil(t, login.Pull)
	require.Equal(t, 1, login.Pull.Applied)

	onPhone, err := phone.Projects.FindByCloudID(ctx, scope, cloudID)
	require.NoError(t, err)
	require.Equal(t, "Shop", onPhone.Name)

	phone.clock.Set(base.Add(time.Hour))
	renamed := "Corner shop"
	_, err = phone.Projects.UpdateMetadata(ctx, scope, onPhone.ID, project.MetadataUpdate{Name: &renamed})
	require.NoError(t, err)
	phone.sched.Advance(time.Second)

	remote, ok := ts.Backend.Project(cloudID)
	require.True(t, ok)
	require.Equal(t, "Corner shop", remote.Name)

	res, err := laptop.Sync.PullFull(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, 1, res.Applied)

	env, err := laptop.Projects.LoadState(ctx, scope, rec.ID)
	require.NoError(t, err)
	require.Equal(t, "Corner shop", env.State.Name)
	require.True(t, env.UpdatedAt.Equal(base.Add(time.Hour)))

	res, err = laptop.Sync.PullFull(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, 0, res.Applied)
	require.Equal(t, 1, res.Unchanged)
}

func TestApp_UsersNeverSeeEachOthersProjects(t *testing.T) {
	ctx := context.Background()
	ts := testserver.New(t)
	ts.AddUser("alice-token", "alice")
	ts.AddUser("bob-token", "bob")

	d := newDevice(t, ts, ":memory:", "alice", "alice-token")
	_, err := d.Start(ctx)
	require.NoError(t, err)
	alice := d.Sessions.Scope()

	_, err = d.Projects.CreateProject(ctx, alice, project.CreateRequest{Name: "Alice's shop"})
	require.NoError(t, err)

	logout, err := d.SignOut(ctx)
	require.NoError(t, err)
	require.True(t, logout.Flushed)
	require.True(t, d.Sessions.Scope().IsAnonymous())

	_, err = d.SignIn(ctx, "bob", "bob-token")
	require.NoError(t, err)
	bob := d.Sessions.Scope()
	require.Equal(t, "bob", bob.UserID())

	list, err := d.Projects.ListSummaries(ctx, bob)
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = d.Projects.CreateProject(ctx, bob, project.CreateRequest{Name: "Bob's bakery"})
	require.NoError(t, err)
	d.sched.Advance(time.Second)

	bobRemote, err := ts.Backend.FullState(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobRemote.Projects, 1)
	require.Equal(t, "Bob's bakery", bobRemote.Projects[0].Name)

	aliceRemote, err := ts.Backend.FullState(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, aliceRemote.Projects, 1)
	require.Equal(t, "Alice's shop", aliceRemote.Projects[0].Name)

	_, err = d.SignIn(ctx, "alice", "alice-token")
	require.NoError(t, err)
	list, err = d.Projects.ListSummaries(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Alice's shop", list[0].Name)
}

func TestApp_AnonymousWorkSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	ts := testserver.New(t)
	dbPath := filepath.Join(t.TempDir(), "data", "blueprint.db")

	first := newDevice(t, ts, dbPath, "", "")
	_, err := first.Start(ctx)
	require.NoError(t, err)
	scope := first.Sessions.Scope()
	require.True(t, scope.IsAnonymous())

	_, err = first.Projects.CreateProject(ctx, scope, project.CreateRequest{Name: "Draft"})
	require.NoError(t, err)
	require.Zero(t, first.sched.Pending(), "anonymous changes are never queued")
	require.NoError(t, first.Close(ctx))

	second := newDevice(t, ts, dbPath, "", "")
	_, err = second.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, scope, second.Sessions.Scope())

	list, err := second.Projects.ListSummaries(ctx, scope)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Draft", list[0].Name)
}

func TestApp_LegacyProjectMigratedWithoutForeignLink(t *testing.T) {
	ctx := context.Background()
	ts := testserver.New(t)
	ts.AddUser("alice-token", "alice")
	ts.Backend.Seed("mallory", cloudsync.RemoteProject{ProjectPayload: cloudsync.ProjectPayload{ID: "c-foreign", Name: "Mallory's"}})

	d := newDevice(t, ts, ":memory:", "alice", "alice-token")
	require.NoError(t, d.Store.SetGlobal(ctx, migration.LegacyStateKey, []byte(`{"name":"Old project","objects":[]}`)))
	require.NoError(t, d.Store.SetGlobal(ctx, migration.LegacyCloudIDKey, []byte(`"c-foreign"`)))

	login, err := d.Start(ctx)
	require.NoError(t, err)
	require.NotNil(t, login.Migration)
	require.Equal(t, migration.OutcomeMigrated, login.Migration.Outcome)
	require.False(t, login.Migration.Linked)

	scope := d.Sessions.Scope()
	rejected := activity.TypeOwnershipRejected
	entries, err := d.Activity.GetRecentActivity(ctx, scope, activity.ListOptions{Type: &rejected})
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	d.sched.Advance(time.Second)

	item, err := d.Projects.Get(ctx, scope, login.Migration.ProjectID)
	require.NoError(t, err)
	require.True(t, item.Legacy)
	require.NotEmpty(t, item.CloudProjectID)
	require.NotEqual(t, "c-foreign", item.CloudProjectID)

	foreign, ok := ts.Backend.Project("c-foreign")
	require.True(t, ok)
	require.Equal(t, "Mallory's", foreign.Name)
}
