package mocks

import (
	"context"

	"github.com/rpggio/blueprint/internal/domain/activity"
	"github.com/rpggio/blueprint/internal/domain/cloudsync"
	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/rpggio/blueprint/internal/domain/settings"
	"github.com/rpggio/blueprint/internal/tenant"
	"github.com/stretchr/testify/mock"
)

// ActivityRepository is a mock for repository.ActivityRepository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, scopeKey string, entry *activity.Entry) error {
	args := m.Called(ctx, scopeKey, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, scopeKey string, opts activity.ListOptions) ([]activity.Entry, error) {
	args := m.Called(ctx, scopeKey, opts)
	if list, ok := args.Get(0).([]activity.Entry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// ActivityRecorder is a mock for the advisory activity recorder.
type ActivityRecorder struct {
	mock.Mock
}

func (m *ActivityRecorder) Record(ctx context.Context, scope tenant.Scope, typ activity.Type, projectID, summary string) {
	m.Called(ctx, scope, typ, projectID, summary)
}

// Enqueuer is a mock for the sync queue's enqueue side.
type Enqueuer struct {
	mock.Mock
}

func (m *Enqueuer) EnqueueProject(ctx context.Context, scope tenant.Scope, rec *project.Record, cloudID string) error {
	args := m.Called(ctx, scope, rec, cloudID)
	return args.Error(0)
}

func (m *Enqueuer) EnqueueChat(ctx context.Context, scope tenant.Scope, projectID, cloudID string, msgs []project.ChatMessage) error {
	args := m.Called(ctx, scope, projectID, cloudID, msgs)
	return args.Error(0)
}

func (m *Enqueuer) EnqueuePreferences(ctx context.Context, scope tenant.Scope, prefs settings.Preferences) error {
	args := m.Called(ctx, scope, prefs)
	return args.Error(0)
}

func (m *Enqueuer) EnqueueArchetypes(ctx context.Context, scope tenant.Scope, archetypes []settings.Archetype) error {
	args := m.Called(ctx, scope, archetypes)
	return args.Error(0)
}

// Verifier is a mock for the ownership verifier.
type Verifier struct {
	mock.Mock
}

func (m *Verifier) Verify(ctx context.Context, scope tenant.Scope, remoteID string) bool {
	args := m.Called(ctx, scope, remoteID)
	return args.Bool(0)
}

// OwnerFetcher is a mock for the remote owner lookup.
type OwnerFetcher struct {
	mock.Mock
}

func (m *OwnerFetcher) FetchProjectOwner(ctx context.Context, remoteID string) (string, error) {
	args := m.Called(ctx, remoteID)
	return args.String(0), args.Error(1)
}

// SyncAPI is a mock for cloudsync.API.
type SyncAPI struct {
	mock.Mock
}

func (m *SyncAPI) PushBatch(ctx context.Context, batch cloudsync.BatchSyncInput) (*cloudsync.SyncResult, error) {
	args := m.Called(ctx, batch)
	if res, ok := args.Get(0).(*cloudsync.SyncResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SyncAPI) FetchFullState(ctx context.Context) (*cloudsync.FullState, error) {
	args := m.Called(ctx)
	if state, ok := args.Get(0).(*cloudsync.FullState); ok {
		return state, args.Error(1)
	}
	return nil, args.Error(1)
}

// Pusher is a mock for cloudsync.Pusher.
type Pusher struct {
	mock.Mock
}

func (m *Pusher) PushBatch(ctx context.Context, scope tenant.Scope, batch cloudsync.BatchSyncInput) (*cloudsync.SyncResult, error) {
	args := m.Called(ctx, scope, batch)
	if res, ok := args.Get(0).(*cloudsync.SyncResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

// Auth is a mock for cloudsync.Auth.
type Auth struct {
	mock.Mock
}

func (m *Auth) IsAuthenticated() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *Auth) CurrentIdentity() string {
	args := m.Called()
	return args.String(0)
}

// Puller is a mock for the session's initial pull.
type Puller struct {
	mock.Mock
}

func (m *Puller) PullFull(ctx context.Context, scope tenant.Scope) (*cloudsync.PullResult, error) {
	args := m.Called(ctx, scope)
	if res, ok := args.Get(0).(*cloudsync.PullResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}
