package cloudsync

import (
	"context"
	"time"

	"github.com/rpggio/blueprint/internal/domain/activity"
	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/rpggio/blueprint/internal/domain/settings"
	"github.com/rpggio/blueprint/internal/tenant"
)

// API is the remote sync endpoint.
type API interface {
	PushBatch(ctx context.Context, batch BatchSyncInput) (*SyncResult, error)
	FetchFullState(ctx context.Context) (*FullState, error)
}

// Auth exposes the authenticated identity. Token refresh is its concern.
type Auth interface {
	IsAuthenticated() bool
	CurrentIdentity() string
}

// Pusher uploads one batch on behalf of a scope.
type Pusher interface {
	PushBatch(ctx context.Context, scope tenant.Scope, batch BatchSyncInput) (*SyncResult, error)
}

// Store is the scoped key-value store the queue persists into.
type Store interface {
	Get(ctx context.Context, scope tenant.Scope, logical string) ([]byte, error)
	Set(ctx context.Context, scope tenant.Scope, logical string, value []byte) error
	Delete(ctx context.Context, scope tenant.Scope, logical string) error
}

// Projects is the slice of the project repository the client writes through.
type Projects interface {
	Get(ctx context.Context, scope tenant.Scope, id string) (*project.ListItem, error)
	LoadState(ctx context.Context, scope tenant.Scope, id string) (*project.Envelope, error)
	SaveState(ctx context.Context, scope tenant.Scope, rec *project.Record, opts project.SaveOptions) (*project.Record, error)
	LinkCloudProject(ctx context.Context, scope tenant.Scope, id, cloudID string) error
	FindByCloudID(ctx context.Context, scope tenant.Scope, cloudID string) (*project.ListItem, error)
	ReplaceChat(ctx context.Context, scope tenant.Scope, projectID string, msgs []project.ChatMessage) error
}

// Settings receives pulled preferences and archetypes.
type Settings interface {
	ApplyRemotePreferences(ctx context.Context, scope tenant.Scope, remote settings.Preferences) error
	ApplyRemoteArchetypes(ctx context.Context, scope tenant.Scope, remote []settings.Archetype) (int, error)
}

// Verifier confirms a remote project belongs to the scope's identity.
type Verifier interface {
	Verify(ctx context.Context, scope tenant.Scope, remoteID string) bool
}

// Requeuer puts a local record back on the queue.
type Requeuer interface {
	EnqueueProject(ctx context.Context, scope tenant.Scope, rec *project.Record, cloudID string) error
}

// StatusReporter records sync status changes that happen outside a flush.
type StatusReporter interface {
	ReportStatus(scope tenant.Scope, status Status, err error)
}

// ActivityRecorder writes advisory entries to the sync activity log.
type ActivityRecorder interface {
	Record(ctx context.Context, scope tenant.Scope, typ activity.Type, projectID, summary string)
}

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}
