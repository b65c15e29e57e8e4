package project

import (
	"context"
	"time"

	"github.com/rpggio/blueprint/internal/tenant"
)

// Store is the scoped key-value store project data lives in.
type Store interface {
	Get(ctx context.Context, scope tenant.Scope, logical string) ([]byte, error)
	Set(ctx context.Context, scope tenant.Scope, logical string, value []byte) error
	Delete(ctx context.Context, scope tenant.Scope, logical string) error
	Keys(ctx context.Context, scope tenant.Scope, prefix string) ([]string, error)
}

// Enqueuer receives normalized local changes for upload.
type Enqueuer interface {
	EnqueueProject(ctx context.Context, scope tenant.Scope, rec *Record, cloudID string) error
	EnqueueChat(ctx context.Context, scope tenant.Scope, projectID, cloudID string, msgs []ChatMessage) error
}

// Verifier confirms a remote project belongs to the scope's identity.
type Verifier interface {
	Verify(ctx context.Context, scope tenant.Scope, remoteID string) bool
}

// Clock supplies save timestamps.
type Clock interface {
	Now() time.Time
}
