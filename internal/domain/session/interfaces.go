package session

import (
	"context"

	"github.com/rpggio/blueprint/internal/domain/cloudsync"
	"github.com/rpggio/blueprint/internal/domain/migration"
	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/rpggio/blueprint/internal/tenant"
)

// Projects provides project loading and saving.
type Projects interface {
	Get(ctx context.Context, scope tenant.Scope, id string) (*project.ListItem, error)
	LoadState(ctx context.Context, scope tenant.Scope, id string) (*project.Envelope, error)
	SaveState(ctx context.Context, scope tenant.Scope, rec *project.Record, opts project.SaveOptions) (*project.Record, error)
}

// Queue is the sync queue lifecycle a session drives.
type Queue interface {
	Restore(ctx context.Context, scope tenant.Scope) error
	Drain(ctx context.Context, scope tenant.Scope) error
	Drop(scope tenant.Scope)
	HasPendingSync(ctx context.Context, scope tenant.Scope) (bool, error)
}

// Puller reconciles remote state on login.
type Puller interface {
	PullFull(ctx context.Context, scope tenant.Scope) (*cloudsync.PullResult, error)
}

// Migrator runs the legacy migration.
type Migrator interface {
	Run(ctx context.Context, scope tenant.Scope) (*migration.Result, error)
}

// Store holds the active-project pointer.
type Store interface {
	Get(ctx context.Context, scope tenant.Scope, logical string) ([]byte, error)
	Set(ctx context.Context, scope tenant.Scope, logical string, value []byte) error
	Delete(ctx context.Context, scope tenant.Scope, logical string) error
}

// Forgetter drops per-scope caches on logout.
type Forgetter interface {
	Forget(scope tenant.Scope)
}
