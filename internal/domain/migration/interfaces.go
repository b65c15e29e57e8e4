package migration

import (
	"context"

	"github.com/rpggio/blueprint/internal/domain/activity"
	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/rpggio/blueprint/internal/tenant"
)

// GlobalStore reads and writes install-wide keys outside any tenant scope.
type GlobalStore interface {
	GetGlobal(ctx context.Context, key string) ([]byte, error)
	SetGlobal(ctx context.Context, key string, value []byte) error
	DeleteGlobal(ctx context.Context, key string) error
}

// Projects is the project repository the migrated record is created through.
type Projects interface {
	ListSummaries(ctx context.Context, scope tenant.Scope) ([]project.ListItem, error)
	SaveState(ctx context.Context, scope tenant.Scope, rec *project.Record, opts project.SaveOptions) (*project.Record, error)
	ReplaceChat(ctx context.Context, scope tenant.Scope, projectID string, msgs []project.ChatMessage) error
	LinkCloudProject(ctx context.Context, scope tenant.Scope, id, cloudID string) error
}

// ActivityRecorder writes advisory entries to the sync activity log.
type ActivityRecorder interface {
	Record(ctx context.Context, scope tenant.Scope, typ activity.Type, projectID, summary string)
}
