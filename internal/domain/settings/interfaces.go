package settings

import (
	"context"

	"github.com/rpggio/blueprint/internal/tenant"
)

// Store is the scoped key-value store settings live in.
type Store interface {
	Get(ctx context.Context, scope tenant.Scope, logical string) ([]byte, error)
	Set(ctx context.Context, scope tenant.Scope, logical string, value []byte) error
}

// Enqueuer receives local settings changes for upload.
type Enqueuer interface {
	EnqueuePreferences(ctx context.Context, scope tenant.Scope, prefs Preferences) error
	EnqueueArchetypes(ctx context.Context, scope tenant.Scope, archetypes []Archetype) error
}
