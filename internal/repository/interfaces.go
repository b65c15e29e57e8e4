package repository

import (
	"context"

	"github.com/rpggio/blueprint/internal/domain/activity"
)

// KeyValueRepository is the durable byte store backing the scoped store.
// Keys are physical keys; scoping happens one layer up.
type KeyValueRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// ActivityRepository manages sync activity log persistence
type ActivityRepository interface {
	Log(ctx context.Context, scopeKey string, entry *activity.Entry) error
	List(ctx context.Context, scopeKey string, opts activity.ListOptions) ([]activity.Entry, error)
}
