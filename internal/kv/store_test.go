package kv_test

import (
	"context"
	"strings"
	"testing"

	"github.com/rpggio/blueprint/internal/kv"
	"github.com/rpggio/blueprint/internal/repository"
	"github.com/rpggio/blueprint/internal/sqlite"
	"github.com/rpggio/blueprint/internal/tenant"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, capacity int64) (*kv.Store, *sqlite.KVStore) {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	backend := sqlite.NewKVStore(db, capacity)
	return kv.New(backend, nil), backend
}

type evictFunc func(ctx context.Context, scope tenant.Scope) (int, error)

func (f evictFunc) EvictNonEssential(ctx context.Context, scope tenant.Scope) (int, error) {
	return f(ctx, scope)
}

func TestStore_ScopeIsolation(t *testing.T) {
	ctx := context.Background()
	store, backend := newStore(t, 0)
	alice, _ := tenant.ForUser("alice")
	bob, _ := tenant.ForUser("bob")

	require.NoError(t, store.Set(ctx, alice, kv.StateKey("p1"), []byte(`{"a":1}`)))

	_, err := store.Get(ctx, bob, kv.StateKey("p1"))
	require.ErrorIs(t, err, repository.ErrNotFound)

	raw, err := backend.Get(ctx, "u:alice:project:p1:state")
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(raw))

	keys, err := store.Keys(ctx, alice, kv.ProjectPrefix())
	require.NoError(t, err)
	require.Equal(t, []string{"project:p1:state"}, keys)

	keys, err = store.Keys(ctx, bob, kv.ProjectPrefix())
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestStore_RequiresScope(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t, 0)

	_, err := store.Get(ctx, tenant.Scope{}, kv.ProjectIndexKey)
	require.ErrorIs(t, err, repository.ErrNoScope)
	require.ErrorIs(t, store.Set(ctx, tenant.Scope{}, kv.ProjectIndexKey, nil), repository.ErrNoScope)
	require.ErrorIs(t, store.Delete(ctx, tenant.Scope{}, kv.ProjectIndexKey), repository.ErrNoScope)
	_, err = store.Keys(ctx, tenant.Scope{}, "")
	require.ErrorIs(t, err, repository.ErrNoScope)
}

func TestStore_QuotaEvictsAndRetriesOnce(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t, 200)
	scope, _ := tenant.ForUser("alice")

	require.NoError(t, store.Set(ctx, scope, kv.ChatKey("p1"), []byte(strings.Repeat("c", 120))))

	calls := 0
	store.AddEvictor(evictFunc(func(ctx context.Context, s tenant.Scope) (int, error) {
		calls++
		require.Equal(t, scope, s)
		return 1, store.Delete(ctx, s, kv.ChatKey("p1"))
	}))

	require.NoError(t, store.Set(ctx, scope, kv.StateKey("p1"), []byte(strings.Repeat("s", 100))))
	require.Equal(t, 1, calls)

	_, err := store.Get(ctx, scope, kv.ChatKey("p1"))
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_QuotaSecondFailureReported(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t, 50)
	scope, _ := tenant.ForUser("alice")

	calls := 0
	store.AddEvictor(evictFunc(func(context.Context, tenant.Scope) (int, error) {
		calls++
		return 0, nil
	}))

	err := store.Set(ctx, scope, kv.StateKey("p1"), []byte(strings.Repeat("s", 100)))
	require.ErrorIs(t, err, repository.ErrQuotaExceeded)
	require.Equal(t, 1, calls)
}

func TestStore_GlobalKeys(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t, 0)

	require.NoError(t, store.SetGlobal(ctx, "multi-project-migrated", []byte("true")))
	v, err := store.GetGlobal(ctx, "multi-project-migrated")
	require.NoError(t, err)
	require.Equal(t, "true", string(v))

	require.ErrorIs(t, store.SetGlobal(ctx, "u:alice:projects:index", nil), kv.ErrScopedGlobalKey)
	require.NoError(t, store.DeleteGlobal(ctx, "multi-project-migrated"))
}

func TestStore_JSON(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t, 0)
	scope, _ := tenant.Anonymous("sess1")

	require.NoError(t, store.SetJSON(ctx, scope, kv.PreferencesKey, map[string]string{"theme": "dark"}))
	var prefs map[string]string
	require.NoError(t, store.GetJSON(ctx, scope, kv.PreferencesKey, &prefs))
	require.Equal(t, "dark", prefs["theme"])

	require.True(t, kv.IsChatKey(kv.ChatKey("p1")))
	require.False(t, kv.IsChatKey(kv.StateKey("p1")))
}
