package sqlite

import (
	"context"
	"strings"
	"testing"

	"github.com/rpggio/blueprint/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestKVStore_SetGetDelete(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	store := NewKVStore(db, 0)

	_, err := store.Get(ctx, "u:alice:projects:index")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, store.Set(ctx, "u:alice:projects:index", []byte(`[]`)))
	require.NoError(t, store.Set(ctx, "u:alice:projects:index", []byte(`[{"id":"p1"}]`)))

	value, err := store.Get(ctx, "u:alice:projects:index")
	require.NoError(t, err)
	require.Equal(t, `[{"id":"p1"}]`, string(value))

	require.NoError(t, store.Delete(ctx, "u:alice:projects:index"))
	require.NoError(t, store.Delete(ctx, "u:alice:projects:index"))
	_, err = store.Get(ctx, "u:alice:projects:index")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestKVStore_KeysByPrefix(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	store := NewKVStore(db, 0)

	for _, key := range []string{
		"u:a_b:project:1:state",
		"u:a_b:project:1:chat",
		"u:aXb:project:2:state",
		"u:a_bc:project:3:state",
	} {
		require.NoError(t, store.Set(ctx, key, []byte("{}")))
	}

	keys, err := store.Keys(ctx, "u:a_b:")
	require.NoError(t, err)
	require.Equal(t, []string{"u:a_b:project:1:chat", "u:a_b:project:1:state"}, keys)
}

func TestKVStore_Quota(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	store := NewKVStore(db, 64)

	require.NoError(t, store.Set(ctx, "k1", []byte(strings.Repeat("a", 30))))
	err := store.Set(ctx, "k2", []byte(strings.Repeat("b", 40)))
	require.ErrorIs(t, err, repository.ErrQuotaExceeded)

	// Replacing a key only counts the new value.
	require.NoError(t, store.Set(ctx, "k1", []byte(strings.Repeat("c", 60))))

	used, err := store.Usage(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(62), used)

	require.NoError(t, store.Delete(ctx, "k1"))
	require.NoError(t, store.Set(ctx, "k2", []byte(strings.Repeat("b", 40))))
}
