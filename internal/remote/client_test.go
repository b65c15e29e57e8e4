package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rpggio/blueprint/internal/auth"
	"github.com/rpggio/blueprint/internal/domain/cloudsync"
	"github.com/stretchr/testify/require"
)

type refreshingTokens struct {
	token     string
	refreshes int
}

func (r *refreshingTokens) BearerToken(context.Context) (string, error) { return r.token, nil }

func (r *refreshingTokens) Refresh(context.Context) error {
	r.refreshes++
	r.token = "fresh"
	return nil
}

func TestClient_PushBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/sync", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var batch cloudsync.BatchSyncInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		require.Len(t, batch.Projects, 1)

		_ = json.NewEncoder(w).Encode(cloudsync.SyncResult{
			Success:  true,
			SyncedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Results: cloudsync.SyncResults{Projects: []cloudsync.ProjectResult{
				{ID: "c1", ClientID: batch.Projects[0].ClientID, Status: "created"},
			}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, auth.NewStatic("alice", "tok"), time.Second)
	res, err := client.PushBatch(context.Background(), cloudsync.BatchSyncInput{
		Projects: []cloudsync.ProjectPayload{{ClientID: "p1", Name: "Shop"}},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "c1", res.Results.Projects[0].ID)
	require.Equal(t, "p1", res.Results.Projects[0].ClientID)
}

func TestClient_ErrorClassification(t *testing.T) {
	status := http.StatusServiceUnavailable
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", status)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, auth.NewStatic("alice", "tok"), time.Second)

	_, err := client.FetchFullState(context.Background())
	require.ErrorIs(t, err, cloudsync.ErrOffline)

	status = http.StatusBadRequest
	_, err = client.FetchFullState(context.Background())
	require.Error(t, err)
	require.False(t, errors.Is(err, cloudsync.ErrOffline))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadRequest, statusErr.StatusCode)

	status = http.StatusInternalServerError
	_, err = client.FetchFullState(context.Background())
	require.ErrorIs(t, err, cloudsync.ErrOffline)

	status = http.StatusTooManyRequests
	_, err = client.FetchFullState(context.Background())
	require.ErrorIs(t, err, cloudsync.ErrOffline)

	status = http.StatusUnauthorized
	_, err = client.FetchFullState(context.Background())
	require.ErrorIs(t, err, cloudsync.ErrNotAuthenticated)
	require.False(t, errors.Is(err, cloudsync.ErrOffline))
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, auth.NewStatic("alice", "tok"), time.Second)
	_, err := client.PushBatch(context.Background(), cloudsync.BatchSyncInput{})
	require.ErrorIs(t, err, cloudsync.ErrOffline)
}

func TestClient_NoToken(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", auth.NewStatic("", ""), time.Second)
	_, err := client.FetchFullState(context.Background())
	require.ErrorIs(t, err, cloudsync.ErrNotAuthenticated)
}

func TestClient_FetchProjectOwner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/projects/c1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(cloudsync.ProjectOwner{ID: "c1", OwnerID: "alice"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, auth.NewStatic("alice", "tok"), time.Second)
	owner, err := client.FetchProjectOwner(context.Background(), "c1")
	require.NoError(t, err)
	require.Equal(t, "alice", owner)

	_, err = client.FetchProjectOwner(context.Background(), "c2")
	require.Error(t, err)
}

func TestClient_RefreshesOnUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			http.Error(w, "expired", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(cloudsync.FullState{})
	}))
	defer srv.Close()

	tokens := &refreshingTokens{token: "stale"}
	client := NewClient(srv.URL, tokens, time.Second)
	_, err := client.FetchFullState(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, tokens.refreshes)
}
