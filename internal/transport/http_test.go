package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rpggio/blueprint/internal/domain/cloudsync"
	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *MemoryBackend) {
	t.Helper()
	backend := NewMemoryBackend()
	tokens := NewTokenTable()
	tokens.Add("alice-token", "alice")
	tokens.Add("bob-token", "bob")

	server := httptest.NewServer(NewServer(backend, AuthMiddleware(tokens), nil))
	t.Cleanup(server.Close)
	return server, backend
}

func do(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHTTPServer_PushAndPull(t *testing.T) {
	server, _ := newTestServer(t)

	batch := cloudsync.BatchSyncInput{
		Projects: []cloudsync.ProjectPayload{{ClientID: "p1", Name: "Shop", UpdatedAt: time.Now().UTC()}},
	}
	resp := do(t, http.MethodPost, server.URL+"/sync", "alice-token", batch)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result cloudsync.SyncResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.True(t, result.Success)
	require.Len(t, result.Results.Projects, 1)
	created := result.Results.Projects[0]
	require.NotEmpty(t, created.ID)
	require.Equal(t, "p1", created.ClientID)
	require.Equal(t, "created", created.Status)

	chat := cloudsync.BatchSyncInput{ChatMessages: []cloudsync.ChatBatch{{
		ProjectID: created.ID,
		Messages:  []project.ChatMessage{{Role: "user", Content: "hi"}},
	}}}
	resp = do(t, http.MethodPost, server.URL+"/sync", "alice-token", chat)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, server.URL+"/sync/full", "alice-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state cloudsync.FullState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	require.Len(t, state.Projects, 1)
	require.Equal(t, "alice", state.Projects[0].OwnerID)
	require.Len(t, state.Projects[0].ChatMessages, 1)

	resp = do(t, http.MethodGet, server.URL+"/sync/full", "bob-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state = cloudsync.FullState{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	require.Empty(t, state.Projects)
}

func TestHTTPServer_ForeignProjectRefused(t *testing.T) {
	server, backend := newTestServer(t)
	backend.Seed("alice", cloudsync.RemoteProject{ProjectPayload: cloudsync.ProjectPayload{ID: "c1", Name: "Alice's"}})

	resp := do(t, http.MethodPost, server.URL+"/sync", "bob-token", cloudsync.BatchSyncInput{
		Projects: []cloudsync.ProjectPayload{{ID: "c1", Name: "Overwritten"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result cloudsync.SyncResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.NotEmpty(t, result.Results.Projects[0].Error)

	stored, ok := backend.Project("c1")
	require.True(t, ok)
	require.Equal(t, "Alice's", stored.Name)

	resp = do(t, http.MethodGet, server.URL+"/projects/c1", "bob-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var owner cloudsync.ProjectOwner
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&owner))
	require.Equal(t, "alice", owner.OwnerID)

	resp = do(t, http.MethodGet, server.URL+"/projects/missing", "bob-token", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTPServer_Unauthorized(t *testing.T) {
	server, _ := newTestServer(t)

	resp := do(t, http.MethodGet, server.URL+"/sync/full", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, http.MethodGet, server.URL+"/sync/full", "wrong", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTPServer_Offline(t *testing.T) {
	server, backend := newTestServer(t)
	backend.SetOffline(true)

	resp := do(t, http.MethodGet, server.URL+"/sync/full", "alice-token", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHTTPServer_BadBody(t *testing.T) {
	server, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/sync", bytes.NewBufferString("{nope"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer alice-token")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTPServer_Health(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
