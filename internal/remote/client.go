// Package remote is the HTTP client for the sync API:
//
//	POST /sync           push a batch
//	GET  /sync/full      pull the full state
//	GET  /projects/{id}  look up a project's owner
//
// Transport failures and temporary server errors wrap cloudsync.ErrOffline
// so the queue can tell "offline" from "error".
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rpggio/blueprint/internal/domain/cloudsync"
)

const defaultTimeout = 30 * time.Second

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	BearerToken(ctx context.Context) (string, error)
}

// Refresher is implemented by token sources that can renew an expired token.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: status=%d, body=%s", e.StatusCode, e.Body)
}

// Is makes temporary server failures match cloudsync.ErrOffline and a
// rejected token match cloudsync.ErrNotAuthenticated.
func (e *StatusError) Is(target error) bool {
	switch target {
	case cloudsync.ErrOffline:
		return e.Temporary()
	case cloudsync.ErrNotAuthenticated:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// Temporary reports whether retrying later may succeed: 429 and any 5xx.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Client talks to the remote sync API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// NewClient creates a client for baseURL. timeout <= 0 uses 30 seconds.
func NewClient(baseURL string, tokens TokenSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tokens: tokens,
	}
}

// PushBatch sends a batch to POST /sync.
func (c *Client) PushBatch(ctx context.Context, batch cloudsync.BatchSyncInput) (*cloudsync.SyncResult, error) {
	var result cloudsync.SyncResult
	if err := c.call(ctx, http.MethodPost, "/sync", batch, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchFullState reads GET /sync/full.
func (c *Client) FetchFullState(ctx context.Context) (*cloudsync.FullState, error) {
	var state cloudsync.FullState
	if err := c.call(ctx, http.MethodGet, "/sync/full", nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// FetchProjectOwner reads the owner of a remote project.
func (c *Client) FetchProjectOwner(ctx context.Context, remoteID string) (string, error) {
	var owner cloudsync.ProjectOwner
	if err := c.call(ctx, http.MethodGet, "/projects/"+url.PathEscape(remoteID), nil, &owner); err != nil {
		return "", err
	}
	if owner.ID != remoteID {
		return "", fmt.Errorf("owner lookup returned project %q for %q", owner.ID, remoteID)
	}
	return owner.OwnerID, nil
}

// call performs a request, refreshing the token and retrying once on 401.
func (c *Client) call(ctx context.Context, method, path string, body, target any) error {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		if r, ok := c.tokens.(Refresher); ok {
			resp.Body.Close()
			if err := r.Refresh(ctx); err != nil {
				return fmt.Errorf("refreshing token: %w", err)
			}
			if resp, err = c.doRequest(ctx, method, path, body); err != nil {
				return err
			}
		}
	}
	return decodeResponse(resp, target)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		token, err := c.tokens.BearerToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", cloudsync.ErrNotAuthenticated, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", cloudsync.ErrOffline, err)
	}
	return resp, nil
}

// decodeResponse decodes the JSON response into target
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
