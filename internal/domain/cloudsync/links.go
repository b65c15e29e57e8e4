package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"maps"

	"github.com/rpggio/blueprint/internal/kv"
	"github.com/rpggio/blueprint/internal/repository"
	"github.com/rpggio/blueprint/internal/tenant"
)

// maxLinkAttempts bounds how many pushes hold a project back while the
// remote id created for it stays unverified. After that the project is
// pushed without an id again.
const maxLinkAttempts = 5

// pendingLink is a remote id the remote created for a local project whose
// ownership could not be confirmed yet. Pushing the project without that id
// would make the remote create it a second time.
type pendingLink struct {
	RemoteID string `json:"remoteId"`
	Attempts int    `json:"attempts"`
}

type pendingLinks map[string]pendingLink

func (c *Client) loadPendingLinks(ctx context.Context, scope tenant.Scope) pendingLinks {
	links := pendingLinks{}
	if c.store == nil {
		return links
	}
	data, err := c.store.Get(ctx, scope, kv.PendingLinksKey)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			c.logger.Warn("pending links not readable", "scope", scope.String(), "error", err)
		}
		return links
	}
	if err := json.Unmarshal(data, &links); err != nil {
		c.logger.Warn("discarding unreadable pending links", "scope", scope.String(), "error", err)
		return pendingLinks{}
	}
	return links
}

// updatePendingLinks applies fn to the stored links of scope.
func (c *Client) updatePendingLinks(ctx context.Context, scope tenant.Scope, fn func(pendingLinks)) {
	if c.store == nil {
		return
	}
	c.linksMu.Lock()
	defer c.linksMu.Unlock()

	links := c.loadPendingLinks(ctx, scope)
	before := maps.Clone(links)
	fn(links)
	if maps.Equal(before, links) {
		return
	}

	var err error
	if len(links) == 0 {
		err = c.store.Delete(ctx, scope, kv.PendingLinksKey)
	} else {
		var data []byte
		if data, err = json.Marshal(links); err == nil {
			err = c.store.Set(ctx, scope, kv.PendingLinksKey, data)
		}
	}
	if err != nil {
		c.logger.Warn("pending links not stored", "scope", scope.String(), "error", err)
	}
}

func (c *Client) forgetPendingLinks(ctx context.Context, scope tenant.Scope, localIDs ...string) {
	if len(localIDs) == 0 {
		return
	}
	c.updatePendingLinks(ctx, scope, func(links pendingLinks) {
		for _, id := range localIDs {
			delete(links, id)
		}
	})
}

// resolvePendingLink tries to link localID to the remote id recorded for it.
// It reports the linked id, or whether the project must be held back.
func (c *Client) resolvePendingLink(ctx context.Context, scope tenant.Scope, localID string, link pendingLink) (linked string, hold bool) {
	if err := c.projects.LinkCloudProject(ctx, scope, localID, link.RemoteID); err == nil {
		c.forgetPendingLinks(ctx, scope, localID)
		return link.RemoteID, false
	}

	link.Attempts++
	if link.Attempts >= maxLinkAttempts {
		c.logger.Warn("giving up on unverified remote project", "project_id", localID, "remote_id", link.RemoteID)
		c.forgetPendingLinks(ctx, scope, localID)
		return "", false
	}
	c.updatePendingLinks(ctx, scope, func(links pendingLinks) {
		links[localID] = link
	})
	return "", true
}
