package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `blueprint keeps business-app blueprints (projects) on this device and syncs them to the cloud.

Core concepts:
- Project: objects, links, integrations and AI requirements for one app idea, plus a chat log.
- Scope: whose data you see. Signed-in users see only their own projects; signed-out work is kept locally and never uploaded.
- Sync: edits are saved locally first and uploaded after a short pause. Offline edits wait and retry.

Default workflow:
1) Orient: list_projects, then switch_project to make one active.
2) Edit: update_project or append_chat. Changes are queued for upload automatically.
3) Check: sync_status shows whether anything is still waiting. sync_now uploads immediately.
4) pull fetches the cloud copy; a cloud project only replaces the local one if it is newer.

Docs:
- blueprint://docs/sync (how conflicts and offline edits are handled)
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "blueprint://docs/sync",
		Name:        "sync",
		Title:       "Sync behaviour",
		Description: "Offline queueing, conflict resolution and account isolation.",
		Content: `# Sync behaviour

## Offline edits

Every save is written locally before anything else happens. The change is
queued and uploaded after a short debounce. If the upload fails because the
network or the server is unavailable, the queue keeps the batch and retries
later. Edits made while a batch is being retried are never overwritten by it.

## Conflicts

When the cloud copy of a project is pulled, it replaces the local copy only
if its timestamp is strictly newer. A newer local copy is kept and uploaded
again. Equal timestamps mean nothing changed.

## Accounts

Each account has its own local data. Signing in as someone else never shows
the previous account's projects, and a project id from the cloud is only
linked after the server confirms it belongs to the signed-in account.

Work done while signed out stays on this device.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
