package mcp

import (
	"context"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/blueprint/internal/domain/activity"
	"github.com/rpggio/blueprint/internal/domain/cloudsync"
	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/rpggio/blueprint/internal/domain/session"
	"github.com/rpggio/blueprint/internal/tenant"
)

type emptyArgs struct{}

type createProjectArgs struct {
	Name     string `json:"name" jsonschema:"project display name"`
	Industry string `json:"industry,omitempty" jsonschema:"industry the app serves"`
	UseCase  string `json:"use_case,omitempty" jsonschema:"what the app is for"`
}

type getProjectArgs struct {
	ID          string `json:"id,omitempty" jsonschema:"project id; omit for the active project"`
	IncludeChat bool   `json:"include_chat,omitempty" jsonschema:"include the chat log"`
}

type projectIDArgs struct {
	ID string `json:"id" jsonschema:"project id"`
}

type updateProjectArgs struct {
	ID       string  `json:"id" jsonschema:"project id"`
	Name     *string `json:"name,omitempty" jsonschema:"new display name"`
	Industry *string `json:"industry,omitempty" jsonschema:"new industry"`
	UseCase  *string `json:"use_case,omitempty" jsonschema:"new use case"`
	Status   *string `json:"status,omitempty" jsonschema:"draft, active or archived"`
}

type appendChatArgs struct {
	ProjectID string `json:"project_id,omitempty" jsonschema:"project id; omit for the active project"`
	Role      string `json:"role" jsonschema:"user or assistant"`
	Content   string `json:"content" jsonschema:"message text"`
}

type activityArgs struct {
	ProjectID string `json:"project_id,omitempty" jsonschema:"only entries for this project"`
	Type      string `json:"type,omitempty" jsonschema:"only entries of this type"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of entries"`
}

// ProjectListResponse is returned by list_projects.
type ProjectListResponse struct {
	Projects      []project.ListItem `json:"projects"`
	ActiveProject string             `json:"active_project,omitempty"`
}

// ProjectResponse is returned by project tools.
type ProjectResponse struct {
	Project        *project.Record       `json:"project"`
	Progress       int                   `json:"progress"`
	UpdatedAt      time.Time             `json:"updated_at"`
	CloudProjectID string                `json:"cloud_project_id,omitempty"`
	Chat           []project.ChatMessage `json:"chat,omitempty"`
}

// ChatResponse is returned by append_chat.
type ChatResponse struct {
	ProjectID string `json:"project_id"`
	Messages  int    `json:"messages"`
}

// DeleteResponse is returned by delete_project.
type DeleteResponse struct {
	Deleted string `json:"deleted"`
}

// SyncStatusResponse is returned by sync_status.
type SyncStatusResponse struct {
	Scope        string           `json:"scope"`
	Anonymous    bool             `json:"anonymous"`
	Status       cloudsync.Status `json:"status"`
	Pending      bool             `json:"pending"`
	LastError    string           `json:"last_error,omitempty"`
	LastSyncedAt *time.Time       `json:"last_synced_at,omitempty"`
}

// SyncNowResponse is returned by sync_now.
type SyncNowResponse struct {
	Pushed bool                  `json:"pushed"`
	Result *cloudsync.SyncResult `json:"result,omitempty"`
}

// ActivityResponse is returned by recent_activity.
type ActivityResponse struct {
	Entries []activity.Entry `json:"entries"`
}

type tools struct {
	svc Services
}

func registerTools(server *sdkmcp.Server, svc Services) {
	t := &tools{svc: svc}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_projects",
		Description: "List the projects of the current account, most recently updated first",
	}, t.listProjects)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_project",
		Description: "Create an empty project",
	}, t.createProject)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_project",
		Description: "Get a project's full state, optionally with its chat log",
	}, t.getProject)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "switch_project",
		Description: "Make a project the active one",
	}, t.switchProject)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "update_project",
		Description: "Change a project's name, industry, use case or status",
	}, t.updateProject)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "delete_project",
		Description: "Delete a project from this device",
	}, t.deleteProject)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "append_chat",
		Description: "Append a message to a project's chat log",
	}, t.appendChat)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "sync_status",
		Description: "Show whether local changes are still waiting for upload",
	}, t.syncStatus)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "sync_now",
		Description: "Upload queued changes immediately",
	}, t.syncNow)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "pull",
		Description: "Fetch the cloud copy of every project; newer cloud copies replace local ones",
	}, t.pull)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "recent_activity",
		Description: "List recent sync events such as pushes, pulls and conflicts",
	}, t.recentActivity)
}

func requireScope(ctx context.Context) (tenant.Scope, error) {
	scope := getScope(ctx)
	if scope.IsZero() {
		return tenant.Scope{}, MapError(session.ErrNoSession)
	}
	return scope, nil
}

func (t *tools) listProjects(ctx context.Context, _ *sdkmcp.CallToolRequest, _ emptyArgs) (*sdkmcp.CallToolResult, any, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, nil, err
	}
	items, err := t.svc.Projects.ListSummaries(ctx, scope)
	if err != nil {
		return nil, nil, MapError(err)
	}
	if items == nil {
		items = []project.ListItem{}
	}
	return nil, ProjectListResponse{Projects: items, ActiveProject: t.svc.Sessions.ActiveProject()}, nil
}

func (t *tools) createProject(ctx context.Context, _ *sdkmcp.CallToolRequest, args createProjectArgs) (*sdkmcp.CallToolResult, any, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, nil, err
	}
	rec, err := t.svc.Projects.CreateProject(ctx, scope, project.CreateRequest{
		Name:     args.Name,
		Industry: args.Industry,
		UseCase:  args.UseCase,
	})
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, ProjectResponse{Project: rec, Progress: project.Progress(rec), UpdatedAt: rec.UpdatedAt}, nil
}

func (t *tools) getProject(ctx context.Context, _ *sdkmcp.CallToolRequest, args getProjectArgs) (*sdkmcp.CallToolResult, any, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, nil, err
	}
	id, err := t.projectID(args.ID)
	if err != nil {
		return nil, nil, err
	}
	resp, err := t.loadProject(ctx, scope, id)
	if err != nil {
		return nil, nil, err
	}
	if args.IncludeChat {
		chat, err := t.svc.Projects.LoadChat(ctx, scope, id)
		if err != nil {
			return nil, nil, MapError(err)
		}
		resp.Chat = chat
	}
	return nil, resp, nil
}

func (t *tools) switchProject(ctx context.Context, _ *sdkmcp.CallToolRequest, args projectIDArgs) (*sdkmcp.CallToolResult, any, error) {
	if _, err := requireScope(ctx); err != nil {
		return nil, nil, err
	}
	env, err := t.svc.Sessions.SwitchProject(ctx, args.ID)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, envelopeResponse(env), nil
}

func (t *tools) updateProject(ctx context.Context, _ *sdkmcp.CallToolRequest, args updateProjectArgs) (*sdkmcp.CallToolResult, any, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, nil, err
	}
	update := project.MetadataUpdate{
		Name:     args.Name,
		Industry: args.Industry,
		UseCase:  args.UseCase,
	}
	if args.Status != nil {
		status := project.Status(strings.ToLower(strings.TrimSpace(*args.Status)))
		switch status {
		case project.StatusDraft, project.StatusActive, project.StatusArchived:
		default:
			return nil, nil, MapError(project.ErrInvalidInput)
		}
		update.Status = &status
	}
	if _, err := t.svc.Projects.UpdateMetadata(ctx, scope, args.ID, update); err != nil {
		return nil, nil, MapError(err)
	}
	resp, err := t.loadProject(ctx, scope, args.ID)
	if err != nil {
		return nil, nil, err
	}
	return nil, resp, nil
}

func (t *tools) deleteProject(ctx context.Context, _ *sdkmcp.CallToolRequest, args projectIDArgs) (*sdkmcp.CallToolResult, any, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := t.svc.Projects.DeleteProject(ctx, scope, args.ID); err != nil {
		return nil, nil, MapError(err)
	}
	if t.svc.Sessions.ActiveProject() == args.ID {
		if err := t.svc.Sessions.ClearActiveProject(ctx); err != nil {
			return nil, nil, MapError(err)
		}
	}
	return nil, DeleteResponse{Deleted: args.ID}, nil
}

func (t *tools) appendChat(ctx context.Context, _ *sdkmcp.CallToolRequest, args appendChatArgs) (*sdkmcp.CallToolResult, any, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, nil, err
	}
	id, err := t.projectID(args.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(args.Role) == "" || args.Content == "" {
		return nil, nil, MapError(project.ErrInvalidInput)
	}
	log, err := t.svc.Projects.AppendChat(ctx, scope, id, project.ChatMessage{Role: args.Role, Content: args.Content})
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, ChatResponse{ProjectID: id, Messages: len(log)}, nil
}

func (t *tools) syncStatus(ctx context.Context, _ *sdkmcp.CallToolRequest, _ emptyArgs) (*sdkmcp.CallToolResult, any, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, nil, err
	}
	info := t.svc.Queue.Status(scope)
	resp := SyncStatusResponse{
		Scope:     scope.String(),
		Anonymous: scope.IsAnonymous(),
		Status:    info.Status,
		Pending:   info.Pending || info.Flushing,
		LastError: info.LastError,
	}
	if last, err := t.svc.Sync.LastSynced(ctx, scope); err == nil && !last.IsZero() {
		resp.LastSyncedAt = &last
	}
	return nil, resp, nil
}

func (t *tools) syncNow(ctx context.Context, _ *sdkmcp.CallToolRequest, _ emptyArgs) (*sdkmcp.CallToolResult, any, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, nil, err
	}
	if scope.IsAnonymous() {
		return nil, nil, MapError(cloudsync.ErrNotAuthenticated)
	}
	result, err := t.svc.Queue.Flush(ctx, scope)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, SyncNowResponse{Pushed: result != nil, Result: result}, nil
}

func (t *tools) pull(ctx context.Context, _ *sdkmcp.CallToolRequest, _ emptyArgs) (*sdkmcp.CallToolResult, any, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, nil, err
	}
	res, err := t.svc.Sync.PullFull(ctx, scope)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, res, nil
}

func (t *tools) recentActivity(ctx context.Context, _ *sdkmcp.CallToolRequest, args activityArgs) (*sdkmcp.CallToolResult, any, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, nil, err
	}
	opts := activity.ListOptions{ProjectID: args.ProjectID, Limit: args.Limit}
	if args.Type != "" {
		typ := activity.Type(args.Type)
		opts.Type = &typ
	}
	entries, err := t.svc.Activity.GetRecentActivity(ctx, scope, opts)
	if err != nil {
		return nil, nil, MapError(err)
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	return nil, ActivityResponse{Entries: entries}, nil
}

// projectID falls back to the active project when id is empty.
func (t *tools) projectID(id string) (string, error) {
	if id != "" {
		return id, nil
	}
	if active := t.svc.Sessions.ActiveProject(); active != "" {
		return active, nil
	}
	return "", &APIError{Code: "NO_ACTIVE_PROJECT", Message: "no project id given and no active project", RecoveryHint: "Call switch_project first"}
}

func (t *tools) loadProject(ctx context.Context, scope tenant.Scope, id string) (ProjectResponse, error) {
	env, err := t.svc.Projects.LoadState(ctx, scope, id)
	if err != nil {
		return ProjectResponse{}, MapError(err)
	}
	return envelopeResponse(env), nil
}

func envelopeResponse(env *project.Envelope) ProjectResponse {
	return ProjectResponse{
		Project:        env.State,
		Progress:       project.Progress(env.State),
		UpdatedAt:      env.UpdatedAt,
		CloudProjectID: env.CloudProjectID,
	}
}
