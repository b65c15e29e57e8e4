// Package mcp exposes project and sync operations of the running client as MCP tools.
package mcp

import (
	"context"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/blueprint/internal/domain/activity"
	"github.com/rpggio/blueprint/internal/domain/cloudsync"
	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/rpggio/blueprint/internal/tenant"
)

// ProjectService defines project operations needed by MCP.
type ProjectService interface {
	CreateProject(ctx context.Context, scope tenant.Scope, req project.CreateRequest) (*project.Record, error)
	ListSummaries(ctx context.Context, scope tenant.Scope) ([]project.ListItem, error)
	LoadState(ctx context.Context, scope tenant.Scope, id string) (*project.Envelope, error)
	UpdateMetadata(ctx context.Context, scope tenant.Scope, id string, update project.MetadataUpdate) (*project.Record, error)
	DeleteProject(ctx context.Context, scope tenant.Scope, id string) error
	LoadChat(ctx context.Context, scope tenant.Scope, projectID string) ([]project.ChatMessage, error)
	AppendChat(ctx context.Context, scope tenant.Scope, projectID string, msgs ...project.ChatMessage) ([]project.ChatMessage, error)
}

// SessionService defines session operations needed by MCP.
type SessionService interface {
	Scope() tenant.Scope
	ActiveProject() string
	SwitchProject(ctx context.Context, id string) (*project.Envelope, error)
	ClearActiveProject(ctx context.Context) error
}

// QueueService defines sync queue operations needed by MCP.
type QueueService interface {
	Status(scope tenant.Scope) cloudsync.StatusInfo
	Flush(ctx context.Context, scope tenant.Scope) (*cloudsync.SyncResult, error)
}

// SyncService defines pull operations needed by MCP.
type SyncService interface {
	PullFull(ctx context.Context, scope tenant.Scope) (*cloudsync.PullResult, error)
	LastSynced(ctx context.Context, scope tenant.Scope) (time.Time, error)
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, scope tenant.Scope, opts activity.ListOptions) ([]activity.Entry, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Projects ProjectService
	Sessions SessionService
	Queue    QueueService
	Sync     SyncService
	Activity ActivityService
}

// Config contains server configuration.
type Config struct {
	Services Services
	Version  string
	Logger   *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "blueprint",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))
	// Added last so it runs first and the traffic log sees the scope.
	server.AddReceivingMiddleware(scopeMiddleware(cfg.Services.Sessions))

	registerTools(server, cfg.Services)

	return server
}
