package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/rpggio/blueprint/internal/domain/activity"
	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/rpggio/blueprint/internal/kv"
	"github.com/rpggio/blueprint/internal/repository"
	"github.com/rpggio/blueprint/internal/tenant"
)

// ClientDeps are the collaborators of a Client.
type ClientDeps struct {
	API      API
	Auth     Auth
	Projects Projects
	Settings Settings
	Verifier Verifier
	Requeuer Requeuer
	Status   StatusReporter
	Activity ActivityRecorder
	Store    Store
	Clock    Clock
}

// Client pushes batches and pulls the full remote state. On pull the
// remote copy of a project wins only when it is strictly newer.
type Client struct {
	api      API
	auth     Auth
	projects Projects
	settings Settings
	verifier Verifier
	requeue  Requeuer
	status   StatusReporter
	activity ActivityRecorder
	store    Store
	clock    Clock
	logger   *slog.Logger

	linksMu sync.Mutex
}

// NewClient creates a sync client.
func NewClient(deps ClientDeps, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Client{
		api:      deps.API,
		auth:     deps.Auth,
		projects: deps.Projects,
		settings: deps.Settings,
		verifier: deps.Verifier,
		requeue:  deps.Requeuer,
		status:   deps.Status,
		activity: deps.Activity,
		store:    deps.Store,
		clock:    deps.Clock,
		logger:   logger,
	}
	if c.clock == nil {
		c.clock = systemClock{}
	}
	return c
}

// PushBatch uploads a batch for scope. Chat for projects without a
// verified remote id is held back and returned in SyncResult.Deferred, as
// are projects whose created remote id is still unverified. Projects the
// remote created are linked locally once ownership is verified.
func (c *Client) PushBatch(ctx context.Context, scope tenant.Scope, batch BatchSyncInput) (*SyncResult, error) {
	if err := c.checkIdentity(scope); err != nil {
		return nil, err
	}

	outbound, deferred := c.prepare(ctx, scope, batch)
	if outbound.IsEmpty() {
		return &SyncResult{Success: true, SyncedAt: c.clock.Now().UTC(), Deferred: deferred}, nil
	}

	result, err := c.api.PushBatch(ctx, outbound)
	if err != nil {
		c.record(ctx, scope, activity.TypePushFailed, "", "push failed")
		return nil, fmt.Errorf("pushing batch: %w", err)
	}
	if result == nil || !result.Success {
		c.record(ctx, scope, activity.TypePushFailed, "", "push rejected by remote")
		return nil, ErrPushRejected
	}

	c.linkCreated(ctx, scope, outbound, result.Results.Projects)
	c.markSynced(ctx, scope, result.SyncedAt)
	c.record(ctx, scope, activity.TypePushed, "", fmt.Sprintf("pushed %d projects, %d chat batches", len(outbound.Projects), len(outbound.ChatMessages)))

	result.Deferred = deferred
	return result, nil
}

// prepare fills in remote ids learned since the batch was queued and splits
// off chat that cannot be sent yet.
func (c *Client) prepare(ctx context.Context, scope tenant.Scope, batch BatchSyncInput) (BatchSyncInput, BatchSyncInput) {
	outbound := BatchSyncInput{
		Preferences: batch.Preferences,
		Archetypes:  batch.Archetypes,
	}
	var deferred BatchSyncInput

	links := c.loadPendingLinks(ctx, scope)
	var stale []string
	for _, p := range batch.Projects {
		if p.ClientID != "" {
			item, err := c.projects.Get(ctx, scope, p.ClientID)
			if errors.Is(err, project.ErrProjectNotFound) {
				// Deleted locally after it was queued.
				stale = append(stale, p.ClientID)
				continue
			}
			if err == nil && p.ID == "" {
				p.ID = item.CloudProjectID
			}
			link, pending := links[p.ClientID]
			switch {
			case pending && p.ID != "":
				stale = append(stale, p.ClientID)
			case pending:
				linked, hold := c.resolvePendingLink(ctx, scope, p.ClientID, link)
				if hold {
					deferred.Projects = append(deferred.Projects, p)
					continue
				}
				p.ID = linked
			}
		}
		outbound.Projects = append(outbound.Projects, p)
	}
	c.forgetPendingLinks(ctx, scope, stale...)

	for _, chat := range batch.ChatMessages {
		if chat.ProjectID == "" && chat.LocalProjectID != "" {
			item, err := c.projects.Get(ctx, scope, chat.LocalProjectID)
			if errors.Is(err, project.ErrProjectNotFound) {
				continue
			}
			if err == nil {
				chat.ProjectID = item.CloudProjectID
			}
		}
		if chat.ProjectID == "" {
			deferred.ChatMessages = append(deferred.ChatMessages, chat)
			continue
		}
		outbound.ChatMessages = append(outbound.ChatMessages, chat)
	}
	return outbound, deferred
}

func (c *Client) linkCreated(ctx context.Context, scope tenant.Scope, outbound BatchSyncInput, results []ProjectResult) {
	unverified := pendingLinks{}
	for _, r := range results {
		if r.ID == "" || r.Error != "" {
			continue
		}
		localID := r.ClientID
		if localID == "" {
			localID = matchByName(outbound.Projects, r.Name)
		}
		if localID == "" {
			continue
		}
		if sent, ok := findPayload(outbound.Projects, localID); !ok || sent.ID != "" {
			continue
		}
		if err := c.projects.LinkCloudProject(ctx, scope, localID, r.ID); err != nil {
			c.logger.Warn("created remote project not linked yet", "project_id", localID, "error", err)
			unverified[localID] = pendingLink{RemoteID: r.ID}
		}
	}
	if len(unverified) > 0 {
		c.updatePendingLinks(ctx, scope, func(links pendingLinks) {
			maps.Copy(links, unverified)
		})
	}
}

// matchByName returns the local id of the only unlinked payload named name.
func matchByName(payloads []ProjectPayload, name string) string {
	match := ""
	for _, p := range payloads {
		if p.ID != "" || p.Name != name {
			continue
		}
		if match != "" {
			return ""
		}
		match = p.ClientID
	}
	return match
}

func findPayload(payloads []ProjectPayload, localID string) (ProjectPayload, bool) {
	for _, p := range payloads {
		if p.ClientID == localID {
			return p, true
		}
	}
	return ProjectPayload{}, false
}

// PullFull fetches the remote state and reconciles it into scope.
func (c *Client) PullFull(ctx context.Context, scope tenant.Scope) (*PullResult, error) {
	if err := c.checkIdentity(scope); err != nil {
		c.reportStatus(scope, statusFor(err), err)
		return nil, err
	}
	c.reportStatus(scope, StatusSyncing, nil)

	full, err := c.api.FetchFullState(ctx)
	if err != nil {
		c.reportStatus(scope, statusFor(err), err)
		return nil, fmt.Errorf("pulling state: %w", err)
	}

	res := &PullResult{SyncedAt: full.SyncedAt}
	for _, rp := range full.Projects {
		c.applyRemoteProject(ctx, scope, rp, res)
	}

	if c.settings != nil {
		if err := c.settings.ApplyRemotePreferences(ctx, scope, full.Preferences); err != nil {
			c.logger.Warn("pulled preferences not stored", "error", err)
		}
		if _, err := c.settings.ApplyRemoteArchetypes(ctx, scope, full.Archetypes); err != nil {
			c.logger.Warn("pulled archetypes not stored", "error", err)
		}
	}

	c.markSynced(ctx, scope, full.SyncedAt)
	c.reportStatus(scope, StatusSynced, nil)
	c.record(ctx, scope, activity.TypePulled, "", fmt.Sprintf("pulled %d projects: %d applied, %d kept local, %d rejected",
		len(full.Projects), res.Applied, res.KeptLocal, res.Rejected))
	return res, nil
}

func (c *Client) applyRemoteProject(ctx context.Context, scope tenant.Scope, rp RemoteProject, res *PullResult) {
	if rp.ID == "" {
		return
	}
	if !c.verifier.Verify(ctx, scope, rp.ID) {
		res.Rejected++
		return
	}

	localID := ""
	if item, err := c.projects.FindByCloudID(ctx, scope, rp.ID); err == nil {
		localID = item.ID
	} else if rp.ClientID != "" {
		item, err := c.projects.Get(ctx, scope, rp.ClientID)
		switch {
		case err == nil && item.CloudProjectID == "":
			localID = item.ID
		case err == nil:
			// A second remote copy of a project already linked elsewhere.
			c.logger.Warn("duplicate remote project ignored", "project_id", item.ID, "remote_id", rp.ID)
			res.Duplicates++
			return
		}
	}

	var local *project.Envelope
	if localID != "" {
		env, err := c.projects.LoadState(ctx, scope, localID)
		switch {
		case err == nil:
			local = env
		case errors.Is(err, project.ErrProjectNotFound):
		default:
			c.logger.Warn("local project unreadable during pull", "project_id", localID, "error", err)
			res.Failed++
			return
		}
	} else {
		localID = rp.ID
	}

	if local != nil && !rp.UpdatedAt.After(local.UpdatedAt) {
		if local.UpdatedAt.After(rp.UpdatedAt) {
			if err := c.requeue.EnqueueProject(ctx, scope, local.State, rp.ID); err != nil {
				c.logger.Warn("newer local project not queued", "project_id", localID, "error", err)
			}
			c.record(ctx, scope, activity.TypeLocalKept, localID, "local copy newer than remote")
			res.KeptLocal++
		} else {
			res.Unchanged++
		}
		c.ensureLinked(ctx, scope, localID, local.CloudProjectID, rp.ID)
		return
	}

	if _, err := c.projects.SaveState(ctx, scope, rp.Record(localID), project.SaveOptions{
		SuppressSync: true,
		UpdatedAt:    rp.UpdatedAt,
	}); err != nil {
		c.logger.Warn("remote project not stored", "project_id", localID, "error", err)
		res.Failed++
		return
	}
	existingLink := ""
	if local != nil {
		existingLink = local.CloudProjectID
	}
	c.ensureLinked(ctx, scope, localID, existingLink, rp.ID)

	if rp.ChatMessages != nil {
		if err := c.projects.ReplaceChat(ctx, scope, localID, rp.ChatMessages); err != nil {
			c.logger.Warn("remote chat not stored", "project_id", localID, "error", err)
		}
	}
	if local != nil {
		c.record(ctx, scope, activity.TypeRemoteWon, localID, "remote copy newer than local")
	}
	res.Applied++
}

func (c *Client) ensureLinked(ctx context.Context, scope tenant.Scope, localID, current, cloudID string) {
	if current == cloudID {
		return
	}
	if err := c.projects.LinkCloudProject(ctx, scope, localID, cloudID); err != nil {
		c.logger.Warn("pulled project not linked", "project_id", localID, "error", err)
		return
	}
	c.forgetPendingLinks(ctx, scope, localID)
}

// LastSynced returns when scope last completed a push or pull.
func (c *Client) LastSynced(ctx context.Context, scope tenant.Scope) (time.Time, error) {
	data, err := c.store.Get(ctx, scope, kv.LastSyncedKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, string(data))
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

func (c *Client) markSynced(ctx context.Context, scope tenant.Scope, at time.Time) {
	if c.store == nil {
		return
	}
	if at.IsZero() {
		at = c.clock.Now()
	}
	if err := c.store.Set(ctx, scope, kv.LastSyncedKey, []byte(at.UTC().Format(time.RFC3339Nano))); err != nil {
		c.logger.Warn("last-synced marker not stored", "error", err)
	}
}

func (c *Client) checkIdentity(scope tenant.Scope) error {
	switch {
	case scope.IsZero():
		return repository.ErrNoScope
	case scope.IsAnonymous(), c.auth == nil, !c.auth.IsAuthenticated():
		return ErrNotAuthenticated
	case c.auth.CurrentIdentity() != scope.UserID():
		return ErrScopeMismatch
	}
	return nil
}

func (c *Client) reportStatus(scope tenant.Scope, status Status, err error) {
	if c.status != nil {
		c.status.ReportStatus(scope, status, err)
	}
}

func (c *Client) record(ctx context.Context, scope tenant.Scope, typ activity.Type, projectID, summary string) {
	if c.activity != nil {
		c.activity.Record(ctx, scope, typ, projectID, summary)
	}
}
