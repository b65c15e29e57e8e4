// Package migration moves single-project, unscoped legacy data into the
// multi-project layout of the first scope that starts after an upgrade.
package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/blueprint/internal/domain/activity"
	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/rpggio/blueprint/internal/repository"
	"github.com/rpggio/blueprint/internal/tenant"
)

// Install-wide keys. The marker is never unset once written.
const (
	MarkerKey        = "multi-project-migrated"
	LegacyStateKey   = "project-state"
	LegacyChatKey    = "chat-history"
	LegacyCloudIDKey = "cloud-project-id"
)

// Outcome describes what a run did.
type Outcome string

const (
	OutcomeSkipped          Outcome = "skipped"
	OutcomeNothingToMigrate Outcome = "nothing_to_migrate"
	OutcomeAlreadyMigrated  Outcome = "already_migrated"
	OutcomeMigrated         Outcome = "migrated"
	OutcomeFailed           Outcome = "failed"
)

// Result reports the outcome of a run.
type Result struct {
	Outcome   Outcome `json:"outcome"`
	ProjectID string  `json:"projectId,omitempty"`
	Linked    bool    `json:"linked"`
	Messages  int     `json:"messages"`
}

// Options configures the engine.
type Options struct {
	// KeepLegacyKeys leaves the legacy keys in place after migrating.
	KeepLegacyKeys bool
}

// Engine performs the one-way legacy migration.
type Engine struct {
	store    GlobalStore
	projects Projects
	activity ActivityRecorder
	logger   *slog.Logger
	opts     Options
	now      func() time.Time
}

// NewEngine creates a migration engine. activity may be nil.
func NewEngine(store GlobalStore, projects Projects, activity ActivityRecorder, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		store:    store,
		projects: projects,
		activity: activity,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// Migrated reports whether the marker is set.
func (e *Engine) Migrated(ctx context.Context) (bool, error) {
	_, err := e.store.GetGlobal(ctx, MarkerKey)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("reading migration marker: %w", err)
}

// Run migrates legacy data into scope at most once per install. Running it
// again, or after an interrupted run, never creates a second project.
func (e *Engine) Run(ctx context.Context, scope tenant.Scope) (*Result, error) {
	if scope.IsZero() {
		return nil, repository.ErrNoScope
	}

	done, err := e.Migrated(ctx)
	if err != nil {
		return nil, err
	}
	if done {
		return &Result{Outcome: OutcomeSkipped}, nil
	}

	raw, err := e.store.GetGlobal(ctx, LegacyStateKey)
	if errors.Is(err, repository.ErrNotFound) {
		if err := e.setMarker(ctx); err != nil {
			return nil, err
		}
		return &Result{Outcome: OutcomeNothingToMigrate}, nil
	}
	if err != nil {
		return e.fail(ctx, scope, fmt.Errorf("reading legacy state: %w", err))
	}

	// A previous run may have created the project and stopped before the
	// marker was written.
	items, err := e.projects.ListSummaries(ctx, scope)
	if err != nil {
		return e.fail(ctx, scope, fmt.Errorf("listing projects: %w", err))
	}
	for _, item := range items {
		if item.Legacy {
			if err := e.finish(ctx); err != nil {
				return nil, err
			}
			return &Result{Outcome: OutcomeAlreadyMigrated, ProjectID: item.ID}, nil
		}
	}

	rec, err := decodeLegacyState(raw)
	if err != nil {
		return e.fail(ctx, scope, err)
	}

	saved, err := e.projects.SaveState(ctx, scope, rec, project.SaveOptions{Legacy: true})
	if err != nil {
		return e.fail(ctx, scope, fmt.Errorf("saving migrated project: %w", err))
	}
	result := &Result{Outcome: OutcomeMigrated, ProjectID: saved.ID}

	if msgs, ok := e.legacyChat(ctx); ok && len(msgs) > 0 {
		if err := e.projects.ReplaceChat(ctx, scope, saved.ID, msgs); err != nil {
			e.logger.Warn("legacy chat not migrated", "project_id", saved.ID, "error", err)
		} else {
			result.Messages = len(msgs)
		}
	}

	if cloudID := e.legacyCloudID(ctx); cloudID != "" {
		switch err := e.projects.LinkCloudProject(ctx, scope, saved.ID, cloudID); {
		case err == nil:
			result.Linked = true
		case errors.Is(err, project.ErrOwnershipUnverified):
			e.logger.Warn("legacy cloud project id dropped: ownership not verified", "project_id", saved.ID)
		default:
			e.logger.Warn("legacy cloud project id not linked", "project_id", saved.ID, "error", err)
		}
	}

	if err := e.finish(ctx); err != nil {
		return nil, err
	}
	e.logger.Info("legacy project migrated", "scope", scope.String(), "project_id", saved.ID)
	if e.activity != nil {
		e.activity.Record(ctx, scope, activity.TypeMigrated, saved.ID, "legacy project migrated")
	}
	return result, nil
}

func (e *Engine) fail(ctx context.Context, scope tenant.Scope, cause error) (*Result, error) {
	e.logger.Error("legacy migration failed", "scope", scope.String(), "error", cause)
	if err := e.setMarker(ctx); err != nil {
		e.logger.Error("migration marker not written", "error", err)
	}
	if e.activity != nil {
		e.activity.Record(ctx, scope, activity.TypeMigrationFailed, "", "legacy migration failed")
	}
	return &Result{Outcome: OutcomeFailed}, fmt.Errorf("%w: %w", ErrMigrationFailed, cause)
}

func (e *Engine) finish(ctx context.Context) error {
	if err := e.setMarker(ctx); err != nil {
		return err
	}
	if e.opts.KeepLegacyKeys {
		return nil
	}
	for _, key := range []string{LegacyStateKey, LegacyChatKey, LegacyCloudIDKey} {
		if err := e.store.DeleteGlobal(ctx, key); err != nil {
			e.logger.Warn("legacy key not cleared", "key", key, "error", err)
		}
	}
	return nil
}

func (e *Engine) setMarker(ctx context.Context) error {
	stamp := []byte(e.now().UTC().Format(time.RFC3339))
	if err := e.store.SetGlobal(ctx, MarkerKey, stamp); err != nil {
		return fmt.Errorf("writing migration marker: %w", err)
	}
	return nil
}

func (e *Engine) legacyChat(ctx context.Context) ([]project.ChatMessage, bool) {
	raw, err := e.store.GetGlobal(ctx, LegacyChatKey)
	if err != nil {
		return nil, false
	}
	var msgs []project.ChatMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		e.logger.Warn("legacy chat unreadable", "error", err)
		return nil, false
	}
	return msgs, true
}

func (e *Engine) legacyCloudID(ctx context.Context) string {
	raw, err := e.store.GetGlobal(ctx, LegacyCloudIDKey)
	if err != nil {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		id = string(raw)
	}
	return strings.TrimSpace(id)
}

// decodeLegacyState accepts the single-project state shape. Missing
// collections are treated as empty; undecodable data is an error.
func decodeLegacyState(raw []byte) (*project.Record, error) {
	var rec project.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding legacy state: %w", err)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if strings.TrimSpace(rec.Name) == "" {
		rec.Name = "Imported project"
	}
	if rec.Objects == nil {
		rec.Objects = []project.Object{}
	}
	if rec.Links == nil {
		rec.Links = []project.Link{}
	}
	return &rec, nil
}
