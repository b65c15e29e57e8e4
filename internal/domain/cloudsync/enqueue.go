package cloudsync

import (
	"context"
	"maps"

	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/rpggio/blueprint/internal/domain/settings"
	"github.com/rpggio/blueprint/internal/tenant"
)

// EnqueueProject queues a project's full state.
func (q *Queue) EnqueueProject(ctx context.Context, scope tenant.Scope, rec *project.Record, cloudID string) error {
	if rec == nil {
		return nil
	}
	return q.Enqueue(ctx, scope, BatchSyncInput{
		Projects: []ProjectPayload{PayloadFromRecord(rec, cloudID)},
	})
}

// EnqueueChat queues messages appended to a project's chat log.
func (q *Queue) EnqueueChat(ctx context.Context, scope tenant.Scope, projectID, cloudID string, msgs []project.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	return q.Enqueue(ctx, scope, BatchSyncInput{
		ChatMessages: []ChatBatch{{
			ProjectID:      cloudID,
			LocalProjectID: projectID,
			Messages:       cloneMessages(msgs),
		}},
	})
}

// EnqueuePreferences queues changed preference fields.
func (q *Queue) EnqueuePreferences(ctx context.Context, scope tenant.Scope, prefs settings.Preferences) error {
	if len(prefs) == 0 {
		return nil
	}
	return q.Enqueue(ctx, scope, BatchSyncInput{Preferences: maps.Clone(prefs)})
}

// EnqueueArchetypes queues archetype records.
func (q *Queue) EnqueueArchetypes(ctx context.Context, scope tenant.Scope, archetypes []settings.Archetype) error {
	if len(archetypes) == 0 {
		return nil
	}
	return q.Enqueue(ctx, scope, BatchSyncInput{
		Archetypes: append([]settings.Archetype(nil), archetypes...),
	})
}
