package cloudsync

import (
	"time"

	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/rpggio/blueprint/internal/domain/settings"
)

// ProjectPayload is a project as it travels to and from the remote.
// ID is the remote id; ClientID is the local id it was pushed from.
type ProjectPayload struct {
	ID             string                  `json:"id,omitempty"`
	ClientID       string                  `json:"clientId,omitempty"`
	Name           string                  `json:"name"`
	Industry       string                  `json:"industry,omitempty"`
	UseCase        string                  `json:"useCase,omitempty"`
	Status         project.Status          `json:"status"`
	Objects        []project.Object        `json:"objects"`
	Links          []project.Link          `json:"links"`
	Integrations   []project.Integration   `json:"integrations"`
	AIRequirements []project.AIRequirement `json:"aiRequirements"`
	Version        int                     `json:"version"`
	CreatedAt      time.Time               `json:"createdAt"`
	UpdatedAt      time.Time               `json:"updatedAt"`
}

// PayloadFromRecord converts a local record into its wire form.
func PayloadFromRecord(rec *project.Record, cloudID string) ProjectPayload {
	return ProjectPayload{
		ID:             cloudID,
		ClientID:       rec.ID,
		Name:           rec.Name,
		Industry:       rec.Industry,
		UseCase:        rec.UseCase,
		Status:         rec.Status,
		Objects:        rec.Objects,
		Links:          rec.Links,
		Integrations:   rec.Integrations,
		AIRequirements: rec.AIRequirements,
		Version:        rec.Version,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

// Record converts a payload into a local record with the given local id.
func (p ProjectPayload) Record(localID string) *project.Record {
	rec := &project.Record{
		ID:             localID,
		Name:           p.Name,
		Industry:       p.Industry,
		UseCase:        p.UseCase,
		Status:         p.Status,
		Objects:        p.Objects,
		Links:          p.Links,
		Integrations:   p.Integrations,
		AIRequirements: p.AIRequirements,
		Version:        p.Version,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if rec.Objects == nil {
		rec.Objects = []project.Object{}
	}
	if rec.Links == nil {
		rec.Links = []project.Link{}
	}
	return rec
}

// ChatBatch carries chat messages appended to one project.
type ChatBatch struct {
	ProjectID      string                `json:"projectId,omitempty"`
	LocalProjectID string                `json:"localProjectId,omitempty"`
	Messages       []project.ChatMessage `json:"messages"`
}

// BatchSyncInput is the body of POST /sync and the shape of the pending queue.
type BatchSyncInput struct {
	Projects     []ProjectPayload     `json:"projects,omitempty"`
	ChatMessages []ChatBatch          `json:"chatMessages,omitempty"`
	Preferences  settings.Preferences `json:"preferences,omitempty"`
	Archetypes   []settings.Archetype `json:"archetypes,omitempty"`
}

// IsEmpty reports whether the batch carries nothing to push.
func (b BatchSyncInput) IsEmpty() bool {
	return len(b.Projects) == 0 && len(b.ChatMessages) == 0 && len(b.Preferences) == 0 && len(b.Archetypes) == 0
}

// ProjectResult reports what the remote did with one pushed project.
type ProjectResult struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId,omitempty"`
	Name     string `json:"name,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// ChatResult reports how many messages the remote accepted for a project.
type ChatResult struct {
	ProjectID string `json:"projectId"`
	Accepted  int    `json:"accepted"`
	Error     string `json:"error,omitempty"`
}

// ArchetypeResult reports what the remote did with one archetype.
type ArchetypeResult struct {
	ArchetypeID string `json:"archetypeId"`
	Status      string `json:"status"`
}

// PreferencesResult reports whether preferences were stored.
type PreferencesResult struct {
	Status string `json:"status"`
}

// SyncResults groups per-collection push outcomes.
type SyncResults struct {
	Projects     []ProjectResult    `json:"projects,omitempty"`
	ChatMessages []ChatResult       `json:"chatMessages,omitempty"`
	Preferences  *PreferencesResult `json:"preferences,omitempty"`
	Archetypes   []ArchetypeResult  `json:"archetypes,omitempty"`
}

// SyncResult is the response of POST /sync.
type SyncResult struct {
	Success  bool        `json:"success"`
	SyncedAt time.Time   `json:"syncedAt"`
	Results  SyncResults `json:"results"`

	// Deferred holds entries held back from the push, such as chat for a
	// project that has no verified remote id yet.
	Deferred BatchSyncInput `json:"-"`
}

// RemoteProject is a project as returned by GET /sync/full.
type RemoteProject struct {
	ProjectPayload
	OwnerID      string                `json:"ownerId,omitempty"`
	ChatMessages []project.ChatMessage `json:"chatMessages,omitempty"`
}

// FullState is the response of GET /sync/full.
type FullState struct {
	Projects    []RemoteProject      `json:"projects"`
	Preferences settings.Preferences `json:"preferences,omitempty"`
	Archetypes  []settings.Archetype `json:"archetypes,omitempty"`
	SyncedAt    time.Time            `json:"syncedAt"`
}

// ProjectOwner is the response of GET /projects/{id}.
type ProjectOwner struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
}

// PullResult summarizes a full pull. Duplicates counts remote copies of
// projects already linked to another remote id; they are left alone.
type PullResult struct {
	Applied    int       `json:"applied"`
	KeptLocal  int       `json:"keptLocal"`
	Unchanged  int       `json:"unchanged"`
	Rejected   int       `json:"rejected"`
	Duplicates int       `json:"duplicates"`
	Failed     int       `json:"failed"`
	SyncedAt   time.Time `json:"syncedAt"`
}
