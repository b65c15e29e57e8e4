package transport

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/blueprint/internal/domain/cloudsync"
	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/rpggio/blueprint/internal/domain/settings"
)

var (
	// ErrProjectNotFound indicates no remote project has the requested id.
	ErrProjectNotFound = errors.New("remote project not found")
	// ErrUnavailable indicates the backend is switched off.
	ErrUnavailable = errors.New("backend unavailable")
)

type remoteProject struct {
	owner   string
	payload cloudsync.ProjectPayload
	chat    []project.ChatMessage
}

// MemoryBackend keeps remote state in memory. Projects are owned by the
// user that created them; pushes for another user's project are refused.
type MemoryBackend struct {
	mu          sync.Mutex
	projects    map[string]*remoteProject
	preferences map[string]settings.Preferences
	archetypes  map[string]map[string]settings.Archetype
	now         func() time.Time

	offline atomic.Bool
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		projects:    make(map[string]*remoteProject),
		preferences: make(map[string]settings.Preferences),
		archetypes:  make(map[string]map[string]settings.Archetype),
		now:         time.Now,
	}
}

// SetOffline makes every call fail with ErrUnavailable while on is true.
func (b *MemoryBackend) SetOffline(on bool) {
	b.offline.Store(on)
}

// Seed stores a project for owner as if it had been pushed earlier.
func (b *MemoryBackend) Seed(owner string, p cloudsync.RemoteProject) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	b.projects[p.ID] = &remoteProject{
		owner:   owner,
		payload: p.ProjectPayload,
		chat:    append([]project.ChatMessage(nil), p.ChatMessages...),
	}
}

// Project returns a stored project, for assertions.
func (b *MemoryBackend) Project(id string) (cloudsync.RemoteProject, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rp, ok := b.projects[id]
	if !ok {
		return cloudsync.RemoteProject{}, false
	}
	return rp.export(), true
}

// ApplyBatch implements Backend.
func (b *MemoryBackend) ApplyBatch(_ context.Context, userID string, batch cloudsync.BatchSyncInput) (*cloudsync.SyncResult, error) {
	if b.offline.Load() {
		return nil, ErrUnavailable
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	res := &cloudsync.SyncResult{Success: true, SyncedAt: b.now().UTC()}
	for _, p := range batch.Projects {
		res.Results.Projects = append(res.Results.Projects, b.applyProject(userID, p))
	}

	for _, c := range batch.ChatMessages {
		rp, ok := b.projects[c.ProjectID]
		if !ok || rp.owner != userID {
			res.Results.ChatMessages = append(res.Results.ChatMessages, cloudsync.ChatResult{ProjectID: c.ProjectID, Error: "project not found"})
			continue
		}
		rp.chat = append(rp.chat, c.Messages...)
		res.Results.ChatMessages = append(res.Results.ChatMessages, cloudsync.ChatResult{ProjectID: c.ProjectID, Accepted: len(c.Messages)})
	}

	if len(batch.Preferences) > 0 {
		prefs := b.preferences[userID]
		if prefs == nil {
			prefs = settings.Preferences{}
			b.preferences[userID] = prefs
		}
		maps.Copy(prefs, batch.Preferences)
		res.Results.Preferences = &cloudsync.PreferencesResult{Status: "updated"}
	}

	for _, a := range batch.Archetypes {
		byID := b.archetypes[userID]
		if byID == nil {
			byID = make(map[string]settings.Archetype)
			b.archetypes[userID] = byID
		}
		status := "created"
		if _, ok := byID[a.ArchetypeID]; ok {
			status = "updated"
		}
		byID[a.ArchetypeID] = a
		res.Results.Archetypes = append(res.Results.Archetypes, cloudsync.ArchetypeResult{ArchetypeID: a.ArchetypeID, Status: status})
	}
	return res, nil
}

func (b *MemoryBackend) applyProject(userID string, p cloudsync.ProjectPayload) cloudsync.ProjectResult {
	if p.ID == "" {
		p.ID = uuid.NewString()
		b.projects[p.ID] = &remoteProject{owner: userID, payload: p}
		return cloudsync.ProjectResult{ID: p.ID, ClientID: p.ClientID, Name: p.Name, Status: "created"}
	}

	rp, ok := b.projects[p.ID]
	if !ok || rp.owner != userID {
		return cloudsync.ProjectResult{ID: p.ID, ClientID: p.ClientID, Name: p.Name, Status: "rejected", Error: "project not found"}
	}
	if p.UpdatedAt.Before(rp.payload.UpdatedAt) {
		return cloudsync.ProjectResult{ID: p.ID, ClientID: p.ClientID, Name: p.Name, Status: "stale"}
	}
	rp.payload = p
	return cloudsync.ProjectResult{ID: p.ID, ClientID: p.ClientID, Name: p.Name, Status: "updated"}
}

// FullState implements Backend.
func (b *MemoryBackend) FullState(_ context.Context, userID string) (*cloudsync.FullState, error) {
	if b.offline.Load() {
		return nil, ErrUnavailable
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	state := &cloudsync.FullState{
		Projects: []cloudsync.RemoteProject{},
		SyncedAt: b.now().UTC(),
	}
	for _, rp := range b.projects {
		if rp.owner == userID {
			state.Projects = append(state.Projects, rp.export())
		}
	}
	sort.Slice(state.Projects, func(i, j int) bool { return state.Projects[i].ID < state.Projects[j].ID })

	if prefs := b.preferences[userID]; len(prefs) > 0 {
		state.Preferences = maps.Clone(prefs)
	}
	for _, a := range b.archetypes[userID] {
		state.Archetypes = append(state.Archetypes, a)
	}
	sort.Slice(state.Archetypes, func(i, j int) bool { return state.Archetypes[i].ArchetypeID < state.Archetypes[j].ArchetypeID })
	return state, nil
}

// ProjectOwner implements Backend.
func (b *MemoryBackend) ProjectOwner(_ context.Context, projectID string) (string, error) {
	if b.offline.Load() {
		return "", ErrUnavailable
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	rp, ok := b.projects[projectID]
	if !ok {
		return "", ErrProjectNotFound
	}
	return rp.owner, nil
}

func (rp *remoteProject) export() cloudsync.RemoteProject {
	return cloudsync.RemoteProject{
		ProjectPayload: rp.payload,
		OwnerID:        rp.owner,
		ChatMessages:   append([]project.ChatMessage(nil), rp.chat...),
	}
}
