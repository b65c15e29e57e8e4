package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rpggio/blueprint/internal/kv"
	"github.com/rpggio/blueprint/internal/repository"
	"github.com/rpggio/blueprint/internal/tenant"
)

// Service caches preferences and archetypes per scope.
type Service struct {
	store    Store
	enqueuer Enqueuer
	logger   *slog.Logger
	now      func() time.Time

	mu sync.Mutex
}

// NewService creates a new settings service.
func NewService(store Store, enqueuer Enqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{store: store, enqueuer: enqueuer, logger: logger, now: time.Now}
}

// Preferences returns the cached preferences of a scope.
func (s *Service) Preferences(ctx context.Context, scope tenant.Scope) (Preferences, error) {
	prefs := Preferences{}
	if err := s.read(ctx, scope, kv.PreferencesKey, &prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// UpdatePreferences overwrites the given fields and queues the change.
func (s *Service) UpdatePreferences(ctx context.Context, scope tenant.Scope, patch Preferences) (Preferences, error) {
	if len(patch) == 0 {
		return s.Preferences(ctx, scope)
	}
	prefs, err := s.mergePreferences(ctx, scope, patch)
	if err != nil {
		return nil, err
	}
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueuePreferences(ctx, scope, patch); err != nil {
			s.logger.Warn("preferences saved locally but not queued for sync", "error", err)
		}
	}
	return prefs, nil
}

// ApplyRemotePreferences merges pulled preferences without queueing them.
func (s *Service) ApplyRemotePreferences(ctx context.Context, scope tenant.Scope, remote Preferences) error {
	if len(remote) == 0 {
		return nil
	}
	_, err := s.mergePreferences(ctx, scope, remote)
	return err
}

func (s *Service) mergePreferences(ctx context.Context, scope tenant.Scope, patch Preferences) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs := Preferences{}
	if err := s.read(ctx, scope, kv.PreferencesKey, &prefs); err != nil {
		return nil, err
	}
	maps.Copy(prefs, patch)
	if err := s.write(ctx, scope, kv.PreferencesKey, prefs); err != nil {
		return nil, fmt.Errorf("saving preferences: %w", err)
	}
	return prefs, nil
}

// Archetypes returns cached archetypes ordered by name.
func (s *Service) Archetypes(ctx context.Context, scope tenant.Scope) ([]Archetype, error) {
	var list []Archetype
	if err := s.read(ctx, scope, kv.ArchetypesKey, &list); err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

// SaveArchetype upserts an archetype by id and queues it.
func (s *Service) SaveArchetype(ctx context.Context, scope tenant.Scope, a Archetype) (*Archetype, error) {
	if strings.TrimSpace(a.ArchetypeID) == "" || strings.TrimSpace(a.Name) == "" {
		return nil, ErrInvalidInput
	}
	a.UpdatedAt = s.now().UTC()

	s.mu.Lock()
	var list []Archetype
	err := s.read(ctx, scope, kv.ArchetypesKey, &list)
	if err == nil {
		list = upsertArchetype(list, a)
		err = s.write(ctx, scope, kv.ArchetypesKey, list)
	}
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("saving archetype: %w", err)
	}

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueArchetypes(ctx, scope, []Archetype{a}); err != nil {
			s.logger.Warn("archetype saved locally but not queued for sync", "archetype_id", a.ArchetypeID, "error", err)
		}
	}
	return &a, nil
}

// ApplyRemoteArchetypes stores pulled archetypes. A remote archetype only
// replaces a local one with an older timestamp.
func (s *Service) ApplyRemoteArchetypes(ctx context.Context, scope tenant.Scope, remote []Archetype) (int, error) {
	if len(remote) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var list []Archetype
	if err := s.read(ctx, scope, kv.ArchetypesKey, &list); err != nil {
		return 0, err
	}
	applied := 0
	for _, r := range remote {
		if r.ArchetypeID == "" {
			continue
		}
		if local, ok := findArchetype(list, r.ArchetypeID); ok && !r.UpdatedAt.After(local.UpdatedAt) {
			continue
		}
		list = upsertArchetype(list, r)
		applied++
	}
	if applied == 0 {
		return 0, nil
	}
	if err := s.write(ctx, scope, kv.ArchetypesKey, list); err != nil {
		return 0, fmt.Errorf("saving archetypes: %w", err)
	}
	return applied, nil
}

func (s *Service) read(ctx context.Context, scope tenant.Scope, key string, v any) error {
	data, err := s.store.Get(ctx, scope, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("ignoring unreadable settings value", "key", key, "error", err)
	}
	return nil
}

func (s *Service) write(ctx context.Context, scope tenant.Scope, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, scope, key, data)
}

func findArchetype(list []Archetype, id string) (Archetype, bool) {
	for _, a := range list {
		if a.ArchetypeID == id {
			return a, true
		}
	}
	return Archetype{}, false
}

func upsertArchetype(list []Archetype, a Archetype) []Archetype {
	for i := range list {
		if list[i].ArchetypeID == a.ArchetypeID {
			list[i] = a
			return list
		}
	}
	return append(list, a)
}
