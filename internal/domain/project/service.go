package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/blueprint/internal/kv"
	"github.com/rpggio/blueprint/internal/repository"
	"github.com/rpggio/blueprint/internal/tenant"
)

const (
	defaultChatMessages      = 200
	defaultChatMessageLength = 8000
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used to stamp saves.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithChatLimits bounds chat logs by message count and message length in runes.
func WithChatLimits(maxMessages, maxLength int) Option {
	return func(s *Service) {
		if maxMessages > 0 {
			s.chatMaxMessages = maxMessages
		}
		if maxLength > 0 {
			s.chatMaxLength = maxLength
		}
	}
}

// Service is the project repository: the only writer of project data.
type Service struct {
	store    Store
	enqueuer Enqueuer
	verifier Verifier
	clock    Clock
	logger   *slog.Logger

	chatMaxMessages int
	chatMaxLength   int

	// mu serializes index read-modify-write cycles.
	mu sync.Mutex
}

// NewService creates a new project service. enqueuer and verifier may be nil
// for local-only use; without a verifier no cloud id is ever linked.
func NewService(store Store, enqueuer Enqueuer, verifier Verifier, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{
		store:           store,
		enqueuer:        enqueuer,
		verifier:        verifier,
		clock:           systemClock{},
		logger:          logger,
		chatMaxMessages: defaultChatMessages,
		chatMaxLength:   defaultChatMessageLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateProject creates an empty project and saves it.
func (s *Service) CreateProject(ctx context.Context, scope tenant.Scope, req CreateRequest) (*Record, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrInvalidInput
	}

	rec := &Record{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(req.Name),
		Industry:       req.Industry,
		UseCase:        req.UseCase,
		Status:         StatusDraft,
		Version:        1,
		Objects:        []Object{},
		Links:          []Link{},
		Integrations:   []Integration{},
		AIRequirements: []AIRequirement{},
	}

	saved, err := s.SaveState(ctx, scope, rec, SaveOptions{})
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	return saved, nil
}

// SaveState validates, stamps, and persists a project's state, refreshes its
// index entry, and hands the normalized record to the sync queue unless
// opts.SuppressSync is set.
func (s *Service) SaveState(ctx context.Context, scope tenant.Scope, rec *Record, opts SaveOptions) (*Record, error) {
	if scope.IsZero() {
		return nil, repository.ErrNoScope
	}
	if err := Validate(rec); err != nil {
		s.logger.Warn("discarding malformed project state", "scope", scope.String())
		return nil, err
	}
	if strings.TrimSpace(rec.ID) == "" {
		return nil, ErrInvalidInput
	}

	saved, cloudID, err := s.persist(ctx, scope, rec, opts)
	if err != nil {
		return nil, err
	}

	if !opts.SuppressSync && s.enqueuer != nil {
		if err := s.enqueuer.EnqueueProject(ctx, scope, saved, cloudID); err != nil {
			s.logger.Warn("project saved locally but not queued for sync", "project_id", saved.ID, "error", err)
		}
	}
	return saved, nil
}

func (s *Service) persist(ctx context.Context, scope tenant.Scope, rec *Record, opts SaveOptions) (*Record, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex(ctx, scope)
	if err != nil {
		return nil, "", err
	}
	prev, hasPrev := findItem(index, rec.ID)

	normalized := *rec
	if opts.UpdatedAt.IsZero() {
		now := s.clock.Now().UTC()
		if hasPrev && now.Before(prev.UpdatedAt) {
			now = prev.UpdatedAt
		}
		normalized.UpdatedAt = now
	} else {
		normalized.UpdatedAt = opts.UpdatedAt.UTC()
	}
	if normalized.CreatedAt.IsZero() {
		if hasPrev && !prev.CreatedAt.IsZero() {
			normalized.CreatedAt = prev.CreatedAt
		} else {
			normalized.CreatedAt = normalized.UpdatedAt
		}
	}
	if normalized.Status == "" {
		normalized.Status = StatusDraft
	}
	if normalized.Integrations == nil {
		normalized.Integrations = []Integration{}
	}
	if normalized.AIRequirements == nil {
		normalized.AIRequirements = []AIRequirement{}
	}

	cloudID := prev.CloudProjectID
	env := Envelope{
		State:          &normalized,
		UpdatedAt:      normalized.UpdatedAt,
		CloudProjectID: cloudID,
	}
	if err := s.writeJSON(ctx, scope, kv.StateKey(normalized.ID), env); err != nil {
		return nil, "", fmt.Errorf("saving project state: %w", err)
	}

	index = upsertItem(index, summarize(&normalized, cloudID, prev.Legacy || opts.Legacy))
	if err := s.saveIndex(ctx, scope, index); err != nil {
		return nil, "", fmt.Errorf("saving project index: %w", err)
	}
	return &normalized, cloudID, nil
}

// LoadState returns a project's envelope. A stored value that fails to
// decode is deleted and reported as ErrProjectNotFound wrapped with
// ErrCorruptRecord.
func (s *Service) LoadState(ctx context.Context, scope tenant.Scope, id string) (*Envelope, error) {
	data, err := s.store.Get(ctx, scope, kv.StateKey(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("loading project state: %w", err)
	}

	env, upgraded, ok := decodeEnvelope(data)
	if !ok {
		s.logger.Warn("deleting corrupt project record", "scope", scope.String(), "project_id", id)
		s.discard(ctx, scope, id)
		return nil, fmt.Errorf("%w: %w", ErrProjectNotFound, ErrCorruptRecord)
	}
	if env.State.ID == "" {
		env.State.ID = id
	}

	if upgraded {
		if err := s.writeJSON(ctx, scope, kv.StateKey(id), env); err != nil {
			s.logger.Warn("could not rewrite upgraded project record", "project_id", id, "error", err)
		}
	}
	return env, nil
}

func decodeEnvelope(data []byte) (*Envelope, bool, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, false, false
	}

	if _, ok := fields["state"]; ok {
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || Validate(env.State) != nil {
			return nil, false, false
		}
		if env.UpdatedAt.IsZero() {
			env.UpdatedAt = env.State.UpdatedAt
		}
		return &env, false, true
	}

	// Bare records predate the envelope.
	if _, ok := fields["objects"]; ok {
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil || Validate(&rec) != nil {
			return nil, false, false
		}
		return &Envelope{State: &rec, UpdatedAt: rec.UpdatedAt}, true, true
	}
	return nil, false, false
}

func (s *Service) discard(ctx context.Context, scope tenant.Scope, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, scope, kv.StateKey(id)); err != nil {
		s.logger.Warn("could not delete corrupt record", "project_id", id, "error", err)
	}
	index, err := s.loadIndex(ctx, scope)
	if err != nil {
		return
	}
	if next, removed := removeItem(index, id); removed {
		if err := s.saveIndex(ctx, scope, next); err != nil {
			s.logger.Warn("could not update project index", "error", err)
		}
	}
}

// Get returns the index entry of a project.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id string) (*ListItem, error) {
	index, err := s.loadIndex(ctx, scope)
	if err != nil {
		return nil, err
	}
	item, ok := findItem(index, id)
	if !ok {
		return nil, ErrProjectNotFound
	}
	return &item, nil
}

// ListSummaries returns the scope's projects, most recently updated first.
func (s *Service) ListSummaries(ctx context.Context, scope tenant.Scope) ([]ListItem, error) {
	index, err := s.loadIndex(ctx, scope)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(index, func(i, j int) bool {
		return index[i].UpdatedAt.After(index[j].UpdatedAt)
	})
	return index, nil
}

// DeleteProject removes a project's state, chat, and index entry.
func (s *Service) DeleteProject(ctx context.Context, scope tenant.Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex(ctx, scope)
	if err != nil {
		return err
	}
	next, removed := removeItem(index, id)
	if !removed {
		return ErrProjectNotFound
	}

	for _, key := range []string{kv.StateKey(id), kv.ChatKey(id)} {
		if err := s.store.Delete(ctx, scope, key); err != nil {
			return fmt.Errorf("deleting project: %w", err)
		}
	}
	if err := s.saveIndex(ctx, scope, next); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return nil
}

// UpdateMetadata changes a project's descriptive fields and saves it.
func (s *Service) UpdateMetadata(ctx context.Context, scope tenant.Scope, id string, update MetadataUpdate) (*Record, error) {
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, ErrInvalidInput
	}

	env, err := s.LoadState(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	rec := env.State
	if update.Name != nil {
		rec.Name = strings.TrimSpace(*update.Name)
	}
	if update.Industry != nil {
		rec.Industry = *update.Industry
	}
	if update.UseCase != nil {
		rec.UseCase = *update.UseCase
	}
	if update.Status != nil {
		rec.Status = *update.Status
	}
	return s.SaveState(ctx, scope, rec, SaveOptions{})
}

// LinkCloudProject records the remote id of a project. The link is only
// written once the verifier confirms the remote project is owned by the
// scope's identity.
func (s *Service) LinkCloudProject(ctx context.Context, scope tenant.Scope, id, cloudID string) error {
	if strings.TrimSpace(cloudID) == "" {
		return ErrInvalidInput
	}
	if s.verifier == nil || !s.verifier.Verify(ctx, scope, cloudID) {
		return ErrOwnershipUnverified
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Get(ctx, scope, kv.StateKey(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("linking cloud project: %w", err)
	}
	env, _, ok := decodeEnvelope(data)
	if !ok {
		return fmt.Errorf("%w: %w", ErrProjectNotFound, ErrCorruptRecord)
	}
	if env.State.ID == "" {
		env.State.ID = id
	}

	env.CloudProjectID = cloudID
	if err := s.writeJSON(ctx, scope, kv.StateKey(id), env); err != nil {
		return fmt.Errorf("linking cloud project: %w", err)
	}

	index, err := s.loadIndex(ctx, scope)
	if err != nil {
		return err
	}
	item, ok := findItem(index, id)
	if !ok {
		item = summarize(env.State, cloudID, false)
	}
	item.CloudProjectID = cloudID
	if err := s.saveIndex(ctx, scope, upsertItem(index, item)); err != nil {
		return fmt.Errorf("linking cloud project: %w", err)
	}
	return nil
}

// FindByCloudID returns the local project linked to a remote id.
func (s *Service) FindByCloudID(ctx context.Context, scope tenant.Scope, cloudID string) (*ListItem, error) {
	if cloudID == "" {
		return nil, ErrProjectNotFound
	}
	index, err := s.loadIndex(ctx, scope)
	if err != nil {
		return nil, err
	}
	for _, item := range index {
		if item.CloudProjectID == cloudID {
			return &item, nil
		}
	}
	return nil, ErrProjectNotFound
}

// EvictNonEssential deletes chat logs and the last-synced marker so that a
// write blocked by the storage quota can be retried.
func (s *Service) EvictNonEssential(ctx context.Context, scope tenant.Scope) (int, error) {
	keys, err := s.store.Keys(ctx, scope, kv.ProjectPrefix())
	if err != nil {
		return 0, fmt.Errorf("listing evictable keys: %w", err)
	}

	evicted := 0
	for _, key := range keys {
		if !kv.IsChatKey(key) {
			continue
		}
		if err := s.store.Delete(ctx, scope, key); err != nil {
			return evicted, fmt.Errorf("evicting %s: %w", key, err)
		}
		evicted++
	}

	if _, err := s.store.Get(ctx, scope, kv.LastSyncedKey); err == nil {
		if err := s.store.Delete(ctx, scope, kv.LastSyncedKey); err != nil {
			return evicted, fmt.Errorf("evicting sync marker: %w", err)
		}
		evicted++
	}
	return evicted, nil
}

func (s *Service) loadIndex(ctx context.Context, scope tenant.Scope) ([]ListItem, error) {
	data, err := s.store.Get(ctx, scope, kv.ProjectIndexKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []ListItem{}, nil
		}
		return nil, fmt.Errorf("loading project index: %w", err)
	}

	var index []ListItem
	if err := json.Unmarshal(data, &index); err != nil {
		s.logger.Warn("project index unreadable, rebuilding", "scope", scope.String(), "error", err)
		return s.rebuildIndex(ctx, scope)
	}
	return index, nil
}

// rebuildIndex reconstructs the index from the state keys in scope.
func (s *Service) rebuildIndex(ctx context.Context, scope tenant.Scope) ([]ListItem, error) {
	keys, err := s.store.Keys(ctx, scope, kv.ProjectPrefix())
	if err != nil {
		return nil, fmt.Errorf("rebuilding project index: %w", err)
	}

	index := []ListItem{}
	for _, key := range keys {
		if kv.IsChatKey(key) {
			continue
		}
		data, err := s.store.Get(ctx, scope, key)
		if err != nil {
			continue
		}
		env, _, ok := decodeEnvelope(data)
		if !ok || env.State.ID == "" {
			continue
		}
		index = append(index, summarize(env.State, env.CloudProjectID, false))
	}
	if err := s.saveIndex(ctx, scope, index); err != nil {
		return nil, fmt.Errorf("rebuilding project index: %w", err)
	}
	return index, nil
}

func (s *Service) saveIndex(ctx context.Context, scope tenant.Scope, index []ListItem) error {
	return s.writeJSON(ctx, scope, kv.ProjectIndexKey, index)
}

func (s *Service) writeJSON(ctx context.Context, scope tenant.Scope, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, scope, key, data)
}

func findItem(index []ListItem, id string) (ListItem, bool) {
	for _, item := range index {
		if item.ID == id {
			return item, true
		}
	}
	return ListItem{}, false
}

func upsertItem(index []ListItem, item ListItem) []ListItem {
	for i := range index {
		if index[i].ID == item.ID {
			index[i] = item
			return index
		}
	}
	return append(index, item)
}

func removeItem(index []ListItem, id string) ([]ListItem, bool) {
	for i := range index {
		if index[i].ID == id {
			return append(index[:i], index[i+1:]...), true
		}
	}
	return index, false
}
