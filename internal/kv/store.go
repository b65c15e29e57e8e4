// Package kv namespaces the durable key-value backend by tenant scope.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rpggio/blueprint/internal/repository"
	"github.com/rpggio/blueprint/internal/tenant"
)

// ErrScopedGlobalKey is returned when an unscoped key could address a tenant key space.
var ErrScopedGlobalKey = errors.New("global keys may not contain ':'")

// Evictor frees least-essential data in a scope when the backend is full.
type Evictor interface {
	EvictNonEssential(ctx context.Context, scope tenant.Scope) (int, error)
}

// Store is the scoped key-value store. Keys passed in are logical keys;
// the scope prefix is applied here and nowhere else.
type Store struct {
	backend repository.KeyValueRepository
	logger  *slog.Logger

	mu       sync.RWMutex
	evictors []Evictor
}

// New creates a scoped store over a durable backend.
func New(backend repository.KeyValueRepository, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{backend: backend, logger: logger}
}

// AddEvictor registers a component that can free space on quota failures.
func (s *Store) AddEvictor(e Evictor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictors = append(s.evictors, e)
}

// ScopeKey returns the physical key for a logical key.
func (s *Store) ScopeKey(scope tenant.Scope, logical string) (string, error) {
	if scope.IsZero() {
		return "", repository.ErrNoScope
	}
	if logical == "" {
		return "", repository.ErrInvalidInput
	}
	return scope.Key(logical), nil
}

// Get returns the value of a logical key in scope.
func (s *Store) Get(ctx context.Context, scope tenant.Scope, logical string) ([]byte, error) {
	key, err := s.ScopeKey(scope, logical)
	if err != nil {
		return nil, err
	}
	return s.backend.Get(ctx, key)
}

// Set writes a logical key in scope. On a quota failure the registered
// evictors run once and the write is retried once.
func (s *Store) Set(ctx context.Context, scope tenant.Scope, logical string, value []byte) error {
	key, err := s.ScopeKey(scope, logical)
	if err != nil {
		return err
	}

	err = s.backend.Set(ctx, key, value)
	if !errors.Is(err, repository.ErrQuotaExceeded) {
		return err
	}

	freed := s.evict(ctx, scope)
	s.logger.Warn("storage quota exceeded, evicted non-essential data", "scope", scope.String(), "key", logical, "evicted", freed)

	if err := s.backend.Set(ctx, key, value); err != nil {
		if errors.Is(err, repository.ErrQuotaExceeded) {
			return fmt.Errorf("writing %s after eviction: %w", logical, err)
		}
		return err
	}
	return nil
}

func (s *Store) evict(ctx context.Context, scope tenant.Scope) int {
	s.mu.RLock()
	evictors := append([]Evictor(nil), s.evictors...)
	s.mu.RUnlock()

	total := 0
	for _, e := range evictors {
		n, err := e.EvictNonEssential(ctx, scope)
		if err != nil {
			s.logger.Warn("eviction failed", "scope", scope.String(), "error", err)
		}
		total += n
	}
	return total
}

// Delete removes a logical key in scope.
func (s *Store) Delete(ctx context.Context, scope tenant.Scope, logical string) error {
	key, err := s.ScopeKey(scope, logical)
	if err != nil {
		return err
	}
	return s.backend.Delete(ctx, key)
}

// Keys lists logical keys in scope starting with prefix.
func (s *Store) Keys(ctx context.Context, scope tenant.Scope, prefix string) ([]string, error) {
	if scope.IsZero() {
		return nil, repository.ErrNoScope
	}
	physical, err := s.backend.Keys(ctx, scope.Key(prefix))
	if err != nil {
		return nil, err
	}
	logical := make([]string, 0, len(physical))
	for _, key := range physical {
		if l, ok := scope.Logical(key); ok {
			logical = append(logical, l)
		}
	}
	return logical, nil
}

// GetJSON decodes a logical key into v.
func (s *Store) GetJSON(ctx context.Context, scope tenant.Scope, logical string, v any) error {
	data, err := s.Get(ctx, scope, logical)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", logical, err)
	}
	return nil
}

// SetJSON encodes v into a logical key.
func (s *Store) SetJSON(ctx context.Context, scope tenant.Scope, logical string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", logical, err)
	}
	return s.Set(ctx, scope, logical, data)
}

// GetGlobal reads an unscoped, install-wide key.
func (s *Store) GetGlobal(ctx context.Context, key string) ([]byte, error) {
	if err := validateGlobal(key); err != nil {
		return nil, err
	}
	return s.backend.Get(ctx, key)
}

// SetGlobal writes an unscoped, install-wide key.
func (s *Store) SetGlobal(ctx context.Context, key string, value []byte) error {
	if err := validateGlobal(key); err != nil {
		return err
	}
	return s.backend.Set(ctx, key, value)
}

// DeleteGlobal removes an unscoped, install-wide key.
func (s *Store) DeleteGlobal(ctx context.Context, key string) error {
	if err := validateGlobal(key); err != nil {
		return err
	}
	return s.backend.Delete(ctx, key)
}

func validateGlobal(key string) error {
	if key == "" {
		return repository.ErrInvalidInput
	}
	if strings.Contains(key, ":") {
		return ErrScopedGlobalKey
	}
	return nil
}
