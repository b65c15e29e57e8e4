package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpggio/blueprint/internal/kv"
	"github.com/rpggio/blueprint/internal/repository"
	"github.com/rpggio/blueprint/internal/tenant"
)

// LoadChat returns a project's chat log. A missing or unreadable log is empty.
func (s *Service) LoadChat(ctx context.Context, scope tenant.Scope, projectID string) ([]ChatMessage, error) {
	data, err := s.store.Get(ctx, scope, kv.ChatKey(projectID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []ChatMessage{}, nil
		}
		return nil, fmt.Errorf("loading chat: %w", err)
	}

	var msgs []ChatMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		s.logger.Warn("deleting corrupt chat log", "scope", scope.String(), "project_id", projectID)
		if err := s.store.Delete(ctx, scope, kv.ChatKey(projectID)); err != nil {
			return nil, fmt.Errorf("deleting corrupt chat: %w", err)
		}
		return []ChatMessage{}, nil
	}
	if msgs == nil {
		msgs = []ChatMessage{}
	}
	return msgs, nil
}

// AppendChat adds messages to a project's chat log, keeping only the newest
// messages within the configured bounds, and queues the appended messages.
func (s *Service) AppendChat(ctx context.Context, scope tenant.Scope, projectID string, msgs ...ChatMessage) ([]ChatMessage, error) {
	if len(msgs) == 0 {
		return s.LoadChat(ctx, scope, projectID)
	}
	item, err := s.Get(ctx, scope, projectID)
	if err != nil {
		return nil, err
	}

	appended := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = s.clock.Now().UTC()
		}
		m.Content = truncateRunes(m.Content, s.chatMaxLength)
		appended = append(appended, m)
	}

	existing, err := s.LoadChat(ctx, scope, projectID)
	if err != nil {
		return nil, err
	}
	log := s.bound(append(existing, appended...))
	if err := s.writeJSON(ctx, scope, kv.ChatKey(projectID), log); err != nil {
		return nil, fmt.Errorf("saving chat: %w", err)
	}

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueChat(ctx, scope, projectID, item.CloudProjectID, appended); err != nil {
			s.logger.Warn("chat saved locally but not queued for sync", "project_id", projectID, "error", err)
		}
	}
	return log, nil
}

// ReplaceChat overwrites a project's chat log without queueing it. It is
// used when an authoritative remote copy wins.
func (s *Service) ReplaceChat(ctx context.Context, scope tenant.Scope, projectID string, msgs []ChatMessage) error {
	log := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		m.Content = truncateRunes(m.Content, s.chatMaxLength)
		log = append(log, m)
	}
	if err := s.writeJSON(ctx, scope, kv.ChatKey(projectID), s.bound(log)); err != nil {
		return fmt.Errorf("replacing chat: %w", err)
	}
	return nil
}

// bound drops the oldest messages beyond the count limit.
func (s *Service) bound(log []ChatMessage) []ChatMessage {
	if len(log) <= s.chatMaxMessages {
		return log
	}
	return append([]ChatMessage(nil), log[len(log)-s.chatMaxMessages:]...)
}

func truncateRunes(v string, limit int) string {
	if limit <= 0 {
		return v
	}
	runes := []rune(v)
	if len(runes) <= limit {
		return v
	}
	return string(runes[:limit])
}
