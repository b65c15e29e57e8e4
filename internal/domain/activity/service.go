package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpggio/blueprint/internal/tenant"
)

// Service handles activity log operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new activity service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// LogActivity logs an activity entry with the current timestamp if missing.
func (s *Service) LogActivity(ctx context.Context, scope tenant.Scope, entry *Entry) error {
	if entry == nil || entry.Type == "" || scope.IsZero() {
		return ErrInvalidInput
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if err := s.repo.Log(ctx, scope.Prefix(), entry); err != nil {
		return fmt.Errorf("logging activity: %w", err)
	}
	return nil
}

// Record logs an entry and swallows failures. The activity log is advisory
// and must never fail a sync or storage operation.
func (s *Service) Record(ctx context.Context, scope tenant.Scope, typ Type, projectID, summary string) {
	entry := &Entry{ProjectID: projectID, Type: typ, Summary: summary}
	if err := s.LogActivity(ctx, scope, entry); err != nil {
		s.logger.Warn("activity not recorded", "type", typ, "error", err)
	}
}

// GetRecentActivity lists activity entries with filtering.
func (s *Service) GetRecentActivity(ctx context.Context, scope tenant.Scope, opts ListOptions) ([]Entry, error) {
	if scope.IsZero() {
		return nil, ErrInvalidInput
	}
	return s.repo.List(ctx, scope.Prefix(), opts)
}
