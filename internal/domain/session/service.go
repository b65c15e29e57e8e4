package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/blueprint/internal/domain/cloudsync"
	"github.com/rpggio/blueprint/internal/domain/migration"
	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/rpggio/blueprint/internal/kv"
	"github.com/rpggio/blueprint/internal/repository"
	"github.com/rpggio/blueprint/internal/tenant"
)

const defaultLogoutFlushTimeout = 5 * time.Second

// Config holds session timing.
type Config struct {
	LogoutFlushTimeout time.Duration
}

// Deps are the collaborators of a Service. Puller, Migrator and Forgetter
// may be nil.
type Deps struct {
	Projects  Projects
	Queue     Queue
	Puller    Puller
	Migrator  Migrator
	Store     Store
	Forgetter Forgetter
}

// LoginResult reports what happened when a scope was started.
type LoginResult struct {
	Scope         tenant.Scope          `json:"-"`
	Migration     *migration.Result     `json:"migration,omitempty"`
	Pull          *cloudsync.PullResult `json:"pull,omitempty"`
	PullError     string                `json:"pullError,omitempty"`
	ActiveProject string                `json:"activeProject,omitempty"`
}

// LogoutResult reports whether pending changes made it out before logout.
type LogoutResult struct {
	Flushed         bool `json:"flushed"`
	PendingRetained bool `json:"pendingRetained"`
}

// Service owns the current tenant scope, the active project, and the
// project-switch lock.
type Service struct {
	projects  Projects
	queue     Queue
	puller    Puller
	migrator  Migrator
	store     Store
	forgetter Forgetter
	cfg       Config
	logger    *slog.Logger

	mu     sync.Mutex
	scope  tenant.Scope
	active string

	switchMu sync.Mutex
}

// NewService creates a new session service.
func NewService(deps Deps, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.LogoutFlushTimeout <= 0 {
		cfg.LogoutFlushTimeout = defaultLogoutFlushTimeout
	}
	return &Service{
		projects:  deps.Projects,
		queue:     deps.Queue,
		puller:    deps.Puller,
		migrator:  deps.Migrator,
		store:     deps.Store,
		forgetter: deps.Forgetter,
		cfg:       cfg,
		logger:    logger,
	}
}

// Scope returns the current scope; the zero scope when logged out.
func (s *Service) Scope() tenant.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// ActiveProject returns the id of the active project, if any.
func (s *Service) ActiveProject() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Login starts scope: it runs the legacy migration, restores the scope's
// pending queue, pulls remote state for authenticated scopes, and restores
// the active project. A different scope already logged in is logged out first.
func (s *Service) Login(ctx context.Context, scope tenant.Scope) (*LoginResult, error) {
	if scope.IsZero() {
		return nil, ErrInvalidInput
	}

	current := s.Scope()
	if current == scope {
		return &LoginResult{Scope: scope, ActiveProject: s.ActiveProject()}, nil
	}
	if !current.IsZero() {
		if _, err := s.Logout(ctx); err != nil {
			return nil, fmt.Errorf("ending previous session: %w", err)
		}
	}

	s.mu.Lock()
	s.scope = scope
	s.active = ""
	s.mu.Unlock()

	res := &LoginResult{Scope: scope}
	if s.migrator != nil {
		mres, err := s.migrator.Run(ctx, scope)
		if err != nil {
			s.logger.Warn("legacy migration did not complete", "scope", scope.String(), "error", err)
		}
		res.Migration = mres
	}

	if err := s.queue.Restore(ctx, scope); err != nil {
		s.logger.Warn("pending sync not restored", "scope", scope.String(), "error", err)
	}

	if !scope.IsAnonymous() && s.puller != nil {
		pull, err := s.puller.PullFull(ctx, scope)
		if err != nil {
			s.logger.Warn("initial pull failed", "scope", scope.String(), "error", err)
			res.PullError = err.Error()
		}
		res.Pull = pull
	}

	if active := s.restoreActive(ctx, scope); active != "" {
		s.mu.Lock()
		s.active = active
		s.mu.Unlock()
		res.ActiveProject = active
	}

	s.logger.Info("session started", "scope", scope.String(), "anonymous", scope.IsAnonymous())
	return res, nil
}

func (s *Service) restoreActive(ctx context.Context, scope tenant.Scope) string {
	data, err := s.store.Get(ctx, scope, kv.ActiveProjectKey)
	if err != nil {
		return ""
	}
	id := string(data)
	if _, err := s.projects.Get(ctx, scope, id); err != nil {
		return ""
	}
	return id
}

// Logout makes one flush attempt bounded by the configured timeout and ends
// the session. Anything that could not be pushed stays persisted for the
// next session of the same scope.
func (s *Service) Logout(ctx context.Context) (*LogoutResult, error) {
	scope := s.Scope()
	if scope.IsZero() {
		return &LogoutResult{}, nil
	}

	flushCtx, cancel := context.WithTimeout(ctx, s.cfg.LogoutFlushTimeout)
	defer cancel()

	res := &LogoutResult{}
	if err := s.queue.Drain(flushCtx, scope); err != nil {
		s.logger.Warn("logout flush incomplete, pending changes kept", "scope", scope.String(), "error", err)
	}
	pending, err := s.queue.HasPendingSync(ctx, scope)
	if err != nil {
		s.logger.Warn("could not check pending sync", "scope", scope.String(), "error", err)
	}
	res.PendingRetained = pending
	res.Flushed = !pending

	s.queue.Drop(scope)
	if s.forgetter != nil {
		s.forgetter.Forget(scope)
	}

	s.mu.Lock()
	s.scope = tenant.Scope{}
	s.active = ""
	s.mu.Unlock()

	s.logger.Info("session ended", "scope", scope.String(), "pending_retained", res.PendingRetained)
	return res, nil
}

// SwitchProject loads a project and makes it active. Auto-saves are
// suppressed until the switch completes.
func (s *Service) SwitchProject(ctx context.Context, id string) (*project.Envelope, error) {
	scope := s.Scope()
	if scope.IsZero() {
		return nil, ErrNoSession
	}

	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	env, err := s.projects.LoadState(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, scope, kv.ActiveProjectKey, []byte(id)); err != nil {
		return nil, fmt.Errorf("saving active project: %w", err)
	}

	s.mu.Lock()
	s.active = id
	s.mu.Unlock()
	return env, nil
}

// ClearActiveProject forgets the active project, for example after it is deleted.
func (s *Service) ClearActiveProject(ctx context.Context) error {
	scope := s.Scope()
	if scope.IsZero() {
		return ErrNoSession
	}
	if err := s.store.Delete(ctx, scope, kv.ActiveProjectKey); err != nil {
		return err
	}
	s.mu.Lock()
	s.active = ""
	s.mu.Unlock()
	return nil
}

// AutoSave saves the active project's state unless a switch is in progress.
// A switch that starts meanwhile waits for the save to finish.
func (s *Service) AutoSave(ctx context.Context, rec *project.Record) (*project.Record, error) {
	if !s.switchMu.TryLock() {
		return nil, ErrSaveSuppressed
	}
	defer s.switchMu.Unlock()

	scope := s.Scope()
	if scope.IsZero() {
		return nil, ErrNoSession
	}
	if rec == nil || rec.ID != s.ActiveProject() {
		return nil, ErrNotActiveProject
	}

	saved, err := s.projects.SaveState(ctx, scope, rec, project.SaveOptions{})
	if err != nil {
		if errors.Is(err, repository.ErrQuotaExceeded) {
			s.logger.Warn("auto-save failed: local storage full", "project_id", rec.ID)
		}
		return nil, err
	}
	return saved, nil
}
