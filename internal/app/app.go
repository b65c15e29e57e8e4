// Package app wires the sync engine over one local database.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rpggio/blueprint/internal/auth"
	"github.com/rpggio/blueprint/internal/config"
	"github.com/rpggio/blueprint/internal/domain/activity"
	"github.com/rpggio/blueprint/internal/domain/cloudsync"
	"github.com/rpggio/blueprint/internal/domain/migration"
	"github.com/rpggio/blueprint/internal/domain/ownership"
	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/rpggio/blueprint/internal/domain/session"
	"github.com/rpggio/blueprint/internal/domain/settings"
	"github.com/rpggio/blueprint/internal/kv"
	"github.com/rpggio/blueprint/internal/remote"
	"github.com/rpggio/blueprint/internal/repository"
	"github.com/rpggio/blueprint/internal/sqlite"
	"github.com/rpggio/blueprint/internal/tenant"
)

// AnonymousSessionKey is the install-wide key holding the anonymous id, so
// signed-out work survives restarts.
const AnonymousSessionKey = "anonymous-session"

// App holds every service of a running client.
type App struct {
	DB        *sqlite.DB
	Store     *kv.Store
	Auth      *auth.Static
	Remote    *remote.Client
	Activity  *activity.Service
	Verifier  *ownership.Verifier
	Projects  *project.Service
	Settings  *settings.Service
	Queue     *cloudsync.Queue
	Sync      *cloudsync.Client
	Migration *migration.Engine
	Sessions  *session.Service

	logger *slog.Logger
}

type options struct {
	scheduler cloudsync.Scheduler
	clock     project.Clock
}

// Option customizes New.
type Option func(*options)

// WithScheduler replaces the runtime timers driving the sync queue.
func WithScheduler(s cloudsync.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithClock replaces the clock used for project timestamps.
func WithClock(c project.Clock) Option {
	return func(o *options) { o.clock = c }
}

// New opens the database in cfg and builds the services on top of it.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return nil, fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}

	a := &App{DB: db, logger: logger}
	a.Store = kv.New(sqlite.NewKVStore(db, cfg.Store.QuotaBytes), logger)
	a.Auth = auth.NewStatic(cfg.Auth.UserID, cfg.Auth.Token)
	a.Remote = remote.NewClient(cfg.Remote.BaseURL, a.Auth, cfg.Remote.Timeout)
	a.Activity = activity.NewService(sqlite.NewActivityRepository(db), logger)
	a.Verifier = ownership.NewVerifier(a.Remote, a.Activity, logger)

	a.Queue = cloudsync.NewQueue(a.Store, o.scheduler, cloudsync.QueueConfig{
		Debounce:      cfg.Sync.Debounce,
		RetryInterval: cfg.Sync.RetryInterval,
	}, logger)

	projectOpts := []project.Option{project.WithChatLimits(cfg.Chat.MaxMessages, cfg.Chat.MaxMessageLength)}
	if o.clock != nil {
		projectOpts = append(projectOpts, project.WithClock(o.clock))
	}
	a.Projects = project.NewService(a.Store, a.Queue, a.Verifier, logger, projectOpts...)
	a.Store.AddEvictor(a.Projects)
	a.Settings = settings.NewService(a.Store, a.Queue, logger)

	a.Sync = cloudsync.NewClient(cloudsync.ClientDeps{
		API:      a.Remote,
		Auth:     a.Auth,
		Projects: a.Projects,
		Settings: a.Settings,
		Verifier: a.Verifier,
		Requeuer: a.Queue,
		Status:   a.Queue,
		Activity: a.Activity,
		Store:    a.Store,
	}, logger)
	a.Queue.SetPusher(a.Sync)
	a.Queue.Subscribe(func(scope tenant.Scope, status cloudsync.Status) {
		logger.Debug("sync status", "scope", scope.String(), "status", status)
	})

	a.Migration = migration.NewEngine(a.Store, a.Projects, a.Activity, logger, migration.Options{
		KeepLegacyKeys: cfg.Migration.KeepLegacyKeys,
	})
	a.Sessions = session.NewService(session.Deps{
		Projects:  a.Projects,
		Queue:     a.Queue,
		Puller:    a.Sync,
		Migrator:  a.Migration,
		Store:     a.Store,
		Forgetter: a.Verifier,
	}, session.Config{LogoutFlushTimeout: cfg.Sync.LogoutFlushTimeout}, logger)

	return a, nil
}

// Start logs in the scope the current credentials resolve to.
func (a *App) Start(ctx context.Context) (*session.LoginResult, error) {
	scope, err := a.ResolveScope(ctx)
	if err != nil {
		return nil, err
	}
	return a.Sessions.Login(ctx, scope)
}

// ResolveScope returns the authenticated user's scope, or the persisted
// anonymous scope when signed out. A new anonymous id is created on first use.
func (a *App) ResolveScope(ctx context.Context) (tenant.Scope, error) {
	if a.Auth.IsAuthenticated() {
		return tenant.ForUser(a.Auth.CurrentIdentity())
	}

	data, err := a.Store.GetGlobal(ctx, AnonymousSessionKey)
	switch {
	case err == nil && len(data) > 0:
		return tenant.Anonymous(string(data))
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return tenant.Scope{}, fmt.Errorf("reading anonymous session: %w", err)
	}

	scope := tenant.NewAnonymous()
	if err := a.Store.SetGlobal(ctx, AnonymousSessionKey, []byte(scope.AnonymousID())); err != nil {
		return tenant.Scope{}, fmt.Errorf("saving anonymous session: %w", err)
	}
	return scope, nil
}

// SignIn switches credentials and starts the new user's scope. The previous
// scope is logged out first, keeping whatever it could not push.
func (a *App) SignIn(ctx context.Context, userID, token string) (*session.LoginResult, error) {
	if _, err := a.Sessions.Logout(ctx); err != nil {
		return nil, err
	}
	a.Auth.SignIn(userID, token)
	return a.Start(ctx)
}

// SignOut ends the session and falls back to the anonymous scope.
func (a *App) SignOut(ctx context.Context) (*session.LogoutResult, error) {
	res, err := a.Sessions.Logout(ctx)
	if err != nil {
		return nil, err
	}
	a.Auth.SignOut()
	if _, err := a.Start(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// Close ends the session, attempting one final flush, and closes the database.
func (a *App) Close(ctx context.Context) error {
	if _, err := a.Sessions.Logout(ctx); err != nil {
		a.logger.Warn("logout on close failed", "error", err)
	}
	return a.DB.Close()
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
