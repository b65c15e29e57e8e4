package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/rpggio/blueprint/internal/kv"
	"github.com/rpggio/blueprint/internal/repository"
	"github.com/rpggio/blueprint/internal/tenant"
)

// Status is the sync state a caller observes.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSynced  Status = "synced"
	StatusError   Status = "error"
	StatusOffline Status = "offline"
)

// StatusInfo is a snapshot of one scope's queue.
type StatusInfo struct {
	Status    Status `json:"status"`
	Pending   bool   `json:"pending"`
	Flushing  bool   `json:"flushing"`
	LastError string `json:"lastError,omitempty"`
}

// QueueConfig holds queue timing.
type QueueConfig struct {
	Debounce      time.Duration
	RetryInterval time.Duration
}

// DefaultQueueConfig returns the timing used when none is configured.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Debounce:      2 * time.Second,
		RetryInterval: 30 * time.Second,
	}
}

// Queue accumulates outbound changes per scope and flushes them through a
// Pusher after a debounce window. It is the only writer of pending-sync
// state. Anonymous scopes are never queued.
type Queue struct {
	store     Store
	scheduler Scheduler
	cfg       QueueConfig
	logger    *slog.Logger

	mu        sync.Mutex
	pusher    Pusher
	tenants   map[string]*tenantQueue
	listeners []func(tenant.Scope, Status)
}

type tenantQueue struct {
	scope    tenant.Scope
	pending  BatchSyncInput
	inflight *BatchSyncInput
	done     chan struct{}
	cancel   func()
	status   Status
	lastErr  string
	dropped  bool
}

// NewQueue creates a queue. A nil scheduler uses runtime timers.
func NewQueue(store Store, scheduler Scheduler, cfg QueueConfig, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if scheduler == nil {
		scheduler = TimerScheduler{}
	}
	defaults := DefaultQueueConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaults.Debounce
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaults.RetryInterval
	}
	return &Queue{
		store:     store,
		scheduler: scheduler,
		cfg:       cfg,
		logger:    logger,
		tenants:   make(map[string]*tenantQueue),
	}
}

// SetPusher attaches the component that performs uploads.
func (q *Queue) SetPusher(p Pusher) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pusher = p
}

// Subscribe registers fn to be called on every status change.
func (q *Queue) Subscribe(fn func(tenant.Scope, Status)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners = append(q.listeners, fn)
}

// Enqueue merges delta into the scope's pending batch, persists it, and
// restarts the debounce timer.
func (q *Queue) Enqueue(ctx context.Context, scope tenant.Scope, delta BatchSyncInput) error {
	if scope.IsZero() {
		return repository.ErrNoScope
	}
	if scope.IsAnonymous() || delta.IsEmpty() {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	tq, err := q.tenantLocked(ctx, scope)
	if err != nil {
		return err
	}
	tq.pending = Merge(tq.pending, delta)
	q.scheduleLocked(tq, q.cfg.Debounce)
	return q.persistLocked(ctx, tq)
}

// Flush pushes everything pending for scope. It returns nil, nil when there
// is nothing to push or a flush for the scope is already in flight. On
// failure the batch is re-queued beneath anything enqueued meanwhile and a
// retry is scheduled.
func (q *Queue) Flush(ctx context.Context, scope tenant.Scope) (*SyncResult, error) {
	if scope.IsZero() || scope.IsAnonymous() {
		return nil, nil
	}

	q.mu.Lock()
	tq, err := q.tenantLocked(ctx, scope)
	if err != nil {
		q.mu.Unlock()
		return nil, err
	}
	if tq.inflight != nil || tq.pending.IsEmpty() {
		q.mu.Unlock()
		return nil, nil
	}
	if q.pusher == nil {
		q.mu.Unlock()
		return nil, ErrNoPusher
	}
	if tq.cancel != nil {
		tq.cancel()
		tq.cancel = nil
	}

	batch := tq.pending
	tq.pending = BatchSyncInput{}
	tq.inflight = &batch
	tq.done = make(chan struct{})
	done := tq.done
	pusher := q.pusher
	notify := q.setStatusLocked(tq, StatusSyncing, nil)
	q.mu.Unlock()
	notify()

	result, pushErr := pusher.PushBatch(ctx, scope, batch)

	// The push outcome is recorded even if ctx ended during the push.
	localCtx := context.WithoutCancel(ctx)

	q.mu.Lock()
	tq.inflight = nil
	close(done)

	if pushErr != nil {
		tq.pending = Merge(batch, tq.pending)
		notify = q.setStatusLocked(tq, statusFor(pushErr), pushErr)
		if !tq.dropped {
			q.scheduleLocked(tq, q.cfg.RetryInterval)
		}
		if err := q.persistLocked(localCtx, tq); err != nil {
			q.logger.Warn("could not persist re-queued batch", "scope", scope.String(), "error", err)
		}
		q.mu.Unlock()
		notify()
		q.logger.Warn("sync push failed, batch re-queued", "scope", scope.String(), "error", pushErr)
		return nil, pushErr
	}

	newer := !tq.pending.IsEmpty()
	deferred := result != nil && !result.Deferred.IsEmpty()
	if deferred {
		tq.pending = Merge(result.Deferred, tq.pending)
	}
	notify = q.setStatusLocked(tq, StatusSynced, nil)
	switch {
	case tq.dropped:
	case newer:
		q.scheduleLocked(tq, q.cfg.Debounce)
	case deferred:
		// Held-back chat goes out once its project has a remote id.
		q.scheduleLocked(tq, q.cfg.RetryInterval)
	}
	if err := q.persistLocked(localCtx, tq); err != nil {
		q.logger.Warn("could not persist sync queue", "scope", scope.String(), "error", err)
	}
	q.mu.Unlock()
	notify()
	return result, nil
}

// Drain waits for an in-flight flush of scope and then flushes whatever is
// left. It returns ctx's error if ctx ends first.
func (q *Queue) Drain(ctx context.Context, scope tenant.Scope) error {
	for {
		q.mu.Lock()
		tq, err := q.tenantLocked(ctx, scope)
		if err != nil {
			q.mu.Unlock()
			return err
		}
		if tq.inflight == nil {
			q.mu.Unlock()
			_, err := q.Flush(ctx, scope)
			return err
		}
		done := tq.done
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		}
	}
}

// Restore loads a scope's persisted pending batch and schedules a flush if
// anything was left over from an earlier session.
func (q *Queue) Restore(ctx context.Context, scope tenant.Scope) error {
	if scope.IsZero() || scope.IsAnonymous() {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	tq, err := q.tenantLocked(ctx, scope)
	if err != nil {
		return err
	}
	if !tq.pending.IsEmpty() {
		q.scheduleLocked(tq, q.cfg.Debounce)
	}
	return nil
}

// Drop forgets a scope's in-memory queue. Pending data stays persisted for
// the next session of the same scope.
func (q *Queue) Drop(scope tenant.Scope) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tq, ok := q.tenants[scope.Prefix()]
	if !ok {
		return
	}
	if tq.cancel != nil {
		tq.cancel()
		tq.cancel = nil
	}
	tq.dropped = true
	delete(q.tenants, scope.Prefix())
}

// NotifyOnline flushes every loaded scope with pending data.
func (q *Queue) NotifyOnline(ctx context.Context) error {
	q.mu.Lock()
	var scopes []tenant.Scope
	for _, tq := range q.tenants {
		if !tq.pending.IsEmpty() && tq.inflight == nil {
			scopes = append(scopes, tq.scope)
		}
	}
	q.mu.Unlock()

	var errs []error
	for _, scope := range scopes {
		if _, err := q.Flush(ctx, scope); err != nil {
			errs = append(errs, fmt.Errorf("flushing %s: %w", scope, err))
		}
	}
	return errors.Join(errs...)
}

// HasPendingSync reports whether scope has anything queued or in flight.
func (q *Queue) HasPendingSync(ctx context.Context, scope tenant.Scope) (bool, error) {
	if scope.IsZero() || scope.IsAnonymous() {
		return false, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	tq, err := q.tenantLocked(ctx, scope)
	if err != nil {
		return false, err
	}
	return !tq.pending.IsEmpty() || tq.inflight != nil, nil
}

// Pending returns a copy of the batch waiting to be flushed for scope.
func (q *Queue) Pending(ctx context.Context, scope tenant.Scope) (BatchSyncInput, error) {
	if scope.IsZero() || scope.IsAnonymous() {
		return BatchSyncInput{}, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	tq, err := q.tenantLocked(ctx, scope)
	if err != nil {
		return BatchSyncInput{}, err
	}
	return Merge(BatchSyncInput{}, tq.pending), nil
}

// Status returns a snapshot of scope's queue.
func (q *Queue) Status(scope tenant.Scope) StatusInfo {
	q.mu.Lock()
	defer q.mu.Unlock()

	tq, ok := q.tenants[scope.Prefix()]
	if !ok {
		return StatusInfo{Status: StatusIdle}
	}
	return StatusInfo{
		Status:    tq.status,
		Pending:   !tq.pending.IsEmpty(),
		Flushing:  tq.inflight != nil,
		LastError: tq.lastErr,
	}
}

// ReportStatus records a status change observed outside a flush, such as a pull.
func (q *Queue) ReportStatus(scope tenant.Scope, status Status, err error) {
	if scope.IsZero() || scope.IsAnonymous() {
		return
	}
	q.mu.Lock()
	tq, loadErr := q.tenantLocked(context.Background(), scope)
	if loadErr != nil {
		q.mu.Unlock()
		return
	}
	notify := q.setStatusLocked(tq, status, err)
	q.mu.Unlock()
	notify()
}

func (q *Queue) tenantLocked(ctx context.Context, scope tenant.Scope) (*tenantQueue, error) {
	if tq, ok := q.tenants[scope.Prefix()]; ok {
		return tq, nil
	}

	tq := &tenantQueue{scope: scope, status: StatusIdle}
	data, err := q.store.Get(ctx, scope, kv.PendingSyncKey)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &tq.pending); err != nil {
			q.logger.Warn("discarding unreadable pending sync batch", "scope", scope.String(), "error", err)
			tq.pending = BatchSyncInput{}
		}
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, fmt.Errorf("loading pending sync: %w", err)
	}

	q.tenants[scope.Prefix()] = tq
	return tq, nil
}

// persistLocked writes what is in flight plus what is pending, so a crash
// mid-flush loses nothing.
func (q *Queue) persistLocked(ctx context.Context, tq *tenantQueue) error {
	all := tq.pending
	if tq.inflight != nil {
		all = Merge(*tq.inflight, tq.pending)
	}
	if all.IsEmpty() {
		if err := q.store.Delete(ctx, tq.scope, kv.PendingSyncKey); err != nil {
			return fmt.Errorf("clearing pending sync: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("encoding pending sync: %w", err)
	}
	if err := q.store.Set(ctx, tq.scope, kv.PendingSyncKey, data); err != nil {
		return fmt.Errorf("saving pending sync: %w", err)
	}
	return nil
}

func (q *Queue) scheduleLocked(tq *tenantQueue, d time.Duration) {
	if tq.cancel != nil {
		tq.cancel()
	}
	scope := tq.scope
	tq.cancel = q.scheduler.After(d, func() {
		if _, err := q.Flush(context.Background(), scope); err != nil {
			q.logger.Debug("scheduled flush failed", "scope", scope.String(), "error", err)
		}
	})
}

// setStatusLocked updates status and returns a func that notifies
// listeners; call it after releasing q.mu.
func (q *Queue) setStatusLocked(tq *tenantQueue, status Status, err error) func() {
	tq.status = status
	tq.lastErr = ""
	if err != nil {
		tq.lastErr = err.Error()
	}
	listeners := slices.Clone(q.listeners)
	scope := tq.scope
	return func() {
		for _, fn := range listeners {
			fn(scope, status)
		}
	}
}
