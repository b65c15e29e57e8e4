// Package testutil holds fakes shared by package tests.
package testutil

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rpggio/blueprint/internal/kv"
	"github.com/rpggio/blueprint/internal/sqlite"
	"github.com/stretchr/testify/require"
)

// NewStore returns a scoped store over a fresh in-memory database.
// capacity <= 0 means unlimited.
func NewStore(t *testing.T, capacity int64) (*kv.Store, *sqlite.KVStore) {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err, "failed to create test database")
	require.NoError(t, db.RunMigrations(), "failed to run migrations")
	t.Cleanup(func() { db.Close() })

	backend := sqlite.NewKVStore(db, capacity)
	return kv.New(backend, nil), backend
}

// Clock is a settable clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock stopped at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now implements the Clock interfaces.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type task struct {
	id int
	at time.Duration
	fn func()
}

// Scheduler runs scheduled functions only when the test advances it.
type Scheduler struct {
	mu      sync.Mutex
	elapsed time.Duration
	nextID  int
	tasks   map[int]task
}

// NewScheduler returns an idle manual scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{tasks: make(map[int]task)}
}

// After implements cloudsync.Scheduler.
func (s *Scheduler) After(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.tasks[id] = task{id: id, at: s.elapsed + d, fn: fn}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.tasks, id)
	}
}

// Pending returns the number of scheduled, not yet run functions.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Advance moves time forward by d and runs every function that falls due,
// in order, on the calling goroutine.
func (s *Scheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.elapsed + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		due := make([]task, 0, len(s.tasks))
		for _, t := range s.tasks {
			if t.at <= target {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			s.elapsed = target
			s.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at == due[j].at {
				return due[i].id < due[j].id
			}
			return due[i].at < due[j].at
		})
		next := due[0]
		delete(s.tasks, next.id)
		s.elapsed = next.at
		s.mu.Unlock()

		next.fn()
	}
}
