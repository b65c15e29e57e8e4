package session

import "errors"

var (
	// ErrNoSession indicates no scope is logged in.
	ErrNoSession = errors.New("no active session")
	// ErrInvalidInput indicates invalid session input.
	ErrInvalidInput = errors.New("invalid session input")
	// ErrSaveSuppressed indicates an auto-save skipped while a project switch holds the lock.
	ErrSaveSuppressed = errors.New("auto-save suppressed during project switch")
	// ErrNotActiveProject indicates an auto-save for a project other than the active one.
	ErrNotActiveProject = errors.New("project is not the active project")
)
