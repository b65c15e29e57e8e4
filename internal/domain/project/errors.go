package project

import "errors"

var (
	// ErrProjectNotFound indicates the project doesn't exist.
	ErrProjectNotFound = errors.New("project not found")
	// ErrInvalidInput indicates invalid project input.
	ErrInvalidInput = errors.New("invalid project input")
	// ErrInvalidState indicates a project state that is missing required structure.
	ErrInvalidState = errors.New("invalid project state")
	// ErrCorruptRecord indicates a stored envelope that could not be decoded.
	ErrCorruptRecord = errors.New("corrupt local project record")
	// ErrOwnershipUnverified indicates a cloud id the remote did not confirm as ours.
	ErrOwnershipUnverified = errors.New("cloud project ownership not verified")
)
