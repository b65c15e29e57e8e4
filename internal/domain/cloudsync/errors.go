package cloudsync

import (
	"context"
	"errors"
)

var (
	// ErrOffline indicates the remote could not be reached or is temporarily unavailable.
	ErrOffline = errors.New("remote unreachable")
	// ErrNotAuthenticated indicates there is no authenticated identity to sync as.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrScopeMismatch indicates the authenticated identity does not own the scope being synced.
	ErrScopeMismatch = errors.New("sync scope does not match authenticated identity")
	// ErrPushRejected indicates the remote answered but did not accept the batch.
	ErrPushRejected = errors.New("remote rejected sync batch")
	// ErrNoPusher indicates the queue was flushed before a pusher was attached.
	ErrNoPusher = errors.New("sync queue has no pusher")
)

// statusFor maps a push or pull failure to the status the caller sees.
func statusFor(err error) Status {
	switch {
	case err == nil:
		return StatusSynced
	case errors.Is(err, ErrOffline),
		errors.Is(err, ErrNotAuthenticated),
		errors.Is(err, ErrScopeMismatch),
		errors.Is(err, context.DeadlineExceeded):
		return StatusOffline
	default:
		return StatusError
	}
}
