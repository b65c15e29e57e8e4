// Package ownership gates every use of a remote project id on the remote
// confirming that the id belongs to the caller.
package ownership

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/rpggio/blueprint/internal/domain/activity"
	"github.com/rpggio/blueprint/internal/tenant"
)

// OwnerFetcher looks up the owner of a remote project.
type OwnerFetcher interface {
	FetchProjectOwner(ctx context.Context, remoteID string) (string, error)
}

// ActivityRecorder writes advisory entries to the sync activity log.
type ActivityRecorder interface {
	Record(ctx context.Context, scope tenant.Scope, typ activity.Type, projectID, summary string)
}

// Verifier answers whether a remote project belongs to a scope. Positive
// answers are cached per scope; negative answers are always re-checked.
type Verifier struct {
	remote   OwnerFetcher
	activity ActivityRecorder
	logger   *slog.Logger

	mu       sync.Mutex
	verified map[string]struct{}
}

// NewVerifier creates a verifier. activity may be nil.
func NewVerifier(remote OwnerFetcher, activity ActivityRecorder, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Verifier{
		remote:   remote,
		activity: activity,
		logger:   logger,
		verified: make(map[string]struct{}),
	}
}

// Verify reports whether remoteID is owned by scope's identity. Any lookup
// failure counts as not owned.
func (v *Verifier) Verify(ctx context.Context, scope tenant.Scope, remoteID string) bool {
	if scope.IsZero() || scope.IsAnonymous() || strings.TrimSpace(remoteID) == "" {
		return false
	}

	cacheKey := scope.Key(remoteID)
	v.mu.Lock()
	_, ok := v.verified[cacheKey]
	v.mu.Unlock()
	if ok {
		return true
	}

	owner, err := v.remote.FetchProjectOwner(ctx, remoteID)
	if err != nil {
		v.logger.Debug("ownership lookup failed", "project_id", remoteID, "error", err)
		return false
	}
	if owner != scope.UserID() {
		v.logger.Warn("remote project rejected: ownership mismatch", "project_id", remoteID)
		if v.activity != nil {
			v.activity.Record(ctx, scope, activity.TypeOwnershipRejected, remoteID, "remote project not owned by this account")
		}
		return false
	}

	v.mu.Lock()
	v.verified[cacheKey] = struct{}{}
	v.mu.Unlock()
	return true
}

// Forget clears cached answers for scope, for example on logout.
func (v *Verifier) Forget(scope tenant.Scope) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for key := range v.verified {
		if scope.Owns(key) {
			delete(v.verified, key)
		}
	}
}
