package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/blueprint/internal/domain/cloudsync"
	"github.com/rpggio/blueprint/internal/domain/project"
	"github.com/rpggio/blueprint/internal/domain/session"
	"github.com/rpggio/blueprint/internal/repository"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.RecoveryHint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes. Unknown errors are returned unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, project.ErrProjectNotFound):
		return &APIError{Code: "PROJECT_NOT_FOUND", Message: "project not found", RecoveryHint: "Call list_projects for valid ids"}
	case errors.Is(err, project.ErrInvalidInput), errors.Is(err, project.ErrInvalidState):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	case errors.Is(err, repository.ErrQuotaExceeded):
		return &APIError{Code: "STORAGE_FULL", Message: "local storage is full", RecoveryHint: "Delete unused projects"}
	case errors.Is(err, session.ErrNoSession), errors.Is(err, repository.ErrNoScope):
		return &APIError{Code: "NO_SESSION", Message: "no active session"}
	case errors.Is(err, session.ErrSaveSuppressed):
		return &APIError{Code: "BUSY", Message: "a project switch is in progress", RecoveryHint: "Retry shortly"}
	case errors.Is(err, cloudsync.ErrNotAuthenticated), errors.Is(err, cloudsync.ErrScopeMismatch):
		return &APIError{Code: "NOT_AUTHENTICATED", Message: "sync needs a signed-in account", RecoveryHint: "Sign in; local work is kept"}
	case errors.Is(err, cloudsync.ErrOffline):
		return &APIError{Code: "OFFLINE", Message: "cloud unreachable", RecoveryHint: "Changes stay queued and are retried"}
	case errors.Is(err, project.ErrOwnershipUnverified):
		return &APIError{Code: "OWNERSHIP_UNVERIFIED", Message: "cloud project does not belong to this account"}
	default:
		return err
	}
}
