// Package tenant defines the scope every local key is namespaced under.
package tenant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidID is returned when a user or anonymous id cannot form a key prefix.
var ErrInvalidID = errors.New("invalid tenant id")

const (
	userPrefix = "u"
	separator  = ":"
)

// Scope identifies whose data a key belongs to. The zero value is an
// unresolved scope and is rejected by every store operation.
type Scope struct {
	userID string
	anonID string
}

// ForUser returns the scope of an authenticated identity.
func ForUser(userID string) (Scope, error) {
	if err := validateID(userID); err != nil {
		return Scope{}, err
	}
	return Scope{userID: userID}, nil
}

// Anonymous returns the scope of a session-local anonymous id.
func Anonymous(anonID string) (Scope, error) {
	if err := validateID(anonID); err != nil {
		return Scope{}, err
	}
	// "u" would collide with the authenticated prefix.
	if anonID == userPrefix {
		return Scope{}, fmt.Errorf("%w: %q is reserved", ErrInvalidID, anonID)
	}
	return Scope{anonID: anonID}, nil
}

// NewAnonymous returns a scope for a freshly generated anonymous session.
func NewAnonymous() Scope {
	return Scope{anonID: "anon-" + uuid.NewString()}
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if strings.Contains(id, separator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidID, id, separator)
	}
	return nil
}

// IsZero reports whether the scope is unresolved.
func (s Scope) IsZero() bool {
	return s.userID == "" && s.anonID == ""
}

// IsAnonymous reports whether the scope belongs to an anonymous session.
func (s Scope) IsAnonymous() bool {
	return s.userID == "" && s.anonID != ""
}

// UserID returns the authenticated identity, or "" for anonymous scopes.
func (s Scope) UserID() string {
	return s.userID
}

// AnonymousID returns the anonymous session id, or "" for authenticated scopes.
func (s Scope) AnonymousID() string {
	return s.anonID
}

// Prefix returns the key prefix without the trailing separator.
func (s Scope) Prefix() string {
	switch {
	case s.userID != "":
		return userPrefix + separator + s.userID
	case s.anonID != "":
		return s.anonID
	default:
		return ""
	}
}

// Key namespaces a logical key under the scope.
func (s Scope) Key(logical string) string {
	return s.Prefix() + separator + logical
}

// Owns reports whether a physical key lives in this scope's key space.
func (s Scope) Owns(key string) bool {
	if s.IsZero() {
		return false
	}
	return strings.HasPrefix(key, s.Prefix()+separator)
}

// Logical strips the scope prefix from a physical key.
func (s Scope) Logical(key string) (string, bool) {
	if !s.Owns(key) {
		return "", false
	}
	return strings.TrimPrefix(key, s.Prefix()+separator), true
}

func (s Scope) String() string {
	if s.IsZero() {
		return "<unresolved>"
	}
	return s.Prefix()
}
