// Package auth provides the credentials collaborator the sync engine consumes.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNoToken indicates there is no bearer token to send.
var ErrNoToken = errors.New("no bearer token")

// Static holds credentials supplied by configuration. It never refreshes.
type Static struct {
	mu     sync.RWMutex
	userID string
	token  string
}

// NewStatic creates credentials for userID. Empty values mean signed out.
func NewStatic(userID, token string) *Static {
	return &Static{userID: strings.TrimSpace(userID), token: strings.TrimSpace(token)}
}

// IsAuthenticated reports whether both an identity and a token are present.
func (s *Static) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID != "" && s.token != ""
}

// CurrentIdentity returns the authenticated user id, or "".
func (s *Static) CurrentIdentity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return ""
	}
	return s.userID
}

// BearerToken returns the token to send with remote requests.
func (s *Static) BearerToken(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

// SignIn replaces the credentials.
func (s *Static) SignIn(userID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = strings.TrimSpace(userID)
	s.token = strings.TrimSpace(token)
}

// SignOut clears the credentials.
func (s *Static) SignOut() {
	s.SignIn("", "")
}
