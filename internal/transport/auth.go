package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

type userKey struct{}

// UserResolver resolves a user ID from a bearer token.
type UserResolver interface {
	ResolveUser(ctx context.Context, token string) (string, error)
}

// UserFromContext returns the authenticated user ID from context, if present.
func UserFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userKey{}).(string)
	return userID, ok
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			userID, err := resolver.ResolveUser(r.Context(), token)
			if err != nil || userID == "" {
				writeError(w, http.StatusUnauthorized, "invalid bearer token")
				return
			}

			ctx := context.WithValue(r.Context(), userKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenTable maps bearer tokens to user IDs. Only token hashes are kept.
type TokenTable struct {
	mu     sync.RWMutex
	hashes map[string]string
}

// NewTokenTable creates an empty token table.
func NewTokenTable() *TokenTable {
	return &TokenTable{hashes: make(map[string]string)}
}

// Add registers token for userID.
func (t *TokenTable) Add(token, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hashes[hashToken(token)] = userID
}

// ResolveUser implements UserResolver.
func (t *TokenTable) ResolveUser(_ context.Context, token string) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	userID, ok := t.hashes[hashToken(token)]
	if !ok || userID == "" {
		return "", ErrUnauthorized
	}
	return userID, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
