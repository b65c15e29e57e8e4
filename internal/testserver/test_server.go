// Package testserver runs the remote sync API over an in-memory backend for tests.
package testserver

import (
	"net/http/httptest"
	"testing"

	"github.com/rpggio/blueprint/internal/transport"
)

type TestServer struct {
	Server  *httptest.Server
	Backend *transport.MemoryBackend
	Tokens  *transport.TokenTable
}

// New starts a server with no users; add them with AddUser.
func New(t *testing.T) *TestServer {
	t.Helper()

	backend := transport.NewMemoryBackend()
	tokens := transport.NewTokenTable()
	server := httptest.NewServer(transport.NewServer(backend, transport.AuthMiddleware(tokens), nil))

	t.Cleanup(server.Close)

	return &TestServer{
		Server:  server,
		Backend: backend,
		Tokens:  tokens,
	}
}

// URL is the server's base URL.
func (ts *TestServer) URL() string {
	return ts.Server.URL
}

// AddUser accepts token as userID's bearer token.
func (ts *TestServer) AddUser(token, userID string) {
	ts.Tokens.Add(token, userID)
}
