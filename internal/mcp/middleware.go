package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/blueprint/internal/tenant"
)

type contextKey int

const scopeKey contextKey = iota

// getScope extracts the tenant scope from context.
func getScope(ctx context.Context) tenant.Scope {
	v, _ := ctx.Value(scopeKey).(tenant.Scope)
	return v
}

// scopeMiddleware pins the session's current scope on the context so a
// tool call keeps one scope even if the user switches accounts meanwhile.
func scopeMiddleware(sessions SessionService) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if scope := sessions.Scope(); !scope.IsZero() {
				ctx = context.WithValue(ctx, scopeKey, scope)
			}
			return next(ctx, method, req)
		}
	}
}
