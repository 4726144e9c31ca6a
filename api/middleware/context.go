package middleware

import (
	"context"

	"github.com/angelmondragon/replenish-backend/pkg/scope"
)

type contextKey string

const ctxScope contextKey = "client_scope"

// WithScope stores the authenticated tenant scope on the context.
func WithScope(ctx context.Context, sc scope.Client) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxScope, sc)
}

// ScopeFromContext returns the scope set by Auth, if any.
func ScopeFromContext(ctx context.Context) (scope.Client, bool) {
	if ctx == nil {
		return scope.Client{}, false
	}
	sc, ok := ctx.Value(ctxScope).(scope.Client)
	return sc, ok
}

func UserIDFromContext(ctx context.Context) string {
	sc, ok := ScopeFromContext(ctx)
	if !ok || sc.UserID == nil {
		return ""
	}
	return sc.UserID.String()
}

func ClientIDFromContext(ctx context.Context) string {
	sc, ok := ScopeFromContext(ctx)
	if !ok {
		return ""
	}
	return sc.ClientID.String()
}

func RoleFromContext(ctx context.Context) string {
	sc, _ := ScopeFromContext(ctx)
	return sc.Role
}
